package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"avatarchat-backend/internal/models"
	"avatarchat-backend/internal/store"
)

// Compile-time check to ensure PostgresStore implements store.ConversationStore
var _ store.ConversationStore = (*PostgresStore)(nil)

// PostgresStore persists messages and session summaries in Postgres. The
// summaries table is optional: when the startup probe can't find it, summary
// operations degrade to logged no-ops and the service keeps answering turns.
type PostgresStore struct {
	db *pgxpool.Pool

	summariesAvailable bool
}

func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) *PostgresStore {
	s := &PostgresStore{db: db}
	s.summariesAvailable = s.probeSummaries(ctx)
	if !s.summariesAvailable {
		log.Printf("[PostgresStore] WARN: session_summaries table not available, session metadata will not be persisted")
	}
	return s
}

func (s *PostgresStore) probeSummaries(ctx context.Context) bool {
	var one int
	err := s.db.QueryRow(ctx, `SELECT 1 FROM session_summaries LIMIT 1`).Scan(&one)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	return true
}

// AppendMessage inserts a single conversation message.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, session_id, role, content, created_at, metadata, turn_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.Exec(ctx, query,
		msg.ID,
		msg.SessionID,
		msg.Role,
		msg.Content,
		msg.CreatedAt,
		nullableJSON(msg.Metadata),
		msg.TurnID,
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] AppendMessage: insert failed for session %s: %v", msg.SessionID, err)
		return fmt.Errorf("database error inserting message: %w", err)
	}
	return nil
}

// ListMessages returns a page of messages in chronological order. The query
// selects newest-first so offset 0 is the most recent page, then the page is
// reversed before returning.
func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]models.Message, error) {
	query := `
		SELECT id, session_id, role, content, created_at, metadata, turn_id
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, sessionID, limit, offset)
	if err != nil {
		log.Printf("ERROR [PostgresStore] ListMessages: query failed for session %s: %v", sessionID, err)
		return nil, fmt.Errorf("database error listing messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt, &m.Metadata, &m.TurnID); err != nil {
			return nil, fmt.Errorf("database error scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error reading messages: %w", err)
	}

	// Restore chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountMessages returns the total message count for a session.
func (s *PostgresStore) CountMessages(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CountMessages: query failed for session %s: %v", sessionID, err)
		return 0, fmt.Errorf("database error counting messages: %w", err)
	}
	return count, nil
}

// DeleteSessionMessages removes every message of a session.
func (s *PostgresStore) DeleteSessionMessages(ctx context.Context, sessionID string) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID)
	if err != nil {
		log.Printf("ERROR [PostgresStore] DeleteSessionMessages: delete failed for session %s: %v", sessionID, err)
		return 0, fmt.Errorf("database error deleting messages: %w", err)
	}
	deleted := int(tag.RowsAffected())
	log.Printf("[PostgresStore] Deleted %d messages for session %s", deleted, sessionID)
	return deleted, nil
}

// GetSummary fetches a session summary, or store.ErrNotFound.
func (s *PostgresStore) GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	if !s.summariesAvailable {
		return nil, store.ErrNotFound
	}

	query := `
		SELECT session_id, user_id, created_at, last_active_at, message_count, metadata
		FROM session_summaries
		WHERE session_id = $1`

	summary := &models.SessionSummary{}
	err := s.db.QueryRow(ctx, query, sessionID).Scan(
		&summary.SessionID,
		&summary.UserID,
		&summary.CreatedAt,
		&summary.LastActiveAt,
		&summary.MessageCount,
		&summary.Metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [PostgresStore] GetSummary: query failed for session %s: %v", sessionID, err)
		return nil, fmt.Errorf("database error fetching summary: %w", err)
	}
	return summary, nil
}

// UpsertSummary creates or replaces a session summary. Metadata is replaced
// wholesale, not merged.
func (s *PostgresStore) UpsertSummary(ctx context.Context, summary *models.SessionSummary) error {
	if !s.summariesAvailable {
		log.Printf("[PostgresStore] Summaries unavailable, skipping upsert for session %s", summary.SessionID)
		return nil
	}

	query := `
		INSERT INTO session_summaries (session_id, user_id, created_at, last_active_at, message_count, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			last_active_at = EXCLUDED.last_active_at,
			message_count = EXCLUDED.message_count,
			metadata = EXCLUDED.metadata`

	_, err := s.db.Exec(ctx, query,
		summary.SessionID,
		summary.UserID,
		summary.CreatedAt,
		summary.LastActiveAt,
		summary.MessageCount,
		nullableJSON(summary.Metadata),
	)
	if err != nil {
		log.Printf("ERROR [PostgresStore] UpsertSummary: upsert failed for session %s: %v", summary.SessionID, err)
		return fmt.Errorf("database error upserting summary: %w", err)
	}
	return nil
}

// ListSummaries returns a page of summaries newest-activity-first plus the
// total count.
func (s *PostgresStore) ListSummaries(ctx context.Context, limit, offset int) ([]models.SessionSummary, int, error) {
	if !s.summariesAvailable {
		log.Printf("[PostgresStore] WARN: summaries unavailable, returning empty session list")
		return []models.SessionSummary{}, 0, nil
	}

	query := `
		SELECT session_id, user_id, created_at, last_active_at, message_count, metadata
		FROM session_summaries
		ORDER BY last_active_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		log.Printf("ERROR [PostgresStore] ListSummaries: query failed: %v", err)
		return nil, 0, fmt.Errorf("database error listing summaries: %w", err)
	}
	defer rows.Close()

	summaries := []models.SessionSummary{}
	for rows.Next() {
		var sm models.SessionSummary
		if err := rows.Scan(&sm.SessionID, &sm.UserID, &sm.CreatedAt, &sm.LastActiveAt, &sm.MessageCount, &sm.Metadata); err != nil {
			return nil, 0, fmt.Errorf("database error scanning summary: %w", err)
		}
		summaries = append(summaries, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database error reading summaries: %w", err)
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM session_summaries`).Scan(&total); err != nil {
		log.Printf("ERROR [PostgresStore] ListSummaries: count failed: %v", err)
		return nil, 0, fmt.Errorf("database error counting summaries: %w", err)
	}
	return summaries, total, nil
}

// Healthy pings the pool.
func (s *PostgresStore) Healthy(ctx context.Context) bool {
	if err := s.db.Ping(ctx); err != nil {
		log.Printf("ERROR [PostgresStore] Healthy: ping failed: %v", err)
		return false
	}
	return true
}

// nullableJSON maps empty metadata to SQL NULL instead of an empty byte blob.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
