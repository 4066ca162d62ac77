package store

import (
	"context"
	"errors"

	"avatarchat-backend/internal/models"
)

// ErrNotFound is returned when a specific record doesn't exist.
var ErrNotFound = errors.New("requested record not found")

// ConversationStore defines the persistence interface for conversation
// messages and session summaries. Message writes happen after a turn
// completes and are treated as best-effort by the caller; read paths surface
// errors normally.
type ConversationStore interface {
	// AppendMessage inserts one immutable conversation message.
	AppendMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns a page of a session's messages in chronological
	// order. The page is selected newest-first then reversed, so offset 0
	// holds the most recent messages.
	ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]models.Message, error)
	// CountMessages returns the total number of messages in a session.
	CountMessages(ctx context.Context, sessionID string) (int, error)
	// DeleteSessionMessages removes every message of a session and reports
	// how many rows went away.
	DeleteSessionMessages(ctx context.Context, sessionID string) (int, error)

	// GetSummary fetches a session summary. Returns ErrNotFound when the
	// session has no summary record.
	GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	// UpsertSummary creates or replaces a session summary.
	UpsertSummary(ctx context.Context, summary *models.SessionSummary) error
	// ListSummaries returns a page of summaries ordered by last activity
	// (newest first) plus the total summary count.
	ListSummaries(ctx context.Context, limit, offset int) ([]models.SessionSummary, int, error)

	// Healthy reports whether the backing database answers.
	Healthy(ctx context.Context) bool
}
