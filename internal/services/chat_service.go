package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"avatarchat-backend/internal/agent"
	"avatarchat-backend/internal/config"
	"avatarchat-backend/internal/models"
	"avatarchat-backend/internal/rag"
	"avatarchat-backend/internal/store"
	"avatarchat-backend/internal/textproc"
)

// AgentInvoker is the slice of the agent client the chat service needs.
type AgentInvoker interface {
	Invoke(ctx context.Context, messages []models.AgentMessage, threadName string) (*agent.InvocationResult, error)
	HealthCheck(ctx context.Context) bool
}

// ChatService orchestrates a chat turn across retrieval, the data agent and
// the conversation store. Turns are stateless with respect to prior
// conversation: the agent's own thread carries continuity, so history is
// persisted for clients but never replayed into the prompt.
type ChatService struct {
	store     store.ConversationStore
	retriever rag.Retriever
	agent     AgentInvoker

	maxMessageLength int
	topK             int
}

func NewChatService(cfg *config.Config, st store.ConversationStore, retriever rag.Retriever, invoker AgentInvoker) *ChatService {
	return &ChatService{
		store:            st,
		retriever:        retriever,
		agent:            invoker,
		maxMessageLength: cfg.MaxMessageLength,
		topK:             cfg.RAGTopK,
	}
}

// ProcessChat runs one turn: validate, retrieve, compose, invoke,
// post-process, persist (best-effort), respond. Validation and retrieval
// failures abort the turn; persistence failures do not.
func (s *ChatService) ProcessChat(ctx context.Context, req models.ChatRequest, traceID string) (*models.ChatResponse, error) {
	start := time.Now()

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, validationError("Session ID cannot be empty")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, validationError("Message cannot be empty")
	}
	if len(req.Message) > s.maxMessageLength {
		return nil, validationError("Message is too long")
	}

	turnID := uuid.New()
	log.Printf("[ChatService] Processing turn %s for session %s (trace %s)", turnID, sessionID, traceID)

	var docs []models.Document
	ragContext := ""
	if s.retriever.IsAvailable() {
		var err error
		docs, err = s.retriever.Retrieve(ctx, message, s.topK)
		if err != nil {
			log.Printf("ERROR [ChatService] Retrieval failed for session %s: %v", sessionID, err)
			return nil, ragError("Failed to retrieve documents", err)
		}
		if len(docs) > 0 {
			ragContext = rag.FormatContext(docs, rag.DefaultContextTokenBudget)
			log.Printf("[ChatService] Retrieved %d documents (%d context chars)", len(docs), len(ragContext))
		}
	}

	messages := s.buildMessages(message, ragContext, req.Metadata)

	result, err := s.agent.Invoke(ctx, messages, sessionID)
	if err != nil {
		log.Printf("ERROR [ChatService] Agent invocation failed for session %s: %v", sessionID, err)
		return nil, agentError("Failed to get a response from the data agent", err)
	}

	answer := postProcess(result.Response)

	s.persistTurn(ctx, sessionID, turnID, message, answer.Markdown, req.Metadata)

	var sources []models.Source
	for _, doc := range docs {
		sources = append(sources, doc.ToSource())
	}

	latency := time.Since(start).Milliseconds()
	log.Printf("[ChatService] Turn %s completed in %dms (run status %s)", turnID, latency, result.RunStatus)

	return &models.ChatResponse{
		SessionID: sessionID,
		TurnID:    turnID,
		Answer:    answer,
		Sources:   sources,
		LatencyMs: latency,
		TraceID:   traceID,
	}, nil
}

// buildMessages assembles the prompt: one system message with instructions
// (and retrieval context when present) followed by the user message.
func (s *ChatService) buildMessages(userMessage, ragContext string, metadata map[string]string) []models.AgentMessage {
	instructions := []string{
		"You are a helpful AI assistant for an enterprise chatbot application.",
		"Provide accurate, helpful responses based on the conversation context and any provided reference materials.",
		"Be concise but thorough in your responses.",
		"Use markdown formatting for better readability (headers, lists, bold, etc.).",
	}
	if ragContext != "" {
		instructions = append(instructions,
			"Below is context information that may be relevant to the user's query. "+
				"Use this information to provide more accurate and grounded responses.")
	}
	if lang, ok := metadata["lang"]; ok && lang != "" && lang != "en" {
		instructions = append(instructions, fmt.Sprintf("Respond in %s if possible.", lang))
	}

	system := strings.Join(instructions, "\n\n")
	if ragContext != "" {
		system = system + "\n\n" + ragContext
	}

	return []models.AgentMessage{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: userMessage},
	}
}

// postProcess derives the two answer variants from the raw agent reply.
func postProcess(reply string) models.AnswerResponse {
	return models.AnswerResponse{
		PlainText: textproc.CleanPlainText(textproc.StripMarkdown(reply)),
		Markdown:  strings.TrimSpace(reply),
	}
}

// persistTurn writes the user/assistant pair and refreshes the session
// summary. Every failure here is logged and swallowed: the user already has
// the answer.
func (s *ChatService) persistTurn(ctx context.Context, sessionID string, turnID uuid.UUID, userMessage, assistantMarkdown string, metadata map[string]string) {
	now := time.Now().UTC()

	userMeta := marshalMetadata(metadata)
	userMsg := &models.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   userMessage,
		CreatedAt: now,
		Metadata:  userMeta,
		TurnID:    &turnID,
	}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		log.Printf("[ChatService] WARN: failed to persist user message for turn %s: %v", turnID, err)
		return
	}

	assistantMsg := &models.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   assistantMarkdown,
		CreatedAt: now.Add(time.Millisecond),
		Metadata:  marshalMetadata(map[string]string{"turn_id": turnID.String()}),
		TurnID:    &turnID,
	}
	if err := s.store.AppendMessage(ctx, assistantMsg); err != nil {
		log.Printf("[ChatService] WARN: failed to persist assistant message for turn %s: %v", turnID, err)
		return
	}

	s.refreshSummary(ctx, sessionID, now, metadata)
}

// refreshSummary read-modify-writes the session summary: +2 messages, fresh
// last-active timestamp, metadata replaced. Concurrent turns on the same
// session can race; last write wins and the count may drift, which is
// acceptable for a listing aggregate.
func (s *ChatService) refreshSummary(ctx context.Context, sessionID string, now time.Time, metadata map[string]string) {
	summary := &models.SessionSummary{
		SessionID:    sessionID,
		CreatedAt:    now,
		LastActiveAt: now,
		MessageCount: 2,
		Metadata:     marshalMetadata(metadata),
	}

	existing, err := s.store.GetSummary(ctx, sessionID)
	switch {
	case err == nil:
		summary.CreatedAt = existing.CreatedAt
		summary.MessageCount = existing.MessageCount + 2
		summary.UserID = existing.UserID
	case errors.Is(err, store.ErrNotFound):
		summary.UserID = userIDFromMetadata(metadata)
	default:
		log.Printf("[ChatService] WARN: failed to read session summary for %s: %v", sessionID, err)
		return
	}

	if err := s.store.UpsertSummary(ctx, summary); err != nil {
		log.Printf("[ChatService] WARN: failed to update session summary for %s: %v", sessionID, err)
	}
}

func userIDFromMetadata(metadata map[string]string) *string {
	if metadata == nil {
		return nil
	}
	if id := metadata["userId"]; id != "" {
		return &id
	}
	if id := metadata["user_id"]; id != "" {
		return &id
	}
	return nil
}

func marshalMetadata(metadata map[string]string) json.RawMessage {
	if len(metadata) == 0 {
		return nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil
	}
	return raw
}

// GetSessionHistory returns a chronological page of a session's messages.
// HasMore is approximated as "the page came back full"; a final page exactly
// limit long reports true.
func (s *ChatService) GetSessionHistory(ctx context.Context, sessionID string, limit, offset int) (*models.HistoryResponse, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, validationError("Session ID cannot be empty")
	}

	messages, err := s.store.ListMessages(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, storeError("Failed to retrieve session history", err)
	}

	return &models.HistoryResponse{
		SessionID:  sessionID,
		Messages:   messages,
		TotalCount: len(messages),
		HasMore:    len(messages) == limit,
	}, nil
}

// ListSessions returns a page of session summaries for the session picker.
func (s *ChatService) ListSessions(ctx context.Context, limit, offset int) (*models.ListSessionsResponse, error) {
	summaries, total, err := s.store.ListSummaries(ctx, limit, offset)
	if err != nil {
		return nil, storeError("Failed to list sessions", err)
	}

	items := make([]models.SessionListItem, 0, len(summaries))
	for _, sm := range summaries {
		items = append(items, models.SessionListItem{
			SessionID:    sm.SessionID,
			LastActiveAt: sm.LastActiveAt,
			MessageCount: sm.MessageCount,
		})
	}

	return &models.ListSessionsResponse{
		Sessions:   items,
		TotalCount: total,
		HasMore:    offset+len(items) < total,
	}, nil
}

// CreateSession mints a session id and persists an empty summary. Summary
// persistence is best-effort; the id is valid either way.
func (s *ChatService) CreateSession(ctx context.Context, userID *string, metadata map[string]string) (*models.CreateSessionResponse, error) {
	sessionID := uuid.NewString()
	now := time.Now().UTC()

	summary := &models.SessionSummary{
		SessionID:    sessionID,
		UserID:       userID,
		CreatedAt:    now,
		LastActiveAt: now,
		MessageCount: 0,
		Metadata:     marshalMetadata(metadata),
	}
	if err := s.store.UpsertSummary(ctx, summary); err != nil {
		log.Printf("[ChatService] WARN: failed to persist new session %s: %v", sessionID, err)
	}

	return &models.CreateSessionResponse{SessionID: sessionID, CreatedAt: now}, nil
}

// DeleteSessionHistory removes every message of a session.
func (s *ChatService) DeleteSessionHistory(ctx context.Context, sessionID string) (*models.DeleteHistoryResponse, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, validationError("Session ID cannot be empty")
	}

	deleted, err := s.store.DeleteSessionMessages(ctx, sessionID)
	if err != nil {
		return nil, storeError("Failed to delete session history", err)
	}
	return &models.DeleteHistoryResponse{SessionID: sessionID, DeletedCount: deleted}, nil
}

// HealthCheck probes the store, the retriever and the agent credential flow.
// Each probe is independent; the service is healthy iff all three pass.
func (s *ChatService) HealthCheck(ctx context.Context) (bool, map[string]bool) {
	deps := map[string]bool{
		"store":      s.store.Healthy(ctx),
		"rag":        s.retriever.IsAvailable(),
		"data_agent": s.agent.HealthCheck(ctx),
	}
	healthy := true
	for _, ok := range deps {
		healthy = healthy && ok
	}
	return healthy, deps
}
