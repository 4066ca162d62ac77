package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// ChatRequest defines the expected body for the chat turn endpoint.
type ChatRequest struct {
	SessionID string            `json:"sessionId"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"` // userId, lang, etc.
}

// TokenRequest defines the body for the API token issuance endpoint.
type TokenRequest struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Subject      string   `json:"subject,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

// CreateSessionRequest defines the body for explicit session creation.
type CreateSessionRequest struct {
	UserID   *string           `json:"user_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// --- Response Structs ---

// AnswerResponse carries the assistant's reply in both formats: plain text
// (markdown stripped, TTS-safe character set) and the original markdown.
type AnswerResponse struct {
	PlainText string `json:"plain_text"`
	Markdown  string `json:"markdown"`
}

// Source is the lightweight client view of a retrieved document.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet"`
}

// ChatResponse defines the response body for a completed chat turn.
type ChatResponse struct {
	SessionID string         `json:"session_id"`
	TurnID    uuid.UUID      `json:"turn_id"`
	Answer    AnswerResponse `json:"answer"`
	Sources   []Source       `json:"sources,omitempty"`
	LatencyMs int64          `json:"latency_ms"`
	TraceID   string         `json:"trace_id"`
}

// HistoryResponse defines the response body for the session history endpoint.
// HasMore is computed as len(messages) == limit; a last page exactly limit
// long therefore reports true. Known approximation, kept as-is.
type HistoryResponse struct {
	SessionID  string    `json:"session_id"`
	Messages   []Message `json:"messages"`
	TotalCount int       `json:"total_count"`
	HasMore    bool      `json:"has_more"`
}

// SessionListItem is one row of the session listing endpoint.
type SessionListItem struct {
	SessionID    string    `json:"session_id"`
	LastActiveAt time.Time `json:"last_active_at"`
	MessageCount int       `json:"message_count"`
}

// ListSessionsResponse defines the response body for the session listing.
type ListSessionsResponse struct {
	Sessions   []SessionListItem `json:"sessions"`
	TotalCount int               `json:"total_count"`
	HasMore    bool              `json:"has_more"`
}

// CreateSessionResponse is returned by explicit session creation.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// DeleteHistoryResponse reports the bulk message delete outcome.
type DeleteHistoryResponse struct {
	SessionID    string `json:"session_id"`
	DeletedCount int    `json:"deleted_count"`
}

// TokenResponse is returned by the API token issuance endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// SpeechTokenResponse is returned by the speech relay token endpoint.
type SpeechTokenResponse struct {
	Token  string `json:"token"`
	Region string `json:"region"`
}

// ICECredentials is the normalized relay credential contract returned to the
// frontend regardless of the upstream issuer's payload shape.
type ICECredentials struct {
	Urls     []string `json:"Urls"`
	Username string   `json:"Username"`
	Password string   `json:"Password"`
}

// HealthResponse defines the verbose health check response.
type HealthResponse struct {
	Status       string          `json:"status"`
	Timestamp    time.Time       `json:"timestamp"`
	Environment  string          `json:"environment"`
	Dependencies map[string]bool `json:"dependencies,omitempty"`
}

// --- Error Envelope ---

// ErrorDetail carries the machine-readable error code alongside the message.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// ErrorResponse defines the standard structure for API errors. Every error
// path returns this envelope correlated by trace ID; internal details never
// appear in Message for unhandled errors.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"trace_id,omitempty"`
}
