package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageRole is the author of a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is a single immutable entry in a session's conversation log.
// Messages are created once by the chat service after a turn completes and
// never mutated; the only delete path is the bulk per-session delete.
type Message struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	SessionID string          `db:"session_id" json:"session_id"`
	Role      MessageRole     `db:"role" json:"role"`
	Content   string          `db:"content" json:"content"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	Metadata  json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	// TurnID groups the user/assistant pair produced by one chat turn.
	TurnID *uuid.UUID `db:"turn_id" json:"turn_id,omitempty"`
}

// SessionSummary is the mutable per-session aggregate used for session
// listings. MessageCount grows by 2 per completed turn (one user plus one
// assistant message). Metadata is replaced wholesale on every update.
type SessionSummary struct {
	SessionID    string          `db:"session_id" json:"session_id"`
	UserID       *string         `db:"user_id" json:"user_id,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	LastActiveAt time.Time       `db:"last_active_at" json:"last_active_at"`
	MessageCount int             `db:"message_count" json:"message_count"`
	Metadata     json.RawMessage `db:"metadata" json:"metadata,omitempty"`
}

// Document is a transient retrieval result. It is consumed once to build the
// agent's prompt context and the response source list; it is never persisted.
type Document struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	URL      string            `json:"url,omitempty"`
	Score    float64           `json:"score,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToSource maps a retrieved document to the lightweight view returned to the
// client, truncating the snippet to 200 characters plus an ellipsis.
func (d Document) ToSource() Source {
	snippet := d.Content
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	return Source{
		Title:   d.Title,
		URL:     d.URL,
		Snippet: snippet,
	}
}

// AgentMessage is one entry of the prompt assembled for the data agent.
type AgentMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}
