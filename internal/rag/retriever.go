// Package rag provides document retrieval for grounding chat turns. A
// Retriever produces ranked documents for a query; the chat service folds
// them into the agent's system prompt and the response source list.
package rag

import (
	"context"
	"log"
	"regexp"
	"strings"

	"avatarchat-backend/internal/config"
	"avatarchat-backend/internal/models"
)

// Retriever fetches documents relevant to a query. Implementations must be
// safe for concurrent use.
type Retriever interface {
	// Retrieve returns up to topK documents ranked by relevance.
	Retrieve(ctx context.Context, query string, topK int) ([]models.Document, error)
	// IsAvailable reports whether the retriever can serve queries. The chat
	// service skips retrieval entirely when this returns false.
	IsAvailable() bool
}

// NoopRetriever is the disabled-retrieval implementation. It reports
// available and returns no documents, so turns and health checks proceed
// normally, just without context.
type NoopRetriever struct{}

func NewNoopRetriever() *NoopRetriever { return &NoopRetriever{} }

func (r *NoopRetriever) Retrieve(_ context.Context, _ string, _ int) ([]models.Document, error) {
	return nil, nil
}

func (r *NoopRetriever) IsAvailable() bool { return true }

var _ Retriever = (*NoopRetriever)(nil)

// NewRetriever selects a Retriever from config. Unknown providers and
// initialization failures fall back to the noop retriever; the fallback is
// logged once here rather than on every turn.
func NewRetriever(cfg *config.Config) Retriever {
	switch cfg.RAGProvider {
	case "search_index":
		r, err := NewSearchIndexRetriever(cfg.SearchEndpoint, cfg.SearchKey, cfg.SearchIndex)
		if err != nil {
			log.Printf("[RAG] WARN: search index retriever unavailable (%v), retrieval disabled", err)
			return NewNoopRetriever()
		}
		return r
	case "memory":
		return NewMemoryRetriever(nil)
	case "none", "":
		return NewNoopRetriever()
	default:
		log.Printf("[RAG] WARN: unknown provider %q, retrieval disabled", cfg.RAGProvider)
		return NewNoopRetriever()
	}
}

var (
	queryDisallowedRe = regexp.MustCompile(`[^\w\s\-.,!?;:]`)
	querySpaceRe      = regexp.MustCompile(`\s+`)
)

// SanitizeQuery strips characters with special meaning in search query
// syntax, replacing them with spaces and collapsing runs.
func SanitizeQuery(query string) string {
	query = queryDisallowedRe.ReplaceAllString(query, " ")
	query = querySpaceRe.ReplaceAllString(query, " ")
	return strings.TrimSpace(query)
}
