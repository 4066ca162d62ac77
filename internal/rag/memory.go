package rag

import (
	"context"
	"sort"
	"strings"

	"avatarchat-backend/internal/models"
)

// MemoryRetriever scores an in-process document corpus with a simple keyword
// overlap heuristic. It exists for development and tests; production deploys
// point at the search index.
type MemoryRetriever struct {
	docs []models.Document
}

func NewMemoryRetriever(docs []models.Document) *MemoryRetriever {
	return &MemoryRetriever{docs: docs}
}

// AddDocument appends a document to the corpus. Not safe to call concurrently
// with Retrieve; populate the corpus before serving.
func (r *MemoryRetriever) AddDocument(doc models.Document) {
	r.docs = append(r.docs, doc)
}

func (r *MemoryRetriever) IsAvailable() bool { return true }

// Retrieve scores each document 0.2 per query word appearing among its title
// words and 0.1 per query word among its content words, case-insensitive.
// Only positive scores qualify; ties keep corpus order.
func (r *MemoryRetriever) Retrieve(_ context.Context, query string, topK int) ([]models.Document, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 || topK <= 0 {
		return nil, nil
	}

	var scored []models.Document
	for _, doc := range r.docs {
		titleWords := fieldSet(doc.Title)
		contentWords := fieldSet(doc.Content)

		score := 0.0
		for _, w := range words {
			if titleWords[w] {
				score += 0.2
			}
			if contentWords[w] {
				score += 0.1
			}
		}
		if score > 0 {
			doc.Score = score
			scored = append(scored, doc)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func fieldSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

var _ Retriever = (*MemoryRetriever)(nil)
