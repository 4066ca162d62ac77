package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"avatarchat-backend/internal/models"
)

const searchAPIVersion = "2023-11-01"

// SearchIndexRetriever queries an external ranked-search index over REST.
// Authentication is a static api-key header; the index never sees raw user
// input, queries are sanitized first.
type SearchIndexRetriever struct {
	endpoint string
	apiKey   string
	index    string
	client   *http.Client
}

// NewSearchIndexRetriever validates the connection settings up front so the
// factory can fall back to noop instead of failing per-turn.
func NewSearchIndexRetriever(endpoint, apiKey, index string) (*SearchIndexRetriever, error) {
	if endpoint == "" || apiKey == "" {
		return nil, errors.New("search endpoint and key are required")
	}
	if index == "" {
		return nil, errors.New("search index name is required")
	}
	return &SearchIndexRetriever{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		index:    index,
		client:   &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (r *SearchIndexRetriever) IsAvailable() bool { return true }

type searchRequest struct {
	Search string `json:"search"`
	Top    int    `json:"top"`
}

type searchHit struct {
	Score   float64           `json:"@search.score"`
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Content string            `json:"content"`
	URL     string            `json:"url"`
	Meta    map[string]string `json:"metadata"`
}

type searchResponse struct {
	Value []searchHit `json:"value"`
}

// Retrieve runs a full-text query against the index and maps hits to
// documents in index ranking order.
func (r *SearchIndexRetriever) Retrieve(ctx context.Context, query string, topK int) ([]models.Document, error) {
	query = SanitizeQuery(query)
	if query == "" || topK <= 0 {
		return nil, nil
	}

	body, err := json.Marshal(searchRequest{Search: query, Top: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", r.endpoint, r.index, searchAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search index returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]models.Document, 0, len(parsed.Value))
	for _, hit := range parsed.Value {
		docs = append(docs, models.Document{
			ID:       hit.ID,
			Title:    hit.Title,
			Content:  hit.Content,
			URL:      hit.URL,
			Score:    hit.Score,
			Metadata: hit.Meta,
		})
	}
	return docs, nil
}

var _ Retriever = (*SearchIndexRetriever)(nil)
