package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"avatarchat-backend/internal/models"
)

func corpus() []models.Document {
	return []models.Document{
		{ID: "1", Title: "Shipping policy", Content: "We ship orders worldwide within five days"},
		{ID: "2", Title: "Returns", Content: "Returns are accepted within thirty days of shipping"},
		{ID: "3", Title: "Careers", Content: "Open engineering positions in the platform team"},
	}
}

func TestMemoryRetrieverScoring(t *testing.T) {
	r := NewMemoryRetriever(corpus())

	docs, err := r.Retrieve(context.Background(), "shipping orders", 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// "shipping" in title (0.2) plus "orders" in content (0.1) beats
	// "shipping" in content only (0.1).
	require.Equal(t, "1", docs[0].ID)
	require.InDelta(t, 0.3, docs[0].Score, 1e-9)
	require.Equal(t, "2", docs[1].ID)
	require.InDelta(t, 0.1, docs[1].Score, 1e-9)
}

func TestMemoryRetrieverTopKAndMisses(t *testing.T) {
	r := NewMemoryRetriever(corpus())

	docs, err := r.Retrieve(context.Background(), "shipping returns engineering", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	docs, err = r.Retrieve(context.Background(), "quantum entanglement", 5)
	require.NoError(t, err)
	require.Empty(t, docs)

	docs, err = r.Retrieve(context.Background(), "", 5)
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestSanitizeQuery(t *testing.T) {
	require.Equal(t, "what is 2 2?", SanitizeQuery(`what is 2+2?`))
	require.Equal(t, "select from users", SanitizeQuery("select * from <users>"))
	require.Equal(t, "hello, world - ok.", SanitizeQuery("hello, world - ok."))
	require.Equal(t, "", SanitizeQuery("(*&^%$#@"))
}

func TestFormatContextEmpty(t *testing.T) {
	require.Equal(t, "", FormatContext(nil, DefaultContextTokenBudget))
}

func TestFormatContextDelimitersAndOrder(t *testing.T) {
	out := FormatContext(corpus()[:2], DefaultContextTokenBudget)

	require.True(t, strings.HasPrefix(out, "--- Retrieved Context ---"))
	require.True(t, strings.HasSuffix(out, "--- End of Context ---"))
	require.Contains(t, out, "Document 1: Shipping policy")
	require.Contains(t, out, "Document 2: Returns")
	require.Less(t, strings.Index(out, "Document 1:"), strings.Index(out, "Document 2:"))
}

func TestFormatContextBudgetTruncation(t *testing.T) {
	big := strings.Repeat("x", 5000)
	docs := []models.Document{
		{Title: "A", Content: big},
		{Title: "B", Content: big},
		{Title: "C", Content: big},
	}
	// Each entry is capped at 1000 content chars ~ 250 tokens; budget of 300
	// fits one document.
	out := FormatContext(docs, 300)

	require.Contains(t, out, "Document 1: A")
	require.NotContains(t, out, "Document 2: B")
	require.Contains(t, out, "... (2 more documents)")
	require.True(t, strings.HasSuffix(out, "--- End of Context ---"))
	// Content is truncated to 1000 characters.
	require.NotContains(t, out, strings.Repeat("x", 1001))
	require.Contains(t, out, strings.Repeat("x", 1000))
}

func TestSearchIndexRetriever(t *testing.T) {
	var gotPath, gotKey, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("api-key")
		var body searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotQuery = body.Search
		json.NewEncoder(w).Encode(searchResponse{Value: []searchHit{
			{Score: 2.5, ID: "d1", Title: "Doc", Content: "body", URL: "https://x/d1"},
		}})
	}))
	defer srv.Close()

	r, err := NewSearchIndexRetriever(srv.URL, "secret", "docs")
	require.NoError(t, err)
	require.True(t, r.IsAvailable())

	docs, err := r.Retrieve(context.Background(), `widgets & "gadgets"`, 3)
	require.NoError(t, err)
	require.Equal(t, "/indexes/docs/docs/search", gotPath)
	require.Equal(t, "secret", gotKey)
	require.Equal(t, "widgets gadgets", gotQuery)
	require.Len(t, docs, 1)
	require.Equal(t, "d1", docs[0].ID)
	require.InDelta(t, 2.5, docs[0].Score, 1e-9)
}

func TestSearchIndexRetrieverUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index not found", http.StatusNotFound)
	}))
	defer srv.Close()

	r, err := NewSearchIndexRetriever(srv.URL, "secret", "missing")
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "anything", 3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestSearchIndexRetrieverRequiresSettings(t *testing.T) {
	_, err := NewSearchIndexRetriever("", "key", "idx")
	require.Error(t, err)
	_, err = NewSearchIndexRetriever("https://x", "", "idx")
	require.Error(t, err)
	_, err = NewSearchIndexRetriever("https://x", "key", "")
	require.Error(t, err)
}
