package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"avatarchat-backend/internal/config"
	"avatarchat-backend/internal/models"
)

type fakeAgent struct {
	tokenHits    atomic.Int64
	threadTag    string
	appended     []map[string]string
	runStatus    string
	replies      []threadMessage
	deletedCount atomic.Int64
}

func assistantReply(text string) threadMessage {
	var m threadMessage
	m.Role = "assistant"
	m.Content = make([]struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	}, 1)
	m.Content[0].Type = "text"
	m.Content[0].Text.Value = text
	return m
}

func (f *fakeAgent) serve() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenHits.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/aiassistant/openai/assistants", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "asst_1"})
	})
	mux.HandleFunc("/__private/aiassistant/threads/fabric", func(w http.ResponseWriter, r *http.Request) {
		f.threadTag = r.URL.Query().Get("tag")
		json.NewEncoder(w).Encode(map[string]string{"id": "thread_1"})
	})
	mux.HandleFunc("/aiassistant/openai/threads/thread_1/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var msg map[string]string
			json.NewDecoder(r.Body).Decode(&msg)
			f.appended = append(f.appended, msg)
			w.Write([]byte(`{}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": f.replies})
	})
	mux.HandleFunc("/aiassistant/openai/threads/thread_1/runs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(runState{ID: "run_1", Status: f.runStatus})
	})
	mux.HandleFunc("/aiassistant/openai/threads/thread_1/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(runState{ID: "run_1", Status: f.runStatus})
	})
	mux.HandleFunc("/aiassistant/openai/threads/thread_1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			f.deletedCount.Add(1)
		}
		w.Write([]byte(`{}`))
	})
	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(&config.Config{
		TenantID:     "tenant",
		ClientID:     "client",
		ClientSecret: "secret",
		DataAgentURL: srv.URL + "/aiassistant/openai",
		TokenURL:     srv.URL + "/token",
		AgentTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	c.pollInterval = 5 * time.Millisecond
	return c
}

func TestInvokeCompletedRun(t *testing.T) {
	fake := &fakeAgent{
		runStatus: "completed",
		replies: []threadMessage{
			assistantReply("first draft"),
			assistantReply("final answer"),
		},
	}
	srv := fake.serve()
	defer srv.Close()

	c := newTestClient(t, srv)
	res, err := c.Invoke(context.Background(), []models.AgentMessage{
		{Role: models.RoleSystem, Content: "instructions"},
		{Role: models.RoleUser, Content: "question"},
	}, "session-42")
	require.NoError(t, err)

	require.True(t, res.Success)
	require.Equal(t, "completed", res.RunStatus)
	// The last assistant message wins.
	require.Equal(t, "final answer", res.Response)
	require.Equal(t, "thread_1", res.ThreadID)
	require.Equal(t, "session-42", res.ThreadName)

	// System messages are dropped before reaching the thread.
	require.Len(t, fake.appended, 1)
	require.Equal(t, "user", fake.appended[0]["role"])
	require.Equal(t, "question", fake.appended[0]["content"])

	// Thread resolution quotes the tag.
	require.Equal(t, `"session-42"`, fake.threadTag)

	// Cleanup happened.
	require.Equal(t, int64(1), fake.deletedCount.Load())
}

func TestInvokeTimeoutReturnsLastStatus(t *testing.T) {
	fake := &fakeAgent{runStatus: "in_progress"}
	srv := fake.serve()
	defer srv.Close()

	c := newTestClient(t, srv)
	c.timeout = 30 * time.Millisecond

	res, err := c.Invoke(context.Background(), []models.AgentMessage{
		{Role: models.RoleUser, Content: "slow question"},
	}, "session-slow")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, "in_progress", res.RunStatus)
	require.Equal(t, PlaceholderReply, res.Response)
}

func TestInvokePlaceholderWhenNoAssistantMessage(t *testing.T) {
	fake := &fakeAgent{runStatus: "completed"}
	srv := fake.serve()
	defer srv.Close()

	c := newTestClient(t, srv)
	res, err := c.Invoke(context.Background(), []models.AgentMessage{
		{Role: models.RoleUser, Content: "hello"},
	}, "session-empty")
	require.NoError(t, err)
	require.Equal(t, PlaceholderReply, res.Response)
}

func TestTokenCachedAcrossInvocations(t *testing.T) {
	fake := &fakeAgent{runStatus: "completed", replies: []threadMessage{assistantReply("ok")}}
	srv := fake.serve()
	defer srv.Close()

	c := newTestClient(t, srv)
	msgs := []models.AgentMessage{{Role: models.RoleUser, Content: "q"}}

	_, err := c.Invoke(context.Background(), msgs, "s1")
	require.NoError(t, err)
	_, err = c.Invoke(context.Background(), msgs, "s2")
	require.NoError(t, err)
	require.Equal(t, int64(1), fake.tokenHits.Load())

	// Health check bypasses the cache.
	require.True(t, c.HealthCheck(context.Background()))
	require.Equal(t, int64(2), fake.tokenHits.Load())
}

func TestInvokeWrapsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/token") {
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Invoke(context.Background(), []models.AgentMessage{
		{Role: models.RoleUser, Content: "q"},
	}, "s")
	require.Error(t, err)

	var aerr *AgentError
	require.ErrorAs(t, err, &aerr)
	require.Equal(t, "create assistant", aerr.Op)
}

func TestManagementURLDerivation(t *testing.T) {
	c := &Client{agentURL: "https://host/aiskills/v1/workspaces/w/aiassistant/openai"}
	require.Equal(t, "https://host/dataagents/v1/workspaces/w/__private/aiassistant", c.managementURL())

	c = &Client{agentURL: "https://host/v1/w/aiassistant/openai"}
	require.Equal(t, "https://host/v1/w/__private/aiassistant", c.managementURL())
}
