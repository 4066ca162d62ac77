// Package agent is the client for the managed data agent endpoint. The agent
// speaks the assistants protocol: create an assistant, resolve a thread,
// append messages, start a run, poll it, then read the thread back.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"avatarchat-backend/internal/config"
	"avatarchat-backend/internal/models"
)

const (
	apiVersion       = "2024-05-01-preview"
	credentialScope  = "https://api.fabric.microsoft.com/.default"
	defaultPollEvery = 2 * time.Second
	// Refresh the cached credential this long before it actually expires.
	refreshMargin = 5 * time.Minute

	// PlaceholderReply is returned when a run finishes without the agent
	// authoring any message.
	PlaceholderReply = "No response received from the data agent."
)

// AgentError wraps failures talking to the agent or its identity provider.
// A run that terminates in a non-completed state is NOT an AgentError; the
// result carries the status and the caller decides.
type AgentError struct {
	Op  string
	Err error
}

func (e *AgentError) Error() string { return fmt.Sprintf("agent %s: %v", e.Op, e.Err) }
func (e *AgentError) Unwrap() error { return e.Err }

func agentErr(op string, err error) error { return &AgentError{Op: op, Err: err} }

// InvocationResult is the outcome of one agent invocation.
type InvocationResult struct {
	Response   string
	ThreadID   string
	ThreadName string
	RunStatus  string
	// Success reports whether the run reached the completed state. A timed
	// out run returns its last observed status with Success false.
	Success bool
}

// Client invokes the data agent using service principal credentials. Safe for
// concurrent use; the credential cache is guarded by a mutex.
type Client struct {
	agentURL     string
	tokenURL     string
	clientID     string
	clientSecret string
	pollInterval time.Duration
	timeout      time.Duration

	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient builds a client from config. The identity provider token URL is
// derived from the tenant unless explicitly overridden.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("tenant id, client id and client secret are required")
	}
	if cfg.DataAgentURL == "" {
		return nil, errors.New("data agent URL is required")
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}

	return &Client{
		agentURL:     strings.TrimRight(cfg.DataAgentURL, "/"),
		tokenURL:     tokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		pollInterval: defaultPollEvery,
		timeout:      cfg.AgentTimeout,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// token returns a valid bearer token, refreshing when the cached one is
// within the refresh margin of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Add(refreshMargin).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}
	return c.refreshTokenLocked(ctx)
}

func (c *Client) refreshTokenLocked(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {credentialScope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("identity provider returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("identity provider returned an empty token")
	}

	c.accessToken = payload.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// managementURL derives the private thread-management endpoint from the
// published agent URL.
func (c *Client) managementURL() string {
	base := c.agentURL
	if strings.Contains(base, "aiskills") {
		base = strings.Replace(base, "aiskills", "dataagents", 1)
	}
	base = strings.TrimSuffix(base, "/openai")
	return strings.Replace(base, "/aiassistant", "/__private/aiassistant", 1)
}

// doJSON issues an authenticated request and decodes the JSON response into
// out when out is non-nil. Every call carries a fresh activity id.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ActivityId", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("agent endpoint returned status %d: %s", resp.StatusCode, string(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// assistantsURL appends the api-version the assistants surface requires.
func (c *Client) assistantsURL(path string) string {
	return fmt.Sprintf("%s%s?api-version=%s", c.agentURL, path, apiVersion)
}

type idResponse struct {
	ID string `json:"id"`
}

type runState struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type threadMessage struct {
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

func (m threadMessage) text() string {
	if len(m.Content) == 0 {
		return ""
	}
	return m.Content[0].Text.Value
}

// resolveThread looks a thread up by tag on the management endpoint. The
// agent creates the thread server-side when the tag is new.
func (c *Client) resolveThread(ctx context.Context, threadName string) (string, error) {
	lookupURL := fmt.Sprintf("%s/threads/fabric?tag=%s",
		c.managementURL(), url.QueryEscape(`"`+threadName+`"`))

	var thread idResponse
	if err := c.doJSON(ctx, http.MethodGet, lookupURL, nil, &thread); err != nil {
		return "", err
	}
	if thread.ID == "" {
		return "", errors.New("thread lookup returned no id")
	}
	return thread.ID, nil
}

// Invoke sends the messages to the agent on the named thread and waits for
// the run to settle. System messages are dropped (the agent does not accept
// them); unknown roles are coerced to user. A run still queued or in progress
// when the timeout elapses is returned with its last status rather than
// raised as an error.
func (c *Client) Invoke(ctx context.Context, messages []models.AgentMessage, threadName string) (*InvocationResult, error) {
	if threadName == "" {
		threadName = "external-client-thread-" + uuid.NewString()
	}

	var assistant idResponse
	if err := c.doJSON(ctx, http.MethodPost, c.assistantsURL("/assistants"),
		map[string]string{"model": "not used"}, &assistant); err != nil {
		return nil, agentErr("create assistant", err)
	}

	threadID, err := c.resolveThread(ctx, threadName)
	if err != nil {
		return nil, agentErr("resolve thread", err)
	}

	for _, msg := range messages {
		role := msg.Role
		if role == models.RoleSystem {
			continue
		}
		if role != models.RoleUser && role != models.RoleAssistant {
			role = models.RoleUser
		}
		err := c.doJSON(ctx, http.MethodPost,
			c.assistantsURL("/threads/"+threadID+"/messages"),
			map[string]string{"role": string(role), "content": msg.Content}, nil)
		if err != nil {
			return nil, agentErr("append message", err)
		}
	}

	var run runState
	if err := c.doJSON(ctx, http.MethodPost,
		c.assistantsURL("/threads/"+threadID+"/runs"),
		map[string]string{"assistant_id": assistant.ID}, &run); err != nil {
		return nil, agentErr("create run", err)
	}

	run, err = c.waitForRun(ctx, threadID, run)
	if err != nil {
		return nil, agentErr("poll run", err)
	}

	var listing struct {
		Data []threadMessage `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet,
		c.assistantsURL("/threads/"+threadID+"/messages")+"&order=asc", nil, &listing); err != nil {
		return nil, agentErr("list messages", err)
	}

	reply := ""
	for _, msg := range listing.Data {
		if msg.Role == "assistant" {
			reply = msg.text()
		}
	}
	if reply == "" {
		reply = PlaceholderReply
	}

	// Best-effort cleanup; a leaked thread is not worth failing the turn.
	if err := c.doJSON(ctx, http.MethodDelete, c.assistantsURL("/threads/"+threadID), nil, nil); err != nil {
		log.Printf("[Agent] WARN: thread cleanup failed for %s: %v", threadID, err)
	}

	return &InvocationResult{
		Response:   reply,
		ThreadID:   threadID,
		ThreadName: threadName,
		RunStatus:  run.Status,
		Success:    run.Status == "completed",
	}, nil
}

// waitForRun polls the run on a fixed interval until it leaves the queued /
// in_progress states or the configured timeout elapses. Timeout returns the
// last observed state; context cancellation is an error.
func (c *Client) waitForRun(ctx context.Context, threadID string, run runState) (runState, error) {
	deadline := time.Now().Add(c.timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for run.Status == "queued" || run.Status == "in_progress" {
		if time.Now().After(deadline) {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}

		var latest runState
		err := c.doJSON(ctx, http.MethodGet,
			c.assistantsURL("/threads/"+threadID+"/runs/"+run.ID), nil, &latest)
		if err != nil {
			return run, err
		}
		run = latest
	}
	return run, nil
}

// HealthCheck reports whether the client can authenticate. It forces a
// credential refresh rather than trusting the cache.
func (c *Client) HealthCheck(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.refreshTokenLocked(ctx); err != nil {
		log.Printf("[Agent] WARN: health check failed: %v", err)
		return false
	}
	return true
}
