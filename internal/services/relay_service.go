package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"avatarchat-backend/internal/config"
	"avatarchat-backend/internal/models"
)

// CodeRelay marks upstream speech/relay issuer failures.
const CodeRelay = "RELAY_ERROR"

// RelayService proxies token issuance for the third-party speech and avatar
// relay services. The backend holds the subscription key; the frontend only
// ever sees short-lived tokens.
type RelayService struct {
	speechKey     string
	speechRegion  string
	tokenEndpoint string
	iceEndpoint   string
	client        *http.Client
}

func NewRelayService(cfg *config.Config) *RelayService {
	return &RelayService{
		speechKey:     cfg.SpeechKey,
		speechRegion:  cfg.SpeechRegion,
		tokenEndpoint: cfg.SpeechTokenEndpoint,
		iceEndpoint:   cfg.SpeechICEEndpoint,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *RelayService) ensureConfigured() error {
	if s.speechKey == "" || s.speechRegion == "" {
		return configError("Speech configuration missing: set SPEECH_KEY and SPEECH_REGION")
	}
	return nil
}

func (s *RelayService) subscriptionHeaders(req *http.Request) {
	req.Header.Set("Ocp-Apim-Subscription-Key", s.speechKey)
	req.Header.Set("Ocp-Apim-Subscription-Region", s.speechRegion)
}

// SpeechToken fetches a short-lived speech service token. The issuer returns
// the token as a bare response body, not JSON.
func (s *RelayService) SpeechToken(ctx context.Context) (*models.SpeechTokenResponse, error) {
	if err := s.ensureConfigured(); err != nil {
		return nil, err
	}

	endpoint := s.tokenEndpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken", s.speechRegion)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(""))
	if err != nil {
		return nil, &ServiceError{Code: CodeInternal, Message: "Failed to build speech token request", HTTPStatus: 500, Err: err}
	}
	s.subscriptionHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, upstreamError(CodeRelay, fmt.Sprintf("Failed to fetch speech token: %v", err), 502)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode >= 400 {
		return nil, upstreamError(CodeRelay,
			fmt.Sprintf("Failed to fetch speech token: %s", string(body)), resp.StatusCode)
	}

	return &models.SpeechTokenResponse{
		Token:  string(body),
		Region: s.speechRegion,
	}, nil
}

// ICEToken fetches WebRTC relay credentials for the avatar stream. Some
// issuer deployments want GET, others POST; 404/405 on GET triggers a POST
// retry. The payload shape varies by deployment and is normalized before it
// reaches the frontend.
func (s *RelayService) ICEToken(ctx context.Context) (*models.ICECredentials, error) {
	if err := s.ensureConfigured(); err != nil {
		return nil, err
	}

	endpoint := s.iceEndpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/avatar/relay/token/v1", s.speechRegion)
	}

	resp, err := s.doICERequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, upstreamError(CodeRelay, fmt.Sprintf("Failed to fetch ICE token: %v", err), 502)
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
		resp.Body.Close()
		resp, err = s.doICERequest(ctx, http.MethodPost, endpoint)
		if err != nil {
			return nil, upstreamError(CodeRelay, fmt.Sprintf("Failed to fetch ICE token: %v", err), 502)
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if resp.StatusCode >= 400 {
		return nil, upstreamError(CodeRelay,
			fmt.Sprintf("Failed to fetch ICE token: %s", string(body)), resp.StatusCode)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, upstreamError(CodeRelay, "Unexpected ICE token payload format", 502)
	}
	return normalizeICEPayload(payload)
}

func (s *RelayService) doICERequest(ctx context.Context, method, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	s.subscriptionHeaders(req)
	return s.client.Do(req)
}

// normalizeICEPayload maps the issuer's assorted payload shapes onto the
// stable contract the frontend consumes. Top-level keys win; the first entry
// of an iceServers list fills in the gaps.
func normalizeICEPayload(payload map[string]any) (*models.ICECredentials, error) {
	urls := anyToStrings(firstOf(payload, "Urls", "urls"))
	username := firstString(payload, "Username", "username", "userName")
	password := firstString(payload, "Password", "password", "credential")

	if len(urls) == 0 || username == "" || password == "" {
		if servers, ok := payload["iceServers"].([]any); ok && len(servers) > 0 {
			if first, ok := servers[0].(map[string]any); ok {
				if len(urls) == 0 {
					urls = anyToStrings(first["urls"])
				}
				if username == "" {
					username = firstString(first, "username")
				}
				if password == "" {
					password = firstString(first, "credential")
				}
			}
		}
	}

	if len(urls) == 0 || username == "" || password == "" {
		return nil, upstreamError(CodeRelay, "Unexpected ICE token payload format", 502)
	}

	return &models.ICECredentials{Urls: urls, Username: username, Password: password}, nil
}

func firstOf(payload map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := payload[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := payload[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func anyToStrings(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	default:
		return nil
	}
}
