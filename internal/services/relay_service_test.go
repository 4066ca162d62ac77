package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"avatarchat-backend/internal/config"
)

func relayConfig(tokenEndpoint, iceEndpoint string) *config.Config {
	return &config.Config{
		SpeechKey:           "sub-key",
		SpeechRegion:        "westeurope",
		SpeechTokenEndpoint: tokenEndpoint,
		SpeechICEEndpoint:   iceEndpoint,
	}
}

func TestSpeechToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "sub-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		require.Equal(t, "westeurope", r.Header.Get("Ocp-Apim-Subscription-Region"))
		w.Write([]byte("opaque-speech-token"))
	}))
	defer srv.Close()

	svc := NewRelayService(relayConfig(srv.URL, ""))
	resp, err := svc.SpeechToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "opaque-speech-token", resp.Token)
	require.Equal(t, "westeurope", resp.Region)
}

func TestSpeechTokenUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	svc := NewRelayService(relayConfig(srv.URL, ""))
	_, err := svc.SpeechToken(context.Background())

	var serr *ServiceError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, CodeRelay, serr.Code)
	require.Equal(t, http.StatusForbidden, serr.HTTPStatus)
}

func TestSpeechTokenUnconfigured(t *testing.T) {
	svc := NewRelayService(&config.Config{})
	_, err := svc.SpeechToken(context.Background())

	var serr *ServiceError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, CodeConfig, serr.Code)
}

func TestICETokenTopLevelPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(map[string]any{
			"Urls":     []string{"turn:relay.example:3478"},
			"Username": "user-1",
			"Password": "pass-1",
		})
	}))
	defer srv.Close()

	svc := NewRelayService(relayConfig("", srv.URL))
	creds, err := svc.ICEToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"turn:relay.example:3478"}, creds.Urls)
	require.Equal(t, "user-1", creds.Username)
	require.Equal(t, "pass-1", creds.Password)
}

func TestICETokenLowercaseAndStringURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"urls":       "turn:relay.example:3478",
			"userName":   "user-2",
			"credential": "pass-2",
		})
	}))
	defer srv.Close()

	svc := NewRelayService(relayConfig("", srv.URL))
	creds, err := svc.ICEToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"turn:relay.example:3478"}, creds.Urls)
	require.Equal(t, "user-2", creds.Username)
	require.Equal(t, "pass-2", creds.Password)
}

func TestICETokenIceServersFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"iceServers": []map[string]any{{
				"urls":       []string{"turn:a:3478", "turn:b:3478"},
				"username":   "user-3",
				"credential": "pass-3",
			}},
		})
	}))
	defer srv.Close()

	svc := NewRelayService(relayConfig("", srv.URL))
	creds, err := svc.ICEToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"turn:a:3478", "turn:b:3478"}, creds.Urls)
	require.Equal(t, "user-3", creds.Username)
	require.Equal(t, "pass-3", creds.Password)
}

func TestICETokenPostFallback(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodGet {
			http.Error(w, "try POST", http.StatusMethodNotAllowed)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"Urls": []string{"turn:x:3478"}, "Username": "u", "Password": "p",
		})
	}))
	defer srv.Close()

	svc := NewRelayService(relayConfig("", srv.URL))
	creds, err := svc.ICEToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{http.MethodGet, http.MethodPost}, methods)
	require.Equal(t, "u", creds.Username)
}

func TestICETokenUnrecognizedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"something": "else"})
	}))
	defer srv.Close()

	svc := NewRelayService(relayConfig("", srv.URL))
	_, err := svc.ICEToken(context.Background())

	var serr *ServiceError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, CodeRelay, serr.Code)
	require.Equal(t, 502, serr.HTTPStatus)
}
