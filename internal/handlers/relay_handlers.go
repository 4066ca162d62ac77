package handlers

import (
	"net/http"

	"avatarchat-backend/internal/services"
	"avatarchat-backend/pkg/httputil"
)

// RelayHandlers serves the bearer-gated speech and avatar relay token
// proxies.
type RelayHandlers struct {
	relayService *services.RelayService
}

func NewRelayHandlers(relayService *services.RelayService) *RelayHandlers {
	return &RelayHandlers{relayService: relayService}
}

// HandleSpeechToken returns a short-lived speech service token.
// GET /token
func (h *RelayHandlers) HandleSpeechToken(w http.ResponseWriter, r *http.Request) {
	resp, err := h.relayService.SpeechToken(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleICEToken returns normalized WebRTC relay credentials for the avatar
// stream.
// GET /ice-token
func (h *RelayHandlers) HandleICEToken(w http.ResponseWriter, r *http.Request) {
	resp, err := h.relayService.ICEToken(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
