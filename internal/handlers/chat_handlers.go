package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"avatarchat-backend/internal/models"
	"avatarchat-backend/internal/services"
	"avatarchat-backend/pkg/httputil"
)

// ChatHandlers serves the chat turn, session and health endpoints.
type ChatHandlers struct {
	chatService *services.ChatService
	appEnv      string
}

func NewChatHandlers(chatService *services.ChatService, appEnv string) *ChatHandlers {
	return &ChatHandlers{chatService: chatService, appEnv: appEnv}
}

// HandleChat processes one chat turn.
// POST /api/v1/chat
func (h *ChatHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, r, http.StatusBadRequest, services.CodeValidation,
			"Invalid request body", nil)
		return
	}

	traceID := middleware.GetReqID(r.Context())
	resp, err := h.chatService.ProcessChat(r.Context(), req, traceID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleGetHistory returns a chronological page of session messages.
// GET /api/v1/sessions/{sessionID}/history
func (h *ChatHandlers) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit, ok := queryInt(r, "limit", 20, 1, 100)
	if !ok {
		httputil.RespondError(w, r, http.StatusBadRequest, services.CodeValidation,
			"limit must be an integer between 1 and 100", nil)
		return
	}
	offset, ok := queryInt(r, "offset", 0, 0, 1<<30)
	if !ok {
		httputil.RespondError(w, r, http.StatusBadRequest, services.CodeValidation,
			"offset must be a non-negative integer", nil)
		return
	}

	resp, err := h.chatService.GetSessionHistory(r.Context(), sessionID, limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleCreateSession mints a new session.
// POST /api/v1/sessions
func (h *ChatHandlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.RespondError(w, r, http.StatusBadRequest, services.CodeValidation,
				"Invalid request body", nil)
			return
		}
	}

	resp, err := h.chatService.CreateSession(r.Context(), req.UserID, req.Metadata)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleListSessions pages through session summaries.
// GET /api/v1/sessions
func (h *ChatHandlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 20, 1, 100)
	if !ok {
		httputil.RespondError(w, r, http.StatusBadRequest, services.CodeValidation,
			"limit must be an integer between 1 and 100", nil)
		return
	}
	offset, ok := queryInt(r, "offset", 0, 0, 1<<30)
	if !ok {
		httputil.RespondError(w, r, http.StatusBadRequest, services.CodeValidation,
			"offset must be a non-negative integer", nil)
		return
	}

	resp, err := h.chatService.ListSessions(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleDeleteHistory bulk-deletes a session's messages.
// DELETE /api/v1/sessions/{sessionID}/history
func (h *ChatHandlers) HandleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	resp, err := h.chatService.DeleteSessionHistory(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleHealth is the verbose health report.
// GET /api/v1/health
func (h *ChatHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthy, deps := h.chatService.HealthCheck(r.Context())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	httputil.RespondJSON(w, http.StatusOK, models.HealthResponse{
		Status:       status,
		Timestamp:    time.Now().UTC(),
		Environment:  h.appEnv,
		Dependencies: deps,
	})
}

// HandleHealthz is the load balancer probe: 200 when everything answers,
// 503 with the dependency breakdown otherwise.
// GET /api/v1/healthz
func (h *ChatHandlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	healthy, deps := h.chatService.HealthCheck(r.Context())
	if healthy {
		httputil.RespondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	log.Printf("[ChatHandlers] WARN: healthz failing, dependencies: %v", deps)
	httputil.RespondJSON(w, http.StatusServiceUnavailable, map[string]any{
		"status":       "error",
		"dependencies": deps,
	})
}

// queryInt parses an integer query parameter with a default and an inclusive
// range. The boolean is false when the value is present but invalid.
func queryInt(r *http.Request, name string, def, min, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, false
	}
	return v, true
}
