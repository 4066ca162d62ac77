package handlers

import (
	"encoding/json"
	"net/http"

	"avatarchat-backend/internal/models"
	"avatarchat-backend/internal/services"
	"avatarchat-backend/pkg/httputil"
)

// TokenHandlers serves API token issuance.
type TokenHandlers struct {
	tokenService *services.TokenService
}

func NewTokenHandlers(tokenService *services.TokenService) *TokenHandlers {
	return &TokenHandlers{tokenService: tokenService}
}

// HandleIssueToken exchanges the shared client credential pair for a signed
// bearer token.
// POST /url/token
func (h *TokenHandlers) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, r, http.StatusBadRequest, services.CodeValidation,
			"Invalid request body", nil)
		return
	}

	resp, err := h.tokenService.IssueToken(req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
