package handlers

import (
	"errors"
	"log"
	"net/http"

	"avatarchat-backend/internal/services"
	"avatarchat-backend/pkg/httputil"
)

// respondServiceError translates a service error into the API envelope.
// Anything that isn't a ServiceError is an internal fault and must not leak
// detail to the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var serr *services.ServiceError
	if errors.As(err, &serr) {
		httputil.RespondError(w, r, serr.HTTPStatus, serr.Code, serr.Message, serr.Details)
		return
	}
	log.Printf("ERROR [Handlers] Unhandled error on %s %s: %v", r.Method, r.URL.Path, err)
	httputil.RespondError(w, r, http.StatusInternalServerError, services.CodeInternal,
		"An unexpected error occurred. Please try again later.", nil)
}
