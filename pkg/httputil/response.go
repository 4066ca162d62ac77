package httputil

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	api_models "avatarchat-backend/internal/models"
)

// RespondJSON writes a JSON response with the given status code and payload.
func RespondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		log.Printf("Error encoding JSON response: %v", err)
		// Can't write header again here, just log the error
	}
}

// RespondError writes the structured error envelope with the request's trace
// id. Every error path goes through here so clients always get the same
// shape.
func RespondError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string, details map[string]string) {
	resp := api_models.ErrorResponse{
		Error: api_models.ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
		TraceID: middleware.GetReqID(r.Context()),
	}
	RespondJSON(w, statusCode, resp)
}
