package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"avatarchat-backend/internal/auth"
	"avatarchat-backend/internal/services"
	"avatarchat-backend/pkg/httputil"
)

// BearerAuthMiddleware verifies the Authorization bearer token and puts the
// decoded claims on the request context. Every failure mode maps to 401 with
// a message that names the problem without echoing the token.
func BearerAuthMiddleware(tokenService *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.RespondError(w, r, http.StatusUnauthorized, services.CodeUnauthorized,
					"Authorization header required", nil)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				httputil.RespondError(w, r, http.StatusUnauthorized, services.CodeUnauthorized,
					"Malformed Authorization header (Expected: Bearer <token>)", nil)
				return
			}

			claims, err := tokenService.VerifyToken(parts[1])
			if err != nil {
				log.Printf("Auth Middleware: token rejected: %v", err)
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					httputil.RespondError(w, r, http.StatusUnauthorized, services.CodeUnauthorized,
						"Token has expired", nil)
				case errors.Is(err, auth.ErrMalformedToken):
					httputil.RespondError(w, r, http.StatusUnauthorized, services.CodeUnauthorized,
						"Malformed token", nil)
				default:
					httputil.RespondError(w, r, http.StatusUnauthorized, services.CodeUnauthorized,
						"Invalid token", nil)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
