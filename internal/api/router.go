package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"avatarchat-backend/internal/config"
	"avatarchat-backend/internal/handlers"
	"avatarchat-backend/internal/services"
)

// RouterDependencies holds everything the router needs wired in.
type RouterDependencies struct {
	ChatHandler  *handlers.ChatHandlers
	TokenHandler *handlers.TokenHandlers
	RelayHandler *handlers.RelayHandlers
	TokenService *services.TokenService
	Config       *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID) // Request id doubles as the trace id in responses
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(deps.Config.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Chat API ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", deps.ChatHandler.HandleChat)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", deps.ChatHandler.HandleCreateSession)
			r.Get("/", deps.ChatHandler.HandleListSessions)
			r.Get("/{sessionID}/history", deps.ChatHandler.HandleGetHistory)
			r.Delete("/{sessionID}/history", deps.ChatHandler.HandleDeleteHistory)
		})

		r.Get("/health", deps.ChatHandler.HandleHealth)
		r.Get("/healthz", deps.ChatHandler.HandleHealthz)
	})

	// --- Token issuance (public; guarded by the client credential check) ---
	r.Route("/url", func(r chi.Router) {
		r.Post("/token", deps.TokenHandler.HandleIssueToken)
	})

	// --- Speech / avatar relay proxies (bearer token required) ---
	r.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(deps.TokenService))
		r.Get("/token", deps.RelayHandler.HandleSpeechToken)
		r.Get("/ice-token", deps.RelayHandler.HandleICEToken)
	})

	return r
}
