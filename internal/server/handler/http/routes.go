package http

import (
	"net/http"

	"github.com/atinyakov/credkeeper/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions tunes NewRouter.
type RouterOptions struct {
	// AllowedOrigins feeds the CORS middleware. Empty disables CORS headers.
	AllowedOrigins []string
}

// NewRouter constructs and returns an HTTP handler that serves the
// credential API.
//
// Routes:
//
//	GET  /health          → 200 {"status":"ok"}
//	POST /register        → authHandler.Register
//	POST /login           → authHandler.Login
//	POST /reset-password  → authHandler.ResetPassword (requires identity)
//
// Middleware chain (applied in order): RequestID, request logging,
// Recoverer, CORS, and AllowContentType("application/json") on the POST group.
func NewRouter(authHandler *AuthHandler, logger *zap.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: !allowsAny(opts.AllowedOrigins),
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		// Only allow requests with Content-Type: application/json
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		r.With(middleware.RequireIdentity(authHandler.Issuer)).
			Post("/reset-password", authHandler.ResetPassword)
	})

	return r
}

func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
