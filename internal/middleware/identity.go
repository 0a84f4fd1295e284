// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

type ctxKey string

const identifierKey ctxKey = "identifier"

// Identifier resolves the authenticated identifier of a request.
// auth.TokenIssuer and auth.SessionIssuer implement it.
type Identifier interface {
	Identify(r *http.Request) (string, error)
}

// RequireIdentity rejects requests that carry no valid session or token
// with 401 and a JSON message. On success the identifier is stored in the
// request context for GetIdentifierFromContext.
func RequireIdentity(id Identifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier, err := id.Identify(r)
			if err != nil || identifier == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "Authentication required."})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentifier(r.Context(), identifier)))
		})
	}
}

// WithIdentifier returns a copy of ctx carrying identifier.
func WithIdentifier(ctx context.Context, identifier string) context.Context {
	return context.WithValue(ctx, identifierKey, identifier)
}

// GetIdentifierFromContext extracts the authenticated identifier from the
// request context. Returns an empty string if not found.
func GetIdentifierFromContext(ctx context.Context) string {
	val := ctx.Value(identifierKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
