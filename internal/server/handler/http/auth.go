// Package http provides the JSON HTTP handlers for registration, login and
// password reset, and the router that serves them.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/credkeeper/internal/auth"
	"github.com/atinyakov/credkeeper/internal/middleware"
	"github.com/atinyakov/credkeeper/internal/models"
	"github.com/atinyakov/credkeeper/internal/service"
	"go.uber.org/zap"
)

// AuthService defines the credential operations required by the HTTP handlers.
type AuthService interface {
	Register(ctx context.Context, identifier, secret string) (*models.Credential, error)
	Login(ctx context.Context, identifier, secret string) (*models.Credential, error)
	ResetPassword(ctx context.Context, identifier, oldSecret, newSecret, confirmSecret string) error
}

// AuthHandler handles HTTP requests for registration, login and password reset.
type AuthHandler struct {
	// AuthService performs the underlying credential operations.
	AuthService AuthService
	// Issuer establishes the session or token after a successful login.
	Issuer auth.Issuer
	// Logger records failures that are not reported to the client.
	Logger *zap.Logger
}

// CredentialsRequest is the body of /register and /login. The userId and
// password keys are accepted as aliases of identifier and secret.
type CredentialsRequest struct {
	Identifier string `json:"identifier"`
	UserID     string `json:"userId"`
	Secret     string `json:"secret"`
	Password   string `json:"password"`
}

func (c CredentialsRequest) identifier() string {
	if c.Identifier != "" {
		return c.Identifier
	}
	return c.UserID
}

func (c CredentialsRequest) secret() string {
	if c.Secret != "" {
		return c.Secret
	}
	return c.Password
}

// ResetPasswordRequest is the body of /reset-password. The identifier is
// taken from the authenticated session or token, never from the body.
type ResetPasswordRequest struct {
	OldSecret     string `json:"oldSecret"`
	NewSecret     string `json:"newSecret"`
	ConfirmSecret string `json:"confirmSecret"`
}

// LoginResponse is returned on a successful login. Token is set in token mode.
type LoginResponse struct {
	Message    string `json:"message"`
	Identifier string `json:"identifier"`
	Token      string `json:"token,omitempty"`
}

const (
	msgInvalidBody        = "Invalid request body."
	msgInvalidCredentials = "Invalid credentials."
	msgConflict           = "Identifier already registered."
	msgNotFound           = "Account not found."
	msgInternal           = "Internal server error."
	msgBodyTooLarge       = "Request body too large."
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// readJSON decodes the request body into v and writes the error response
// itself. It reports whether the handler should continue.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeMessage(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		return false
	}
	writeMessage(w, http.StatusBadRequest, msgInvalidBody)
	return false
}

// Register creates a credential and responds 201.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !readJSON(w, r, &req) {
		return
	}

	cred, err := h.AuthService.Register(r.Context(), req.identifier(), req.secret())
	if err != nil {
		h.writeError(w, r, "register", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message":    "User registered successfully.",
		"identifier": cred.Identifier,
	})
}

// Login verifies the credential and issues a session cookie or token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !readJSON(w, r, &req) {
		return
	}

	cred, err := h.AuthService.Login(r.Context(), req.identifier(), req.secret())
	if err != nil {
		h.writeError(w, r, "login", err)
		return
	}

	token, err := h.Issuer.Issue(w, r, cred.Identifier)
	if err != nil {
		h.logger().Error("failed to issue identity", zap.String("identifier", cred.Identifier), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Message:    "Login successful.",
		Identifier: cred.Identifier,
		Token:      token,
	})
}

// ResetPassword changes the secret of the authenticated identifier.
// It must be mounted behind middleware.RequireIdentity.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !readJSON(w, r, &req) {
		return
	}

	identifier := middleware.GetIdentifierFromContext(r.Context())
	err := h.AuthService.ResetPassword(r.Context(), identifier, req.OldSecret, req.NewSecret, req.ConfirmSecret)
	if err != nil {
		h.writeError(w, r, "reset password", err)
		return
	}

	writeMessage(w, http.StatusOK, "Password updated successfully.")
}

// writeError maps service errors to status codes. Internal error text is
// logged and never sent to the client.
func (h *AuthHandler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeMessage(w, http.StatusBadRequest, vErr.Reason)
	case errors.Is(err, service.ErrConflict):
		writeMessage(w, http.StatusConflict, msgConflict)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, service.ErrNotFound):
		writeMessage(w, http.StatusNotFound, msgNotFound)
	default:
		h.logger().Error(op+" failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

func (h *AuthHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
