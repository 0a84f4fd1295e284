package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotLoggedIn is returned by ResetPassword when no login was recorded.
var ErrNotLoggedIn = errors.New("not logged in: run the login command first")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
}

// API talks to one credential server.
type API struct {
	BaseURL string
	HTTP    *http.Client
	State   *State
}

// NewAPI returns an API for baseURL using httpClient and st.
func NewAPI(baseURL string, httpClient *http.Client, st *State) *API {
	if st == nil {
		st = &State{}
	}
	return &API{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient, State: st}
}

type credentialsBody struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type resetBody struct {
	OldSecret     string `json:"oldSecret"`
	NewSecret     string `json:"newSecret"`
	ConfirmSecret string `json:"confirmSecret"`
}

type messageBody struct {
	Message    string `json:"message"`
	Identifier string `json:"identifier"`
	Token      string `json:"token"`
}

// Register creates a credential and returns the server message.
func (a *API) Register(ctx context.Context, identifier, secret string) (string, error) {
	msg, _, err := a.post(ctx, "/register", credentialsBody{identifier, secret}, false)
	if err != nil {
		return "", err
	}
	return msg.Message, nil
}

// Login verifies the credential and records the issued token and cookies in State.
func (a *API) Login(ctx context.Context, identifier, secret string) (string, error) {
	msg, resp, err := a.post(ctx, "/login", credentialsBody{identifier, secret}, false)
	if err != nil {
		return "", err
	}
	a.State.remember(a.BaseURL, msg.Identifier, msg.Token, resp.Cookies())
	return msg.Message, nil
}

// ResetPassword changes the secret of the identity recorded by Login.
func (a *API) ResetPassword(ctx context.Context, oldSecret, newSecret, confirmSecret string) (string, error) {
	if a.State.Token == "" && len(a.State.Cookies) == 0 {
		return "", ErrNotLoggedIn
	}
	msg, _, err := a.post(ctx, "/reset-password", resetBody{oldSecret, newSecret, confirmSecret}, true)
	if err != nil {
		return "", err
	}
	return msg.Message, nil
}

func (a *API) post(ctx context.Context, path string, payload any, authenticated bool) (*messageBody, *http.Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		a.State.apply(req)
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s failed: %w", strings.TrimPrefix(path, "/"), err)
	}
	defer resp.Body.Close()

	var msg messageBody
	decodeErr := json.NewDecoder(resp.Body).Decode(&msg)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &APIError{Status: resp.StatusCode, Message: msg.Message}
	}
	if decodeErr != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	return &msg, resp, nil
}
