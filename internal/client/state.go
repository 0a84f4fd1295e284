package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
)

// DefaultStateFile is written in the working directory.
const DefaultStateFile = ".credkeeper.json"

// StoredCookie is the part of an http.Cookie worth replaying.
type StoredCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// State is what the client remembers between invocations.
type State struct {
	BaseURL    string         `json:"base_url"`
	Identifier string         `json:"identifier"`
	Token      string         `json:"token,omitempty"`
	Cookies    []StoredCookie `json:"cookies,omitempty"`
}

// LoadState reads path. A missing file yields an empty state.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

// Save writes the state with owner-only permissions since it holds credentials.
func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0o600)
}

// remember replaces the stored identity with what a login response issued.
func (s *State) remember(baseURL, identifier, token string, cookies []*http.Cookie) {
	s.BaseURL = baseURL
	s.Identifier = identifier
	s.Token = token
	s.Cookies = s.Cookies[:0]
	for _, c := range cookies {
		if c.MaxAge < 0 || c.Value == "" {
			continue
		}
		s.Cookies = append(s.Cookies, StoredCookie{Name: c.Name, Value: c.Value})
	}
}

// apply attaches the stored identity to req.
func (s *State) apply(req *http.Request) {
	for _, c := range s.Cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
}
