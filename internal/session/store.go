// Package session implements a server-side gorilla/sessions Store. The cookie
// carries only a signed opaque session id; the session values live in a
// Backend (memory, Redis or PostgreSQL) and expire with the cookie.
package session

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// ErrNotFound is returned by backends for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is used when a session's MaxAge is zero (browser-session cookie).
const DefaultTTL = 24 * time.Hour

// Backend persists serialized session values keyed by session id.
type Backend interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Store implements sessions.Store over a Backend.
type Store struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options

	backend    Backend
	serializer securecookie.GobEncoder
}

var _ sessions.Store = (*Store)(nil)

// NewStore returns a Store whose cookie values are signed (and optionally
// encrypted) with keyPairs, as in securecookie.CodecsFromPairs.
func NewStore(backend Backend, keyPairs ...[]byte) *Store {
	return &Store{
		Codecs: securecookie.CodecsFromPairs(keyPairs...),
		Options: &sessions.Options{
			Path:     "/",
			MaxAge:   int(DefaultTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		backend: backend,
	}
}

// Get returns the session cached in the request registry, loading it on first use.
func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns a session for name. An unknown, expired or tampered cookie
// yields a fresh session; tampering is also reported as an error.
func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &session.ID, s.Codecs...); err != nil {
		session.ID = ""
		return session, err
	}

	data, err := s.backend.Load(r.Context(), session.ID)
	if err != nil {
		session.ID = ""
		if errors.Is(err, ErrNotFound) {
			return session, nil
		}
		return session, fmt.Errorf("load session: %w", err)
	}
	if err := s.serializer.Deserialize(data, &session.Values); err != nil {
		session.ID = ""
		return session, fmt.Errorf("decode session: %w", err)
	}
	session.IsNew = false
	return session, nil
}

// Save persists the session and writes its cookie. A negative MaxAge deletes
// the stored values and expires the cookie.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	ctx := r.Context()

	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.backend.Delete(ctx, session.ID); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = newID()
	}

	data, err := s.serializer.Serialize(session.Values)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ttl := time.Duration(session.Options.MaxAge) * time.Second
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if err := s.backend.Save(ctx, session.ID, data, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Delete removes the stored values of session id. The cookie is left untouched.
func (s *Store) Delete(r *http.Request, id string) error {
	if id == "" {
		return nil
	}
	if err := s.backend.Delete(r.Context(), id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func newID() string {
	return strings.TrimRight(base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
}
