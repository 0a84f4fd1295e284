package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
)

const (
	// TokenCookieName holds the signed token in token mode.
	TokenCookieName = "credkeeper_token"
	// SessionCookieName holds the signed session id in session mode.
	SessionCookieName = "credkeeper_session"

	sessionKeyIdentifier = "identifier"
	sessionKeyIssuedAt   = "issued_at"
)

// ErrNoIdentity is returned when a request carries no valid session or token.
var ErrNoIdentity = errors.New("no authenticated identity")

// Issuer establishes identity after a successful login and resolves it on later requests.
type Issuer interface {
	// Issue binds identifier to the client. It returns the bearer token in
	// token mode and an empty string in session mode.
	Issue(w http.ResponseWriter, r *http.Request, identifier string) (string, error)
	// Identify returns the identifier proven by r, or ErrNoIdentity.
	Identify(r *http.Request) (string, error)
}

// CookieOptions are shared by both issuers.
type CookieOptions struct {
	Secure bool
	TTL    time.Duration
}

// TokenIssuer issues stateless HS256 tokens. Tokens are accepted from the
// cookie first, then from an Authorization: Bearer header.
type TokenIssuer struct {
	secret []byte
	opts   CookieOptions
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, opts CookieOptions) *TokenIssuer {
	return &TokenIssuer{secret: secret, opts: opts, now: time.Now}
}

func (i *TokenIssuer) Issue(w http.ResponseWriter, _ *http.Request, identifier string) (string, error) {
	token, err := SignToken(i.secret, identifier, i.opts.TTL, i.now())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(i.opts.TTL.Seconds()),
		HttpOnly: true,
		Secure:   i.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func (i *TokenIssuer) Identify(r *http.Request) (string, error) {
	if c, err := r.Cookie(TokenCookieName); err == nil && c.Value != "" {
		if id, err := ParseToken(i.secret, c.Value); err == nil {
			return id, nil
		}
	}
	if authz := r.Header.Get("Authorization"); authz != "" {
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if id, err := ParseToken(i.secret, strings.TrimSpace(parts[1])); err == nil {
				return id, nil
			}
		}
	}
	return "", ErrNoIdentity
}

// sessionDeleter is implemented by stores that can drop a session's server-side values.
type sessionDeleter interface {
	Delete(r *http.Request, id string) error
}

// SessionIssuer keeps identity in a server-side session addressed by an opaque cookie.
type SessionIssuer struct {
	store sessions.Store
	opts  CookieOptions
	now   func() time.Time
}

func NewSessionIssuer(store sessions.Store, opts CookieOptions) *SessionIssuer {
	return &SessionIssuer{store: store, opts: opts, now: time.Now}
}

func (i *SessionIssuer) Issue(w http.ResponseWriter, r *http.Request, identifier string) (string, error) {
	sess, err := i.store.Get(r, SessionCookieName)
	if err != nil && sess == nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	// Rotate the id on login so a pre-login session id is never promoted.
	if !sess.IsNew && sess.ID != "" {
		if d, ok := i.store.(sessionDeleter); ok {
			if err := d.Delete(r, sess.ID); err != nil {
				return "", fmt.Errorf("drop previous session: %w", err)
			}
		}
	}
	sess.ID = ""
	sess.Values = map[interface{}]interface{}{
		sessionKeyIdentifier: identifier,
		sessionKeyIssuedAt:   i.now().Unix(),
	}
	sess.Options.MaxAge = int(i.opts.TTL.Seconds())
	sess.Options.HttpOnly = true
	sess.Options.Secure = i.opts.Secure
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return "", nil
}

func (i *SessionIssuer) Identify(r *http.Request) (string, error) {
	sess, err := i.store.Get(r, SessionCookieName)
	if err != nil || sess == nil || sess.IsNew {
		return "", ErrNoIdentity
	}
	id, ok := sess.Values[sessionKeyIdentifier].(string)
	if !ok || id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}
