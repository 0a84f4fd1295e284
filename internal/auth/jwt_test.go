package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var secret = []byte("test-secret")

func TestSignAndParseToken(t *testing.T) {
	tok, err := SignToken(secret, "alice", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("SignToken error: %v", err)
	}

	id, err := ParseToken(secret, tok)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if id != "alice" {
		t.Fatalf("identifier = %q; want %q", id, "alice")
	}
}

func TestParseToken_Rejects(t *testing.T) {
	expired, _ := SignToken(secret, "alice", time.Minute, time.Now().Add(-time.Hour))
	otherKey, _ := SignToken([]byte("other"), "alice", time.Hour, time.Now())
	noSubject, _ := SignToken(secret, "", time.Hour, time.Now())

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	foreignIssuer, _ := foreign.SignedString(secret)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: DefaultIssuer, Subject: "alice"})
	noExpiry, _ := noExp.SignedString(secret)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    DefaultIssuer,
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"expired":        expired,
		"wrong key":      otherKey,
		"empty subject":  noSubject,
		"foreign issuer": foreignIssuer,
		"no expiry":      noExpiry,
		"alg none":       unsigned,
		"garbage":        "not.a.token",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(secret, tok)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
