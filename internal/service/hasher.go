package service

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor used for every stored secret.
const PasswordCost = bcrypt.DefaultCost

// MaxSecretLen is the longest secret bcrypt hashes without truncation.
const MaxSecretLen = 72

// PasswordHasher derives and verifies one-way secret hashes.
type PasswordHasher interface {
	// Hash returns a salted hash of secret.
	Hash(secret string) ([]byte, error)
	// Compare reports whether secret matches hash. A mismatch is not an error.
	Compare(hash []byte, secret string) (bool, error)
}

// BcryptHasher implements PasswordHasher with golang.org/x/crypto/bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using PasswordCost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: PasswordCost}
}

func (h *BcryptHasher) Hash(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), h.Cost)
}

func (h *BcryptHasher) Compare(hash []byte, secret string) (bool, error) {
	// bcrypt only reads the first MaxSecretLen bytes; a longer secret can never have been stored.
	if len(secret) > MaxSecretLen {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
