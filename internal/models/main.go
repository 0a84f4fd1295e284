// Package models defines the core data structures for stored credentials.
package models

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when no record matches the identifier.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by repositories when a record with the
	// same identifier is already stored.
	ErrAlreadyExists = errors.New("already exists")
)

// Credential is the stored record for one identity.
type Credential struct {
	// ID is the unique identifier of the record (UUID v4).
	ID string `json:"id"`
	// Identifier is the login name; unique across the store.
	Identifier string `json:"identifier"`
	// PasswordHash is the bcrypt hash of the secret. It is never serialized.
	PasswordHash []byte `json:"-"`
	// CreatedAt is when the record was first stored.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the hash was last replaced.
	UpdatedAt time.Time `json:"updated_at"`
}
