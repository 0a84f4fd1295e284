package service

import "errors"

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when registering an identifier that is already taken.
	ErrConflict = errors.New("identifier already registered")
	// ErrInvalidCredentials is returned for any failed secret check. The message
	// is the same whether the identifier or the secret was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned when an authenticated identity has no stored record.
	ErrNotFound = errors.New("credential not found")
	// ErrStore wraps any failure of the underlying credential store.
	ErrStore = errors.New("credential store failure")
)

// ValidationError describes malformed or missing input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Is reports ErrValidation as a match so callers can test the category.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}
