// Package service provides the credential business logic: registration,
// login and password reset, delegating persistence to a CredentialRepository
// and hashing to a PasswordHasher.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/credkeeper/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CredentialRepository defines the persistence operations
// required by the credential service.
type CredentialRepository interface {
	// FindByIdentifier returns the record stored under identifier,
	// or models.ErrNotFound.
	FindByIdentifier(ctx context.Context, identifier string) (*models.Credential, error)
	// Create stores a new record. It returns models.ErrAlreadyExists when the
	// identifier is taken; the check and the insert are a single atomic step.
	Create(ctx context.Context, cred *models.Credential) error
	// UpdatePasswordHash replaces the hash of an existing record,
	// or returns models.ErrNotFound.
	UpdatePasswordHash(ctx context.Context, identifier string, hash []byte) error
}

// Service implements credential operations.
type Service struct {
	repo   CredentialRepository
	hasher PasswordHasher
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService constructs a new Service using the provided repository and hasher.
// A nil hasher selects bcrypt at PasswordCost.
func NewAuthService(repo CredentialRepository, hasher PasswordHasher) *Service {
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	return &Service{repo: repo, hasher: hasher, now: time.Now}
}

// Register creates a credential for identifier with a hash of secret.
func (s *Service) Register(ctx context.Context, identifier, secret string) (*models.Credential, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, invalid("identifier and secret are required")
	}

	hash, err := s.hash(secret)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	cred := &models.Credential{
		ID:           uuid.NewString(),
		Identifier:   identifier,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return cred, nil
}

// Login verifies secret against the record stored for identifier.
// Unknown identifiers and wrong secrets both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, identifier, secret string) (*models.Credential, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, invalid("identifier and secret are required")
	}

	cred, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn a comparable amount of work so misses and mismatches look alike.
			_, _ = s.hasher.Compare(s.dummy(), secret)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	ok, err := s.hasher.Compare(cred.PasswordHash, secret)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return cred, nil
}

// ResetPassword replaces the secret of an already authenticated identifier.
// The caller must have established identifier from a session or token.
func (s *Service) ResetPassword(ctx context.Context, identifier, oldSecret, newSecret, confirmSecret string) error {
	if identifier == "" {
		return ErrInvalidCredentials
	}
	if oldSecret == "" || newSecret == "" || confirmSecret == "" {
		return invalid("oldSecret, newSecret and confirmSecret are required")
	}
	if newSecret != confirmSecret {
		return invalid("new secret and confirmation do not match")
	}
	if newSecret == oldSecret {
		return invalid("new secret must differ from the old one")
	}

	cred, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrStore, err)
	}

	ok, err := s.hasher.Compare(cred.PasswordHash, oldSecret)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	hash, err := s.hash(newSecret)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, identifier, hash); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}

// Seed creates the default credential unless it already exists.
// It reports whether a record was created. Empty values disable seeding.
func (s *Service) Seed(ctx context.Context, identifier, secret string) (bool, error) {
	if strings.TrimSpace(identifier) == "" || secret == "" {
		return false, nil
	}
	_, err := s.Register(ctx, identifier, secret)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrConflict):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) hash(secret string) ([]byte, error) {
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, invalid("secret is too long")
		}
		return nil, fmt.Errorf("hash secret: %w", err)
	}
	return hash, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(uuid.NewString())
	})
	return s.dummyHash
}
