package repository

import (
	"context"
	"sync"
	"time"

	"github.com/atinyakov/credkeeper/internal/models"
)

// MemoryCredentialRepository keeps credentials in a process-local map.
type MemoryCredentialRepository struct {
	mu    sync.RWMutex
	creds map[string]models.Credential
}

// NewMemoryCredentialRepository returns an empty in-memory repository.
func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{creds: make(map[string]models.Credential)}
}

// FindByIdentifier returns a copy of the stored record.
func (r *MemoryCredentialRepository) FindByIdentifier(_ context.Context, identifier string) (*models.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.creds[identifier]
	if !ok {
		return nil, models.ErrNotFound
	}
	cred.PasswordHash = append([]byte(nil), cred.PasswordHash...)
	return &cred, nil
}

func (r *MemoryCredentialRepository) Create(_ context.Context, cred *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.creds[cred.Identifier]; ok {
		return models.ErrAlreadyExists
	}
	c := *cred
	c.PasswordHash = append([]byte(nil), cred.PasswordHash...)
	r.creds[cred.Identifier] = c
	return nil
}

func (r *MemoryCredentialRepository) UpdatePasswordHash(_ context.Context, identifier string, hash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.creds[identifier]
	if !ok {
		return models.ErrNotFound
	}
	cred.PasswordHash = append([]byte(nil), hash...)
	cred.UpdatedAt = time.Now().UTC()
	r.creds[identifier] = cred
	return nil
}
