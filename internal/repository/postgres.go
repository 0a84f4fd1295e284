// Package repository provides persistence implementations for credential records.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/credkeeper/internal/models"
)

// PostgresCredentialRepository implements credential storage using a PostgreSQL database.
type PostgresCredentialRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresCredentialRepository creates a new PostgresCredentialRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance with the credentials table migrated.
func NewPostgresCredentialRepository(db *sql.DB) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{DB: db}
}

// FindByIdentifier loads the record stored under identifier.
// It returns models.ErrNotFound when no row matches.
func (r *PostgresCredentialRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.Credential, error) {
	cred := &models.Credential{}
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT id, identifier, password_hash, created_at, updated_at FROM credentials WHERE identifier = $1`,
		identifier,
	).Scan(&cred.ID, &cred.Identifier, &cred.PasswordHash, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return cred, nil
}

// Create inserts cred. The ON CONFLICT DO NOTHING clause makes the uniqueness
// check and the insert one statement; zero affected rows means the identifier is taken.
func (r *PostgresCredentialRepository) Create(ctx context.Context, cred *models.Credential) error {
	res, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO credentials (id, identifier, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (identifier) DO NOTHING`,
		cred.ID, cred.Identifier, cred.PasswordHash, cred.CreatedAt, cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	if rows == 0 {
		return models.ErrAlreadyExists
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash for identifier.
func (r *PostgresCredentialRepository) UpdatePasswordHash(ctx context.Context, identifier string, hash []byte) error {
	res, err := r.DB.ExecContext(
		ctx,
		`UPDATE credentials SET password_hash = $2, updated_at = $3 WHERE identifier = $1`,
		identifier, hash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}
