package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atinyakov/credkeeper/internal/models"
)

const (
	selectCredentialSQL = `SELECT id, identifier, password_hash, created_at, updated_at FROM credentials WHERE identifier = $1`
	insertCredentialSQL = `INSERT INTO credentials (id, identifier, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (identifier) DO NOTHING`
	updateCredentialSQL = `UPDATE credentials SET password_hash = $2, updated_at = $3 WHERE identifier = $1`
)

func setupCredentialMock(t *testing.T) (*PostgresCredentialRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresCredentialRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func TestFindByIdentifier_Found(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(selectCredentialSQL)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identifier", "password_hash", "created_at", "updated_at"}).
			AddRow("id-1", "alice", []byte("hash"), now, now))

	cred, err := repo.FindByIdentifier(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.ID != "id-1" || cred.Identifier != "alice" || string(cred.PasswordHash) != "hash" {
		t.Errorf("unexpected credential: %+v", cred)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestFindByIdentifier_NotFound(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(selectCredentialSQL)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByIdentifier(context.Background(), "ghost")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected models.ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestFindByIdentifier_Error(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(selectCredentialSQL)).
		WithArgs("alice").
		WillReturnError(errors.New("query failed"))

	_, err := repo.FindByIdentifier(context.Background(), "alice")
	if err == nil || errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected wrapped driver error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	now := time.Now().UTC()
	cred := &models.Credential{ID: "id-1", Identifier: "alice", PasswordHash: []byte("hash"), CreatedAt: now, UpdatedAt: now}
	mock.ExpectExec(regexp.QuoteMeta(insertCredentialSQL)).
		WithArgs("id-1", "alice", []byte("hash"), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), cred); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(insertCredentialSQL)).
		WithArgs(sqlmock.AnyArg(), "alice", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), &models.Credential{ID: "id-2", Identifier: "alice"})
	if !errors.Is(err, models.ErrAlreadyExists) {
		t.Fatalf("expected models.ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreate_Error(t *testing.T) {
	repo, mock, cleanup := setupCredentialMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(insertCredentialSQL)).
		WillReturnError(errors.New("insert failed"))

	err := repo.Create(context.Background(), &models.Credential{ID: "id-3", Identifier: "bob"})
	if err == nil || errors.Is(err, models.ErrAlreadyExists) {
		t.Errorf("expected driver error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	tests := []struct {
		name    string
		result  driver.Result
		execErr error
		wantErr error
		anyErr  bool
	}{
		{name: "updated", result: sqlmock.NewResult(0, 1)},
		{name: "missing row", result: sqlmock.NewResult(0, 0), wantErr: models.ErrNotFound},
		{name: "driver error", execErr: errors.New("boom"), anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupCredentialMock(t)
			defer cleanup()

			exp := mock.ExpectExec(regexp.QuoteMeta(updateCredentialSQL)).
				WithArgs("alice", []byte("new"), sqlmock.AnyArg())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err := repo.UpdatePasswordHash(context.Background(), "alice", []byte("new"))
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			case tt.anyErr:
				if err == nil {
					t.Error("expected error, got nil")
				}
			default:
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}
