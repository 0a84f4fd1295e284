package session

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresBackend stores sessions in the sessions table. Expired rows are
// ignored on load and removed by db.StartSessionSweeper.
type PostgresBackend struct {
	DB *sql.DB
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{DB: db}
}

func (b *PostgresBackend) Load(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := b.DB.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE id = $1 AND expires_at > $2`,
		id, time.Now().UTC(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *PostgresBackend) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	_, err := b.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, data, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`,
		id, data, time.Now().UTC().Add(ttl),
	)
	return err
}

func (b *PostgresBackend) Delete(ctx context.Context, id string) error {
	_, err := b.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}
