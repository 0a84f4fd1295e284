package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/credkeeper/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces credential keys.
const DefaultRedisKeyPrefix = "credkeeper:credential:"

// redisCredential is the JSON document stored under each key.
type redisCredential struct {
	ID           string    `json:"id"`
	Identifier   string    `json:"identifier"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RedisCredentialRepository stores one JSON document per identifier in Redis.
type RedisCredentialRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCredentialRepository wraps client. An empty prefix selects DefaultRedisKeyPrefix.
func NewRedisCredentialRepository(client redis.UniversalClient, prefix string) *RedisCredentialRepository {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisCredentialRepository{client: client, prefix: prefix}
}

func (r *RedisCredentialRepository) key(identifier string) string {
	return r.prefix + identifier
}

func (r *RedisCredentialRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.Credential, error) {
	data, err := r.client.Get(ctx, r.key(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return decodeRedisCredential(data)
}

// Create uses SETNX so concurrent registrations of one identifier cannot both succeed.
func (r *RedisCredentialRepository) Create(ctx context.Context, cred *models.Credential) error {
	data, err := json.Marshal(redisCredential{
		ID:           cred.ID,
		Identifier:   cred.Identifier,
		PasswordHash: string(cred.PasswordHash),
		CreatedAt:    cred.CreatedAt,
		UpdatedAt:    cred.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	ok, err := r.client.SetNX(ctx, r.key(cred.Identifier), data, 0).Result()
	if err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	if !ok {
		return models.ErrAlreadyExists
	}
	return nil
}

// UpdatePasswordHash rewrites the document inside a WATCH transaction; a
// concurrent writer makes the transaction fail with redis.TxFailedErr.
func (r *RedisCredentialRepository) UpdatePasswordHash(ctx context.Context, identifier string, hash []byte) error {
	key := r.key(identifier)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return models.ErrNotFound
			}
			return err
		}
		cred, err := decodeRedisCredential(data)
		if err != nil {
			return err
		}
		updated, err := json.Marshal(redisCredential{
			ID:           cred.ID,
			Identifier:   cred.Identifier,
			PasswordHash: string(hash),
			CreatedAt:    cred.CreatedAt,
			UpdatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update credential: %w", err)
	}
	return nil
}

func decodeRedisCredential(data []byte) (*models.Credential, error) {
	var rc redisCredential
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return &models.Credential{
		ID:           rc.ID,
		Identifier:   rc.Identifier,
		PasswordHash: []byte(rc.PasswordHash),
		CreatedAt:    rc.CreatedAt,
		UpdatedAt:    rc.UpdatedAt,
	}, nil
}
