package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/atinyakov/credkeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockCredentialRepo struct {
	FindFunc   func(ctx context.Context, identifier string) (*models.Credential, error)
	CreateFunc func(ctx context.Context, cred *models.Credential) error
	UpdateFunc func(ctx context.Context, identifier string, hash []byte) error
}

func (m *mockCredentialRepo) FindByIdentifier(ctx context.Context, identifier string) (*models.Credential, error) {
	return m.FindFunc(ctx, identifier)
}

func (m *mockCredentialRepo) Create(ctx context.Context, cred *models.Credential) error {
	return m.CreateFunc(ctx, cred)
}

func (m *mockCredentialRepo) UpdatePasswordHash(ctx context.Context, identifier string, hash []byte) error {
	return m.UpdateFunc(ctx, identifier, hash)
}

// plainHasher keeps tests fast; it is obviously not for production.
type plainHasher struct {
	compared int
}

func (h *plainHasher) Hash(secret string) ([]byte, error) {
	return []byte("h:" + secret), nil
}

func (h *plainHasher) Compare(hash []byte, secret string) (bool, error) {
	h.compared++
	return string(hash) == "h:"+secret, nil
}

func stored(identifier, secret string) *models.Credential {
	return &models.Credential{ID: "id-" + identifier, Identifier: identifier, PasswordHash: []byte("h:" + secret)}
}

func TestRegister_Success(t *testing.T) {
	var got *models.Credential
	repo := &mockCredentialRepo{
		CreateFunc: func(ctx context.Context, cred *models.Credential) error {
			got = cred
			return nil
		},
	}
	svc := NewAuthService(repo, &plainHasher{})

	cred, err := svc.Register(context.Background(), "  alice ", "Secret1!")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Identifier)
	assert.Equal(t, []byte("h:Secret1!"), got.PasswordHash)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Same(t, got, cred)
}

func TestRegister_Validation(t *testing.T) {
	repo := &mockCredentialRepo{
		CreateFunc: func(ctx context.Context, cred *models.Credential) error {
			t.Fatal("Create must not be called on invalid input")
			return nil
		},
	}
	svc := NewAuthService(repo, &plainHasher{})

	cases := []struct{ name, id, secret string }{
		{"empty identifier", "", "x"},
		{"blank identifier", "   ", "x"},
		{"empty secret", "alice", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.id, tc.secret)
			assert.ErrorIs(t, err, ErrValidation)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestRegister_Conflict(t *testing.T) {
	repo := &mockCredentialRepo{
		CreateFunc: func(ctx context.Context, cred *models.Credential) error {
			return models.ErrAlreadyExists
		},
	}
	svc := NewAuthService(repo, &plainHasher{})

	_, err := svc.Register(context.Background(), "alice", "Secret1!")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegister_StoreError(t *testing.T) {
	dbErr := errors.New("connection refused")
	repo := &mockCredentialRepo{
		CreateFunc: func(ctx context.Context, cred *models.Credential) error {
			return dbErr
		},
	}
	svc := NewAuthService(repo, &plainHasher{})

	_, err := svc.Register(context.Background(), "alice", "Secret1!")
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, dbErr)
}

func TestRegister_SecretTooLong(t *testing.T) {
	repo := &mockCredentialRepo{}
	svc := NewAuthService(repo, &BcryptHasher{Cost: bcrypt.MinCost})

	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.Register(context.Background(), "alice", string(long))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		secret  string
		find    func(ctx context.Context, identifier string) (*models.Credential, error)
		wantErr error
	}{
		{
			name:   "correct secret",
			id:     "alice",
			secret: "Secret1!",
			find: func(ctx context.Context, identifier string) (*models.Credential, error) {
				return stored("alice", "Secret1!"), nil
			},
		},
		{
			name:   "wrong secret",
			id:     "alice",
			secret: "wrong",
			find: func(ctx context.Context, identifier string) (*models.Credential, error) {
				return stored("alice", "Secret1!"), nil
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:   "unknown identifier",
			id:     "mallory",
			secret: "Secret1!",
			find: func(ctx context.Context, identifier string) (*models.Credential, error) {
				return nil, models.ErrNotFound
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:   "store failure",
			id:     "alice",
			secret: "Secret1!",
			find: func(ctx context.Context, identifier string) (*models.Credential, error) {
				return nil, errors.New("timeout")
			},
			wantErr: ErrStore,
		},
		{
			name:    "missing secret",
			id:      "alice",
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(&mockCredentialRepo{FindFunc: tt.find}, &plainHasher{})
			cred, err := svc.Login(context.Background(), tt.id, tt.secret)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, cred)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, cred.Identifier)
		})
	}
}

func TestLogin_UniformFailure(t *testing.T) {
	hasher := &plainHasher{}
	svc := NewAuthService(&mockCredentialRepo{
		FindFunc: func(ctx context.Context, identifier string) (*models.Credential, error) {
			if identifier == "alice" {
				return stored("alice", "Secret1!"), nil
			}
			return nil, models.ErrNotFound
		},
	}, hasher)

	_, errWrongSecret := svc.Login(context.Background(), "alice", "nope")
	_, errUnknown := svc.Login(context.Background(), "bob", "nope")

	assert.Equal(t, errWrongSecret.Error(), errUnknown.Error())
	assert.Equal(t, 2, hasher.compared, "a missing identifier must still run a hash comparison")
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name                 string
		identity             string
		oldS, newS, confirm  string
		findErr              error
		updateErr            error
		wantErr              error
		wantFind, wantUpdate bool
	}{
		{name: "success", identity: "alice", oldS: "Secret1!", newS: "NewPass2!", confirm: "NewPass2!", wantFind: true, wantUpdate: true},
		{name: "no identity", identity: "", oldS: "Secret1!", newS: "a", confirm: "a", wantErr: ErrInvalidCredentials},
		{name: "missing field", identity: "alice", oldS: "Secret1!", newS: "", confirm: "", wantErr: ErrValidation},
		{name: "confirmation mismatch", identity: "alice", oldS: "Secret1!", newS: "NewPass2!", confirm: "NewPass3!", wantErr: ErrValidation},
		{name: "same as old", identity: "alice", oldS: "Secret1!", newS: "Secret1!", confirm: "Secret1!", wantErr: ErrValidation},
		{name: "wrong old secret", identity: "alice", oldS: "bad", newS: "NewPass2!", confirm: "NewPass2!", wantErr: ErrInvalidCredentials, wantFind: true},
		{name: "record gone", identity: "alice", oldS: "Secret1!", newS: "NewPass2!", confirm: "NewPass2!", findErr: models.ErrNotFound, wantErr: ErrNotFound, wantFind: true},
		{name: "find fails", identity: "alice", oldS: "Secret1!", newS: "NewPass2!", confirm: "NewPass2!", findErr: errors.New("down"), wantErr: ErrStore, wantFind: true},
		{name: "update fails", identity: "alice", oldS: "Secret1!", newS: "NewPass2!", confirm: "NewPass2!", updateErr: errors.New("down"), wantErr: ErrStore, wantFind: true, wantUpdate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var found, updated bool
			var newHash []byte
			repo := &mockCredentialRepo{
				FindFunc: func(ctx context.Context, identifier string) (*models.Credential, error) {
					found = true
					if tt.findErr != nil {
						return nil, tt.findErr
					}
					return stored(identifier, "Secret1!"), nil
				},
				UpdateFunc: func(ctx context.Context, identifier string, hash []byte) error {
					updated = true
					newHash = hash
					return tt.updateErr
				},
			}
			svc := NewAuthService(repo, &plainHasher{})

			err := svc.ResetPassword(context.Background(), tt.identity, tt.oldS, tt.newS, tt.confirm)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, []byte("h:"+tt.newS), newHash)
			}
			assert.Equal(t, tt.wantFind, found, "store lookup")
			assert.Equal(t, tt.wantUpdate, updated, "store update")
		})
	}
}

func TestSeed(t *testing.T) {
	var creates int
	taken := false
	repo := &mockCredentialRepo{
		CreateFunc: func(ctx context.Context, cred *models.Credential) error {
			creates++
			if taken {
				return models.ErrAlreadyExists
			}
			taken = true
			return nil
		},
	}
	svc := NewAuthService(repo, &plainHasher{})
	ctx := context.Background()

	created, err := svc.Seed(ctx, "Ajay", "default-secret")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.Seed(ctx, "Ajay", "default-secret")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = svc.Seed(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, creates)
}

func TestBcryptHasher(t *testing.T) {
	h := &BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("Secret1!")
	require.NoError(t, err)
	assert.NotContains(t, string(hash), "Secret1!")

	ok, err := h.Compare(hash, "Secret1!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Compare([]byte("not-a-hash"), "x")
	assert.Error(t, err)

	longest := strings.Repeat("a", MaxSecretLen)
	hash, err = h.Hash(longest)
	require.NoError(t, err)
	ok, err = h.Compare(hash, longest)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.Compare(hash, longest+"anything")
	require.NoError(t, err)
	assert.False(t, ok, "bytes past the bcrypt limit must not be ignored")

	assert.Equal(t, 10, NewBcryptHasher().Cost)
}
