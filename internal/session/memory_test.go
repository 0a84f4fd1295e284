package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atinyakov/credkeeper/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryBackend_Purge(t *testing.T) {
	backend := NewMemoryBackend()
	now := time.Now()
	backend.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, backend.Save(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, backend.Save(ctx, "long", []byte("b"), time.Hour))

	assert.Equal(t, 0, backend.Purge())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, backend.Purge())
	assert.Len(t, backend.entries, 1)
	assert.Contains(t, backend.entries, "long")
}

func TestMemoryBackend_StartPurger(t *testing.T) {
	backend := NewMemoryBackend()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, backend.Save(ctx, "gone", []byte("a"), -time.Second))
	backend.StartPurger(ctx, 5*time.Millisecond, zap.NewNop())

	assert.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.entries) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryBackend_RepeatedLoginsKeepOneEntry(t *testing.T) {
	backend := NewMemoryBackend()
	now := time.Now()
	backend.now = func() time.Time { return now }
	iss := auth.NewSessionIssuer(NewStore(backend, hashKey), auth.CookieOptions{TTL: time.Hour})

	var cookie *http.Cookie
	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		_, err := iss.Issue(rec, req, "alice")
		require.NoError(t, err)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		cookie = cookies[0]
	}
	assert.Len(t, backend.entries, 1, "previous sessions are dropped on login")

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, backend.Purge())
	assert.Empty(t, backend.entries)
}
