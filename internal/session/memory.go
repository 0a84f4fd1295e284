package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryBackend keeps sessions in process memory. Expired entries are dropped
// on access and by Purge.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry), now: time.Now}
}

func (b *MemoryBackend) Load(_ context.Context, id string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !b.now().Before(e.expiresAt) {
		delete(b.entries, id)
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (b *MemoryBackend) Save(_ context.Context, id string, data []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[id] = memoryEntry{data: append([]byte(nil), data...), expiresAt: b.now().Add(ttl)}
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
	return nil
}

// Purge removes every expired entry and returns how many were removed.
func (b *MemoryBackend) Purge() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	for id, e := range b.entries {
		if !now.Before(e.expiresAt) {
			delete(b.entries, id)
			removed++
		}
	}
	return removed
}

// StartPurger runs Purge every interval until ctx is cancelled.
func (b *MemoryBackend) StartPurger(ctx context.Context, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := b.Purge(); removed > 0 {
					log.Info("purged expired sessions", zap.Int("removed", removed))
				}
			}
		}
	}()
}
