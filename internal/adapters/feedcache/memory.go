package feedcache

import (
	"context"
	"sync"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/ports"
)

type memoryEntry struct {
	bars    []domain.Bar
	expires time.Time
}

// MemoryBackend is a process-local Backend.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]domain.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, ports.ErrCacheMiss
	}
	return append([]domain.Bar(nil), e.bars...), nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, bars []domain.Bar, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{bars: append([]domain.Bar(nil), bars...), expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
