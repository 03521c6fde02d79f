package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process fallback used when no Redis URL is
// configured. Sessions then live and die with the process, which matches
// the one-browsing-session lifetime anyway.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

// SetClock overrides the expiry clock. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Save(ctx context.Context, jti string, data Data, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data.CreatedAt.IsZero() {
		data.CreatedAt = s.now()
	}
	s.sessions[jti] = memoryEntry{data: data, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Lookup(ctx context.Context, jti string) (Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[jti]
	if !ok {
		return Data{}, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		return Data{}, ErrNotFound
	}
	return entry.data, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, jti)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
