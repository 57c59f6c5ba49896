package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and early development.
//
// NOTE: not for production; multiple API processes must share one Redis.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

type memoryEntry struct {
	value    string
	expireAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, clock: time.Now}
}

// SetClock overrides the store clock; test helper.
func (s *MemoryStore) SetClock(clock func() time.Time) { s.clock = clock }

func (s *MemoryStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if e, ok := s.entries[key]; ok && now.Before(e.expireAt) {
		return false, nil
	}
	s.entries[key] = memoryEntry{value: value, expireAt: now.Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !s.clock().Before(e.expireAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
