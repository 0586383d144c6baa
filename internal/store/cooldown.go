package store

import (
	"context"
	"sync"
	"time"
)

// MemoryCooldownStore implements the cooldown check-and-mark with a mutex.
// The check and the mark happen under one lock acquisition, so two
// concurrent high-risk detections for the same user cannot both win.
type MemoryCooldownStore struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewMemoryCooldownStore returns the default in-process cooldown store.
func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// TryAcquire marks userID as escalated when no unexpired mark exists.
func (s *MemoryCooldownStore) TryAcquire(_ context.Context, userID string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.last[userID]; ok && now.Sub(last) < window {
		return false, nil
	}
	s.last[userID] = now
	return true, nil
}

func (s *MemoryCooldownStore) Close() error { return nil }

// SetClock overrides the time source, for tests.
func (s *MemoryCooldownStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}
