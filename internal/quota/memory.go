package quota

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore is an in-process rolling-window counter keyed by a
// caller-supplied identifier (client IP, user id). It is per-instance only:
// multiple instances behind a load balancer each count independently, so its
// guarantee is best-effort rather than a global cap.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
	stop    chan struct{}
}

// NewMemoryStore creates an isolated store. Each instance owns its own map,
// so tests can construct throwaway stores instead of sharing process state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// StartSweeper launches a background sweep that drops expired entries on a
// fixed period, bounding memory growth. Call Close to stop it.
func (s *MemoryStore) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *MemoryStore) Close() {
	close(s.stop)
}

// Sweep removes every entry whose window has already ended.
func (s *MemoryStore) Sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if now.After(entry.resetAt) {
			delete(s.entries, key)
		}
	}
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Check(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: now.Add(window)}, nil
	}

	remaining := limit - entry.count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   entry.count < limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   entry.resetAt,
	}, nil
}

func (s *MemoryStore) Consume(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		resetAt := now.Add(window)
		s.entries[key] = &memoryEntry{count: 1, resetAt: resetAt}
		return Decision{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: resetAt}, nil
	}

	if entry.count >= limit {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: entry.resetAt}, nil
	}

	entry.count++
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - entry.count,
		ResetAt:   entry.resetAt,
	}, nil
}
