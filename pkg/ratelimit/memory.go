package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the in-process store drops stale windows.
const DefaultSweepInterval = 5 * time.Minute

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is the single-instance counter backend: a mutex-guarded map of
// window entries with a periodic sweep to bound memory. The check-and-increment
// happens under one lock acquisition, so concurrent requests sharing a key
// never lose updates.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates an in-process store sweeping at the given interval.
// A non-positive interval falls back to the default.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go s.sweepLoop(sweepInterval)
	return s
}

// Incr implements Store
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || !entry.resetAt.After(now) {
		// Fresh window; an entry whose deadline passed is discarded
		entry = &memoryEntry{count: 0, resetAt: now.Add(window)}
		s.entries[key] = entry
	}
	entry.count++

	return entry.count, entry.resetAt, nil
}

// Close stops the sweep goroutine
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// sweep removes entries whose window has closed
func (s *MemoryStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if !entry.resetAt.After(now) {
			delete(s.entries, key)
		}
	}
}
