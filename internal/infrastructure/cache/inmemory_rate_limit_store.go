package cache

import (
	"context"
	"sync"
	"time"
)

// window tracks the hit count for a key and when the window resets
type window struct {
	count   int64
	resetAt time.Time
}

// InMemoryRateLimitStore implements RateLimitStore using an in-memory map.
// This is suitable for single-instance deployments and testing.
type InMemoryRateLimitStore struct {
	mu        sync.Mutex
	windows   map[string]*window
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryRateLimitStore creates a new in-memory rate-limit store.
// It starts a background goroutine to clean up expired windows.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	store := &InMemoryRateLimitStore{
		windows:  make(map[string]*window),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Hit records one hit against the key and returns the count in the
// current window. An expired window is replaced by a fresh one.
func (s *InMemoryRateLimitStore) Hit(_ context.Context, key string, windowDur time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, exists := s.windows[key]
	if !exists || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(windowDur)}
		s.windows[key] = w
	}

	w.count++
	return w.count, nil
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times.
func (s *InMemoryRateLimitStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired windows
func (s *InMemoryRateLimitStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired windows from the store
func (s *InMemoryRateLimitStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

// Size returns the number of tracked windows (for testing/monitoring)
func (s *InMemoryRateLimitStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Ensure InMemoryRateLimitStore implements RateLimitStore
var _ RateLimitStore = (*InMemoryRateLimitStore)(nil)
