package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/charlesng35/kiddies/internal/cache"
)

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

const memorySweepInterval = time.Minute

// memoryRateStore keeps fixed-window counters in process memory. Expired windows are swept
// during increments, at most once per memorySweepInterval.
type memoryRateStore struct {
	mu        sync.Mutex
	counters  map[string]memoryWindow
	now       func() time.Time
	lastSweep time.Time
}

type memoryWindow struct {
	count   int
	resetAt time.Time
}

// NewMemoryRateStore constructs a process-local rate store. It is safe for concurrent use.
func NewMemoryRateStore() RateStore {
	return newMemoryRateStore(time.Now)
}

func newMemoryRateStore(now func() time.Time) *memoryRateStore {
	return &memoryRateStore{
		counters:  make(map[string]memoryWindow),
		now:       now,
		lastSweep: now(),
	}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= memorySweepInterval {
		s.sweep(now)
	}

	w, ok := s.counters[key]
	if !ok || !now.Before(w.resetAt) {
		w = memoryWindow{resetAt: now.Add(window)}
	}
	w.count++
	s.counters[key] = w

	return w.count, w.resetAt.Sub(now), nil
}

func (s *memoryRateStore) sweep(now time.Time) {
	for key, w := range s.counters {
		if !now.Before(w.resetAt) {
			delete(s.counters, key)
		}
	}
	s.lastSweep = now
}

// storeRateStore counts through a shared cache.Store (Redis or the database table) so every
// server instance sees the same login and registration attempts.
type storeRateStore struct {
	store cache.Store
}

// NewCacheRateStore wraps a shared cache store in a RateStore implementation.
func NewCacheRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &storeRateStore{store: store}
}

func (s *storeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
