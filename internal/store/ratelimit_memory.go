package store

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is how many recorded hits pass between sweeps of idle keys.
const sweepEvery = 256

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store.
// Keys whose hits have all expired are swept periodically, so one-off
// senders do not accumulate forever.
type RateLimitMemoryStore struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	now       func() time.Time
	maxWindow time.Duration
	recorded  int
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return NewRateLimitMemoryStoreWithClock(time.Now)
}

// NewRateLimitMemoryStoreWithClock creates a store that reads time from now.
func NewRateLimitMemoryStoreWithClock(now func() time.Time) *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		hits: make(map[string][]time.Time),
		now:  now,
	}
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if window > s.maxWindow {
		s.maxWindow = window
	}

	valid := prune(s.hits[key], now.Add(-window))
	valid = append(valid, now)
	s.hits[key] = valid

	s.recorded++
	if s.recorded%sweepEvery == 0 {
		s.sweep(now)
	}

	return int64(len(valid)), nil
}

// Keys returns the number of keys currently tracked.
func (s *RateLimitMemoryStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.hits)
}

// sweep drops keys with no hits inside the largest window seen so far.
func (s *RateLimitMemoryStore) sweep(now time.Time) {
	cutoff := now.Add(-s.maxWindow)

	for key, hits := range s.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(s.hits, key)
		}
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	valid := make([]time.Time, 0, len(hits)+1)

	for _, ts := range hits {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	return valid
}
