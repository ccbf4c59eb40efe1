// Package ratelimit throttles bursts of inbound updates per sender.
// It is independent of the daily quota: a sender that floods the bot is
// dropped before any quota lookup costs a remote call.
package ratelimit

import (
	"context"
	"time"
)

// Default flood guard settings.
const (
	DefaultLimit  = 20
	DefaultWindow = time.Minute
)

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow checks if an update from the given key should be processed.
	Allow(ctx context.Context, key string) (allowed bool, err error)
}

// SlidingWindowLimiter implements rate limiting using a sliding window algorithm.
type SlidingWindowLimiter struct {
	store  Store
	limit  int64
	window time.Duration
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
// Non-positive values fall back to the defaults.
func NewSlidingWindowLimiter(store Store, limit int64, window time.Duration) *SlidingWindowLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if window <= 0 {
		window = DefaultWindow
	}

	return &SlidingWindowLimiter{
		store:  store,
		limit:  limit,
		window: window,
	}
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Record(ctx, "flood:"+key, l.window)
	if err != nil {
		return false, err
	}

	return count <= l.limit, nil
}

// Window returns the sliding window length.
func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.window
}
