package ratelimit

import (
	"context"
	"time"
)

// Store defines the interface for rate limit data storage.
type Store interface {
	// Record records a hit and returns the number of hits in the current window.
	// Expired hits are pruned as a side effect.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}
