package cache

import (
	"context"
	"time"
)

// RateLimitStore counts hits against a key within a fixed time window.
// Implementations must be safe for concurrent use.
type RateLimitStore interface {
	// Hit records one hit against the key and returns the total number of
	// hits in the current window, including this one. The window starts
	// at the first hit and expires after the given duration.
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)

	// Close releases any resources held by the store
	Close() error
}
