package ratelimit

import (
	"context"
	"time"
)

// Store is the counter backend behind the limiter. Implementations must make
// Incr atomic for a given key: concurrent callers sharing a key may never
// observe the same count.
type Store interface {
	// Incr increments the counter for key inside the current window and
	// returns the post-increment count plus the moment the window resets.
	// A key whose window has elapsed is treated as absent and restarts at 1
	// with a fresh deadline of now + window.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}
