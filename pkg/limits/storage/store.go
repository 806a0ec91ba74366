package storage

import (
	"context"
	"time"
)

// Store is the counter store interface.
// Implementations must be safe for concurrent use, and Incr must be atomic:
// two concurrent increments of the same key must observe distinct values.
type Store interface {
	// Get returns the current value for key. The second return is false if
	// the key does not exist or has expired.
	Get(ctx context.Context, key string) (int64, bool, error)

	// Set stores value under key. A ttl > 0 schedules expiry; ttl <= 0
	// stores the key without expiry.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error

	// Incr atomically increments key by one and returns the new value.
	// A missing or expired key restarts at 1 with no expiry set; callers
	// that need a TTL follow up with Expire.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets the TTL for an existing key. No-op if the key is missing.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Del removes a key. No-op if the key is missing.
	Del(ctx context.Context, key string) error

	// Keys returns all live keys matching pattern. The only wildcard is
	// '*', which matches any run of characters.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Cleanup removes expired entries and returns how many were deleted.
	// Expiry-on-read keeps results correct without it; Cleanup only
	// reclaims space.
	Cleanup(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}
