// Package locks provides per-key mutual exclusion for invoice and
// profile mutation. A single-node deployment uses the in-process keyed
// mutex; with Redis configured the same interface is backed by a
// SetNX lease so duplicate webhook deliveries across nodes still
// serialize.
package locks

import (
	"context"
	"time"
)

// Locker serializes work per key.
type Locker interface {
	// Acquire blocks until the key lock is held or ctx is done.
	// The returned release func must be called exactly once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
