// Package lock provides the lockers used to serialize credential refreshes
// between dispatch workers and between dispatcher processes.
package lock

import (
	"context"
	"errors"
	"time"
)

var ErrAlreadyHeld = errors.New("lock already held by this process")
var ErrNotAcquired = errors.New("lock not acquired")

// Locker abstracts distributed locking implementations.
type Locker interface {
	// Acquire attempts to lock a key for the given TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) error
	// Release frees the lock for the given key.
	Release(ctx context.Context, key string) error
}

// WithLock runs fn while holding key.
func WithLock(ctx context.Context, l Locker, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	if err := l.Acquire(ctx, key, ttl); err != nil {
		return err
	}
	defer func() {
		_ = l.Release(context.Background(), key)
	}()
	return fn(ctx)
}
