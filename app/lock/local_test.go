package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalLockerExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	locker := NewLocalLocker()
	locker.now = func() time.Time { return now }

	if err := locker.Acquire(context.Background(), refreshKey, time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Acquire(context.Background(), refreshKey, time.Minute); err != ErrNotAcquired {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := locker.Acquire(context.Background(), refreshKey, time.Minute); err != nil {
		t.Fatalf("expected expired lock to be re-acquirable: %v", err)
	}
}

func TestWithLockReleasesOnError(t *testing.T) {
	t.Parallel()

	locker := NewLocalLocker()
	boom := errors.New("boom")

	err := WithLock(context.Background(), locker, refreshKey, time.Minute, func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := locker.Acquire(context.Background(), refreshKey, time.Minute); err != nil {
		t.Fatalf("expected lock to be released: %v", err)
	}
}
