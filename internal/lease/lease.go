package lease

import (
	"context"
	"time"
)

// Locker grants short-lived exclusive ownership of a key across processes.
type Locker interface {
	// Acquire returns a held lease, or ok=false when another owner holds the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}

// Lease is an acquired lock. Release is safe to call once the TTL has passed.
type Lease interface {
	Release(ctx context.Context) error
}

// DeliveryKey returns the lease key guarding a single notification run.
func DeliveryKey(notificationID string) string {
	return "delivery:lease:" + notificationID
}

// Noop is a Locker that always grants the lease. Used where only one
// worker process runs, e.g. in tests.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (Lease, bool, error) {
	return noopLease{}, true, nil
}

type noopLease struct{}

func (noopLease) Release(context.Context) error { return nil }
