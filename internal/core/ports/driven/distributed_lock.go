package driven

import (
	"context"
	"time"
)

// DistributedLock guards work that must not run twice at once across
// instances, such as recreating the indices of an object type.
type DistributedLock interface {
	// Acquire takes a named lock for ttl. It returns false when another
	// holder already has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops a named lock. Releasing a lock that is not held is a no-op.
	Release(ctx context.Context, name string) error

	// Extend pushes out the expiry of a lock this instance holds.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
