package driven

import (
	"context"
	"time"
)

// RunLock provides per-source mutual exclusion across processes.
type RunLock interface {
	// Acquire takes the lease for key on behalf of owner for ttl.
	// Returns domain.ErrSyncInProgress when another live owner holds it.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) error

	// Release drops the lease if owner still holds it.
	Release(ctx context.Context, key, owner string) error
}
