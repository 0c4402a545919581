package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// Ensure RunLock implements the interface.
var _ driven.RunLock = (*RunLock)(nil)

type lease struct {
	owner   string
	expires time.Time
}

// RunLock is an in-memory lease table. It only excludes runs within one process.
type RunLock struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

// NewRunLock creates a new in-memory run lock.
func NewRunLock() *RunLock {
	return &RunLock{
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

// Acquire takes the lease for key unless another owner holds an unexpired one.
func (l *RunLock) Acquire(_ context.Context, key, owner string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.leases[key]; ok && cur.owner != owner && now.Before(cur.expires) {
		return domain.ErrSyncInProgress
	}
	l.leases[key] = lease{owner: owner, expires: now.Add(ttl)}
	return nil
}

// Release drops the lease if owner still holds it.
func (l *RunLock) Release(_ context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.leases[key]; ok && cur.owner == owner {
		delete(l.leases, key)
	}
	return nil
}
