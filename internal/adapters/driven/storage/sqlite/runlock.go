package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// runLock implements driven.RunLock as a lease row per key.
type runLock struct {
	store *Store
}

var _ driven.RunLock = (*runLock)(nil)

// Acquire inserts the lease, or takes it over when it is expired or already
// held by owner. The conditional upsert makes the check and write atomic.
func (l *runLock) Acquire(ctx context.Context, key, owner string, ttl time.Duration) error {
	now := l.store.now()
	res, err := l.store.db.ExecContext(ctx, `
		INSERT INTO run_locks (lock_key, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(lock_key) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE run_locks.owner = excluded.owner OR run_locks.expires_at <= ?
	`, key, owner, now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	if n == 0 {
		return domain.ErrSyncInProgress
	}
	return nil
}

// Release drops the lease if owner still holds it.
func (l *runLock) Release(ctx context.Context, key, owner string) error {
	_, err := l.store.db.ExecContext(ctx, "DELETE FROM run_locks WHERE lock_key = ? AND owner = ?", key, owner)
	if err != nil {
		return fmt.Errorf("releasing run lock: %w", err)
	}
	return nil
}
