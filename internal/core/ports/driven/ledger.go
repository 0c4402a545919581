package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// LedgerStore records which documents of a source were last synced, with
// their fingerprint and chunk count.
type LedgerStore interface {
	// List returns all entries for a source.
	List(ctx context.Context, source string) ([]domain.LedgerEntry, error)

	// SaveBatch stores or replaces entries.
	SaveBatch(ctx context.Context, entries []domain.LedgerEntry) error

	// Delete removes entries for the given document ids of a source.
	Delete(ctx context.Context, source string, documentIDs []string) error
}

// SyncStateStore persists the last completed run per source.
type SyncStateStore interface {
	// Save stores or updates sync state.
	Save(ctx context.Context, state domain.SyncState) error

	// Get retrieves sync state for a source.
	Get(ctx context.Context, sourceName string) (*domain.SyncState, error)
}
