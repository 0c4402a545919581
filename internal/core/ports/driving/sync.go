package driving

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// SyncOrchestrator coordinates document synchronisation from sources.
type SyncOrchestrator interface {
	// Sync runs one full pass for a source and returns its report.
	// An error is returned only for fatal conditions detected before fetching
	// (misconfiguration, a concurrent run); per-document failures are counted
	// in the report instead.
	Sync(ctx context.Context, sourceName string) (*domain.SyncReport, error)

	// SyncAll runs Sync for every configured source.
	SyncAll(ctx context.Context) ([]*domain.SyncReport, error)

	// Status returns sync status for a source.
	Status(ctx context.Context, sourceName string) (*SyncStatus, error)
}

// SyncStatus represents the current state of a sync operation.
type SyncStatus struct {
	// SourceName identifies the source.
	SourceName string

	// Running indicates if sync is currently in progress.
	Running bool

	// Phase is the current state of the run.
	Phase domain.SyncPhase

	// DocumentsProcessed is the count of documents classified so far.
	DocumentsProcessed int

	// ErrorCount is the number of failed documents so far.
	ErrorCount int
}
