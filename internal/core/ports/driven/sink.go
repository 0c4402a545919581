package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// IndexSink is a remote vector index addressed by an index or namespace name.
// It stores IndexRecords keyed by ID and answers similarity queries.
type IndexSink interface {
	// Index returns the index or namespace name.
	Index() string

	// FetchMetadata returns the metadata of the records that exist among ids.
	// Missing ids are absent from the map.
	FetchMetadata(ctx context.Context, ids []string) (map[string]map[string]any, error)

	// Upsert inserts or entirely replaces records by ID.
	Upsert(ctx context.Context, records []domain.IndexRecord) error

	// Delete removes records by ID. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Search returns up to k matches ordered by descending score.
	// filter is an equality filter on metadata; list-valued metadata matches
	// when it contains the filter value.
	Search(ctx context.Context, vector []float32, k int, filter map[string]any) ([]domain.Match, error)

	// Close releases resources.
	Close() error
}

// SinkFactory opens index sinks by name.
type SinkFactory interface {
	// Open returns the sink for an index.
	Open(ctx context.Context, index string) (IndexSink, error)

	// Type returns the sink backend identifier.
	Type() string
}
