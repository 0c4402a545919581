package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// SourceStore holds source configurations.
type SourceStore interface {
	// Save stores or updates a source.
	Save(ctx context.Context, source domain.Source) error

	// Get retrieves a source by name.
	Get(ctx context.Context, name string) (*domain.Source, error)

	// List returns all configured sources ordered by name.
	List(ctx context.Context) ([]domain.Source, error)
}
