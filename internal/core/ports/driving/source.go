package driving

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// SourceService exposes configured sources and the connector catalogue.
type SourceService interface {
	// Get retrieves a source by name.
	Get(ctx context.Context, name string) (*domain.Source, error)

	// List returns all configured sources.
	List(ctx context.Context) ([]domain.Source, error)

	// ConnectorTypes returns the supported connector types.
	ConnectorTypes() []domain.ConnectorType

	// ValidateAll checks every configured source. Any error is fatal for a run.
	ValidateAll(ctx context.Context) error
}
