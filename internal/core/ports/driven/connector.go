package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// Connector fetches documents from an external source.
// Each connector type (jira, confluence, github) implements this interface.
type Connector interface {
	// Type returns the connector type identifier.
	Type() string

	// SourceName returns the configured source name.
	SourceName() string

	// Fetch streams every live document of the source, already filtered of
	// templates and system-account content.
	//
	// Both channels are closed when fetching ends. A page failure ends
	// pagination early and is reported once on the error channel wrapped in
	// domain.ErrSourceFetch; documents already sent remain valid.
	Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Close releases resources.
	Close() error
}

// ConnectorBuilder creates a Connector from a Source.
type ConnectorBuilder func(source domain.Source) (Connector, error)

// ConnectorFactory creates connectors from source configuration.
// It maintains a registry of connector types and their builders.
type ConnectorFactory interface {
	// Create returns a Connector for the given source.
	// Returns ErrUnsupportedType if the source type is unknown.
	Create(ctx context.Context, source domain.Source) (Connector, error)

	// Register adds a connector type and its builder.
	Register(ct domain.ConnectorType, builder ConnectorBuilder)

	// ConnectorType returns the description of a registered type.
	ConnectorType(id string) (*domain.ConnectorType, bool)

	// SupportedTypes returns all registered connector types.
	SupportedTypes() []string
}
