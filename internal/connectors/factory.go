package connectors

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/sercha-sync/internal/connectors/confluence"
	"github.com/custodia-labs/sercha-sync/internal/connectors/github"
	"github.com/custodia-labs/sercha-sync/internal/connectors/jira"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.ConnectorFactory = (*Factory)(nil)

// Factory builds connectors by source type.
type Factory struct {
	mu       sync.RWMutex
	types    map[string]domain.ConnectorType
	builders map[string]driven.ConnectorBuilder
}

// NewFactory creates an empty connector factory.
func NewFactory() *Factory {
	return &Factory{
		types:    make(map[string]domain.ConnectorType),
		builders: make(map[string]driven.ConnectorBuilder),
	}
}

// RegisterDefaults registers the built-in connectors.
func RegisterDefaults(f *Factory) {
	f.Register(jira.Type(), func(s domain.Source) (driven.Connector, error) {
		return jira.Build(s)
	})
	f.Register(confluence.Type(), func(s domain.Source) (driven.Connector, error) {
		return confluence.Build(s)
	})
	f.Register(github.Type(), func(s domain.Source) (driven.Connector, error) {
		return github.Build(s)
	})
}

// Register adds a connector type and its builder.
func (f *Factory) Register(ct domain.ConnectorType, builder driven.ConnectorBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types[ct.ID] = ct
	f.builders[ct.ID] = builder
}

// Create returns a Connector for the given source.
func (f *Factory) Create(ctx context.Context, source domain.Source) (driven.Connector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	builder, ok := f.builders[source.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: connector %q", domain.ErrUnsupportedType, source.Type)
	}
	return builder(source)
}

// ConnectorType returns the description of a registered type.
func (f *Factory) ConnectorType(id string) (*domain.ConnectorType, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ct, ok := f.types[id]
	if !ok {
		return nil, false
	}
	return &ct, true
}

// SupportedTypes returns all registered connector types, sorted.
func (f *Factory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.builders))
}
