package services

import (
	"context"
	"errors"
	"sort"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
)

// Ensure SourceService implements the interface.
var _ driving.SourceService = (*SourceService)(nil)

// SourceService exposes configured sources and validates them against the
// connector catalogue.
type SourceService struct {
	sourceStore driven.SourceStore
	factory     driven.ConnectorFactory
}

// NewSourceService creates a new source service.
func NewSourceService(sourceStore driven.SourceStore, factory driven.ConnectorFactory) *SourceService {
	return &SourceService{
		sourceStore: sourceStore,
		factory:     factory,
	}
}

// Get retrieves a source by name.
func (s *SourceService) Get(ctx context.Context, name string) (*domain.Source, error) {
	return s.sourceStore.Get(ctx, name)
}

// List returns all configured sources.
func (s *SourceService) List(ctx context.Context) ([]domain.Source, error) {
	return s.sourceStore.List(ctx)
}

// ConnectorTypes returns the supported connector types ordered by id.
func (s *SourceService) ConnectorTypes() []domain.ConnectorType {
	ids := s.factory.SupportedTypes()
	sort.Strings(ids)

	types := make([]domain.ConnectorType, 0, len(ids))
	for _, id := range ids {
		if ct, ok := s.factory.ConnectorType(id); ok {
			types = append(types, *ct)
		}
	}
	return types
}

// ValidateAll checks every configured source and reports all problems at once.
func (s *SourceService) ValidateAll(ctx context.Context) error {
	sources, err := s.sourceStore.List(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for i := range sources {
		ct, _ := s.factory.ConnectorType(sources[i].Type)
		if err := sources[i].Validate(ct); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
