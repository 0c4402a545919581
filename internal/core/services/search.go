package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// DefaultSearchLimit is used when no limit is given.
const DefaultSearchLimit = 10

// SearchService embeds a query and asks the source's index sink for the
// nearest records.
type SearchService struct {
	sourceStore driven.SourceStore
	embedder    driven.EmbeddingService
	sinks       driven.SinkFactory
}

// NewSearchService creates a new search service.
func NewSearchService(
	sourceStore driven.SourceStore,
	embedder driven.EmbeddingService,
	sinks driven.SinkFactory,
) *SearchService {
	return &SearchService{
		sourceStore: sourceStore,
		embedder:    embedder,
		sinks:       sinks,
	}
}

// Search returns up to opts.Limit matches ordered by descending score.
func (s *SearchService) Search(
	ctx context.Context, sourceName, query string, opts driving.SearchOptions,
) ([]domain.Match, error) {
	logger.Section("Search Execution")
	logger.Debug("Source: %s, query: %q, filter: %v", sourceName, query, opts.Filter)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.Match{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	source, err := s.sourceStore.Get(ctx, sourceName)
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	if source.Index == "" {
		return nil, fmt.Errorf("%w: source %s has no index name", domain.ErrMisconfigured, source.Name)
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", domain.ErrEmbedding, err)
	}

	sink, err := s.sinks.Open(ctx, source.Index)
	if err != nil {
		return nil, fmt.Errorf("open sink %s: %w", source.Index, err)
	}
	defer sink.Close()

	matches, err := sink.Search(ctx, vector, limit, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", source.Index, err)
	}

	logger.Debug("%d matches", len(matches))
	return matches, nil
}
