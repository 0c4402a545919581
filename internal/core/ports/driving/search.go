package driving

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// SearchOptions configures a similarity query.
type SearchOptions struct {
	// Limit is the maximum number of matches (k).
	Limit int

	// Filter is an equality filter on record metadata.
	Filter map[string]any
}

// SearchService answers similarity queries against a source's index.
type SearchService interface {
	// Search embeds query and returns the closest records of the source's index.
	Search(ctx context.Context, sourceName, query string, opts SearchOptions) ([]domain.Match, error)
}
