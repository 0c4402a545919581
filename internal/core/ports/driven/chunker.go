package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// Chunker splits a document's text into ordered chunks.
// Output must depend only on the document text and the chunker's configuration.
type Chunker interface {
	// Name returns the chunker name for logging.
	Name() string

	// Chunk returns the chunks of doc. Empty text yields no chunks.
	Chunk(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
