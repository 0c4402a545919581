package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown connector, normaliser or sink type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrSyncInProgress indicates a sync is already running for the source.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrMisconfigured indicates missing credentials, index names or settings.
	// It is the only error that stops a run, and it does so before fetching.
	ErrMisconfigured = errors.New("misconfigured")

	// Pipeline errors.

	// ErrSourceFetch indicates a page or document fetch failed.
	// Already-fetched documents remain valid.
	ErrSourceFetch = errors.New("source fetch failed")

	// ErrNormalization indicates a malformed content field.
	ErrNormalization = errors.New("normalization failed")

	// ErrChunking indicates the chunker rejected its input.
	ErrChunking = errors.New("chunking failed")

	// ErrEmbedding indicates the embedding call failed or timed out.
	ErrEmbedding = errors.New("embedding failed")

	// ErrSinkMetadataLookup indicates existing metadata could not be fetched.
	// Callers treat it as "no prior hash".
	ErrSinkMetadataLookup = errors.New("sink metadata lookup failed")

	// ErrSinkUpsert indicates a batch upsert failed.
	ErrSinkUpsert = errors.New("sink upsert failed")

	// ErrSinkDelete indicates records could not be removed from the sink.
	ErrSinkDelete = errors.New("sink delete failed")

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Stage names the pipeline step at which a document failed.
type Stage string

const (
	StageNormalise Stage = "normalise"
	StageChunk     Stage = "chunk"
	StageEmbed     Stage = "embed"
	StageUpsert    Stage = "upsert"
)

// DocumentError wraps a per-document failure with enough context to retry it.
type DocumentError struct {
	DocumentID string
	Stage      Stage
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s: %s: %v", e.DocumentID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *DocumentError) Unwrap() error {
	return e.Err
}
