package domain

import "fmt"

// Document represents a normalised document.
// It is the canonical representation after normalisation and before chunking.
type Document struct {
	// ID is derived from the RawDocument's SourceID and is unique within
	// the source's index namespace.
	ID string

	// SourceType is the connector type that produced the document.
	SourceType string

	// URI is the original location.
	URI string

	// Title is the human-readable title.
	Title string

	// FullText is the primary content followed by any secondary content
	// (comments), separated by blank lines.
	FullText string

	// Metadata is a flat mapping of strings, numbers, booleans and string lists.
	Metadata map[string]any
}

// Chunk represents a bounded slice of a document's text.
type Chunk struct {
	// ID is "{document_id}-{sequence_index}".
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Text is a substring of the parent's FullText.
	Text string

	// Order is the position within the document. Display only.
	Order int
}

// ChunkID returns the identifier of the chunk at position order of a document.
func ChunkID(documentID string, order int) string {
	return fmt.Sprintf("%s-%d", documentID, order)
}

// IndexRecord is the unit persisted to an index sink.
// Upserting a record with an existing ID overwrites it entirely.
type IndexRecord struct {
	// ID is the chunk ID.
	ID string

	// Vector is the embedding of the chunk text.
	Vector []float32

	// Metadata is the document metadata plus the chunk text, the parent
	// document's content hash and positional fields.
	Metadata map[string]any
}

// Match is a single similarity search hit returned by an index sink.
type Match struct {
	// ID is the record ID.
	ID string

	// Score is the similarity score, higher is closer.
	Score float64

	// Metadata is the stored record metadata.
	Metadata map[string]any
}

// Metadata keys written by the sync pipeline on every IndexRecord.
const (
	MetaText         = "text"
	MetaContentHash  = "content_hash"
	MetaDocumentID   = "document_id"
	MetaChunkIndex   = "chunk_index"
	MetaChunkCount   = "chunk_count"
	MetaSource       = "source"
	MetaTitle        = "title"
	MetaEmbeddingVer = "embedding_model"
)
