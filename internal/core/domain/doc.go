// Package domain defines the core business entities for Sercha Sync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawDocument: A source-native payload from a connector
//   - Document: The normalised document with plain text and flat metadata
//   - Chunk: A slice of a document's text sized for the embedding model
//   - IndexRecord: The unit persisted to an index sink
//   - SyncReport: The outcome of one synchronisation run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
