// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Connector: Fetches documents from a source
//   - ConnectorFactory: Creates connectors from source configuration
//   - NormaliserRegistry: Turns raw documents into plain text and flat metadata
//   - Chunker: Splits normalised text into chunks
//   - EmbeddingService: Turns chunk text into vectors
//   - SinkFactory / IndexSink: The vector index records are written to
//   - SourceStore: Configured sources
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LedgerStore: Local record of synced documents. Without it, stale chunk
//     cleanup and deletion propagation are disabled.
//   - RunLock: Cross-process run exclusion. Without it, only the in-process
//     guard applies.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
