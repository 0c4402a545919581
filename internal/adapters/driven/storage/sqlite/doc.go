// Package sqlite provides a SQLite-backed implementation of the sync state
// ports and a brute-force vector index sink.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database file serves:
//
//   - LedgerStore: Per-source record of synced documents
//   - SyncStateStore: Last completed run per source
//   - RunLock: Lease table excluding concurrent runs across processes
//   - SinkFactory: Index records scored by cosine similarity in process
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each applied version is recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-sync/state.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
