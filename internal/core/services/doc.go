// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The SyncOrchestrator is the heart of the package: it fetches documents
// from a connector, fingerprints their normalised text, and re-embeds only
// what changed since the last run.
package services
