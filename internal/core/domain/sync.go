package domain

import (
	"fmt"
	"time"
)

// Classification is the outcome of comparing a document's fingerprint with
// the fingerprint recorded in the index.
type Classification int

const (
	// ClassNew indicates no record exists for the document.
	ClassNew Classification = iota

	// ClassChanged indicates the recorded fingerprint differs.
	ClassChanged

	// ClassUnchanged indicates the recorded fingerprint matches.
	ClassUnchanged
)

// String returns the classification name.
func (c Classification) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassChanged:
		return "changed"
	case ClassUnchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// SyncPhase is a state of the per-run state machine.
type SyncPhase string

const (
	PhaseIdle      SyncPhase = "idle"
	PhaseFetching  SyncPhase = "fetching"
	PhaseDiffing   SyncPhase = "diffing"
	PhaseEmbedding SyncPhase = "embedding_and_upserting"
	PhaseReporting SyncPhase = "reporting"
	PhaseDone      SyncPhase = "done"
)

// SyncState tracks the last synchronisation of a source.
type SyncState struct {
	// SourceName links to the Source being synced.
	SourceName string

	// LastSync is when the last run completed.
	LastSync time.Time
}

// DocumentFailure records one failed document in a run.
type DocumentFailure struct {
	DocumentID string
	Stage      Stage
	Error      string
}

// SyncReport summarises one orchestration pass. It is returned and logged, never persisted.
type SyncReport struct {
	Source string
	Index  string

	// Fetched is however many documents the connector returned.
	Fetched int

	New     int
	Updated int
	Skipped int
	Failed  int

	// Deleted counts documents removed because they vanished from the source.
	Deleted int

	// Truncated is set when the connector stopped paginating early.
	Truncated bool

	Failures   []DocumentFailure
	StartedAt  time.Time
	FinishedAt time.Time
}

// Total returns the number of documents that reached classification or failed.
func (r *SyncReport) Total() int {
	return r.New + r.Updated + r.Skipped + r.Failed
}

// Duration returns the run's wall-clock time.
func (r *SyncReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// String formats the report counts for logs.
func (r *SyncReport) String() string {
	s := fmt.Sprintf("source=%s index=%s fetched=%d new=%d updated=%d skipped=%d failed=%d deleted=%d",
		r.Source, r.Index, r.Fetched, r.New, r.Updated, r.Skipped, r.Failed, r.Deleted)
	if r.Truncated {
		s += " truncated=true"
	}
	return s
}

// LedgerEntry is the locally recorded outcome of the last successful sync of a document.
type LedgerEntry struct {
	Source      string
	DocumentID  string
	ContentHash string
	ChunkCount  int
	SyncedAt    time.Time
}
