package domain

import "time"

// RawDocument represents a source-native payload fetched by a connector.
// It is the connector's output before normalisation and is never mutated.
type RawDocument struct {
	// SourceID is the document identifier, unique within its source.
	SourceID string

	// SourceType is the connector type that produced the document (e.g., "jira").
	SourceType string

	// URI is the original location of the document.
	URI string

	// MIMEType selects the normaliser (e.g., "application/vnd.atlassian.jira.issue+json").
	MIMEType string

	// Content is the native payload: ADF JSON, HTML storage format or a
	// JSON envelope with nested comment threads.
	Content []byte

	// Metadata contains scalar and list attributes (status, author, labels).
	Metadata map[string]any

	// UpdatedAt is the source's last update timestamp.
	// Recorded for future incremental fetches; not used for filtering.
	UpdatedAt time.Time
}
