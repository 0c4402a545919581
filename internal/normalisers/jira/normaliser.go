// Package jira normalises Jira issues. The summary, the rich-text
// description and the comment thread become one plain text, separated by
// blank lines.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/logger"
	"github.com/custodia-labs/sercha-sync/internal/normalisers/adf"
)

// MIMETypeJiraIssue is the custom MIME type for Jira issues.
const MIMETypeJiraIssue = "application/vnd.atlassian.jira.issue+json"

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Jira issue documents.
type Normaliser struct{}

// New creates a new Jira issue normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMETypeJiraIssue}
}

// issue is the subset of the Jira REST issue representation that carries text.
type issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		Comment     json.RawMessage `json:"comment"`
	} `json:"fields"`
}

type commentThread struct {
	Comments []json.RawMessage `json:"comments"`
}

type comment struct {
	ID   string          `json:"id"`
	Body json.RawMessage `json:"body"`
}

// Normalise converts a Jira issue to a normalised document. A malformed
// description or comment is logged and contributes nothing.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	var is issue
	if err := json.Unmarshal(raw.Content, &is); err != nil {
		return nil, fmt.Errorf("%w: parse issue %s: %v", domain.ErrNormalization, raw.SourceID, err)
	}

	parts := []string{strings.TrimSpace(is.Fields.Summary)}
	parts = append(parts, field(raw.SourceID, "description", is.Fields.Description))

	parts = append(parts, comments(raw.SourceID, is.Fields.Comment))

	md := make(map[string]any, len(raw.Metadata)+1)
	for k, v := range raw.Metadata {
		md[k] = v
	}
	md["format"] = "jira_issue"

	return &domain.Document{
		ID:         raw.SourceID,
		SourceType: raw.SourceType,
		URI:        raw.URI,
		Title:      title(is.Key, is.Fields.Summary),
		FullText:   join(parts),
		Metadata:   md,
	}, nil
}

func field(id, name string, raw json.RawMessage) string {
	text, err := adf.FieldText(raw)
	if err != nil {
		logger.Warn("Issue %s: %s: %v", id, name, err)
		return ""
	}
	return text
}

// comments returns the text of the comment thread. A malformed thread or
// comment is logged and contributes nothing.
func comments(id string, raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var thread commentThread
	if err := json.Unmarshal(raw, &thread); err != nil {
		logger.Warn("Issue %s: comments: %v", id, err)
		return ""
	}

	texts := make([]string, 0, len(thread.Comments))
	for i, rawComment := range thread.Comments {
		var c comment
		if err := json.Unmarshal(rawComment, &c); err != nil {
			logger.Warn("Issue %s: comment %d: %v", id, i, err)
			continue
		}
		if text := field(id, "comment "+c.ID, c.Body); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n\n")
}

func title(key, summary string) string {
	summary = strings.TrimSpace(summary)
	if key == "" {
		return summary
	}
	return key + ": " + summary
}

// join concatenates the non-empty parts with blank lines.
func join(parts []string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
