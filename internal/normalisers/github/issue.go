package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/normalisers/markdown"
)

// MIMETypeGitHubIssue is the custom MIME type for GitHub issues.
const MIMETypeGitHubIssue = "application/vnd.github.issue+json"

// Ensure IssueNormaliser implements the interface.
var _ driven.Normaliser = (*IssueNormaliser)(nil)

// IssueNormaliser handles GitHub issue documents.
type IssueNormaliser struct{}

// NewIssue creates a new GitHub issue normaliser.
func NewIssue() *IssueNormaliser {
	return &IssueNormaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *IssueNormaliser) SupportedMIMETypes() []string {
	return []string{MIMETypeGitHubIssue}
}

// IssueContent is the JSON envelope the GitHub connector emits.
type IssueContent struct {
	Number   int              `json:"number"`
	Title    string           `json:"title"`
	Body     string           `json:"body"`
	Author   string           `json:"author"`
	Comments []CommentContent `json:"comments"`
}

// CommentContent represents a comment on an issue.
type CommentContent struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

// Normalise converts a GitHub issue document to a normalised document.
func (n *IssueNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	var content IssueContent
	if err := json.Unmarshal(raw.Content, &content); err != nil {
		return nil, fmt.Errorf("%w: parse issue content: %v", domain.ErrNormalization, err)
	}

	parts := make([]string, 0, len(content.Comments)+2)
	if title := strings.TrimSpace(content.Title); title != "" {
		parts = append(parts, title)
	}
	if body := markdown.Strip(content.Body); body != "" {
		parts = append(parts, body)
	}
	for _, c := range content.Comments {
		body := markdown.Strip(c.Body)
		if body == "" {
			continue
		}
		if c.Author != "" {
			body = "@" + c.Author + ": " + body
		}
		parts = append(parts, body)
	}

	title := strings.TrimSpace(content.Title)
	if content.Number > 0 {
		title = fmt.Sprintf("#%d %s", content.Number, title)
	}

	md := make(map[string]any, len(raw.Metadata)+1)
	for k, v := range raw.Metadata {
		md[k] = v
	}
	md["format"] = "github_issue"

	return &domain.Document{
		ID:         raw.SourceID,
		SourceType: raw.SourceType,
		URI:        raw.URI,
		Title:      title,
		FullText:   strings.Join(parts, "\n\n"),
		Metadata:   md,
	}, nil
}
