package github

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

func rawIssue(content string) *domain.RawDocument {
	return &domain.RawDocument{
		SourceID:   "acme/api#12",
		SourceType: "github",
		URI:        "https://github.com/acme/api/issues/12",
		MIMEType:   MIMETypeGitHubIssue,
		Content:    []byte(content),
		Metadata:   map[string]any{"state": "open", "labels": []string{"bug"}},
	}
}

func TestIssueNormaliser_SupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{MIMETypeGitHubIssue}, NewIssue().SupportedMIMETypes())
}

func TestIssueNormaliser_Normalise(t *testing.T) {
	content := `{
		"number": 12,
		"title": "Cache misses on cold start",
		"body": "## Details\n\nThe **warmup** job skips ` + "`users`" + `.",
		"author": "ada",
		"comments": [
			{"author": "grace", "body": "Confirmed on [staging](https://staging)."},
			{"author": "linus", "body": "   "},
			{"author": "", "body": "Anonymous note"}
		]
	}`

	doc, err := NewIssue().Normalise(context.Background(), rawIssue(content))
	require.NoError(t, err)

	assert.Equal(t, "acme/api#12", doc.ID)
	assert.Equal(t, "#12 Cache misses on cold start", doc.Title)
	assert.Equal(t,
		"Cache misses on cold start\n\nDetails\n\nThe warmup job skips users.\n\n@grace: Confirmed on staging.\n\nAnonymous note",
		doc.FullText)
	assert.Equal(t, "open", doc.Metadata["state"])
	assert.Equal(t, "github_issue", doc.Metadata["format"])
}

func TestIssueNormaliser_EmptyBody(t *testing.T) {
	doc, err := NewIssue().Normalise(context.Background(), rawIssue(`{"number":3,"title":"Typo"}`))
	require.NoError(t, err)
	assert.Equal(t, "Typo", doc.FullText)
}

func TestIssueNormaliser_Errors(t *testing.T) {
	_, err := NewIssue().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewIssue().Normalise(context.Background(), rawIssue(`{`))
	assert.ErrorIs(t, err, domain.ErrNormalization)
}
