package github

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// MIMETypeGitHubIssue is the custom MIME type for GitHub issues.
const MIMETypeGitHubIssue = "application/vnd.github.issue+json"

// IssueContent is the JSON structure for the issue RawDocument content.
type IssueContent struct {
	Number   int              `json:"number"`
	Title    string           `json:"title"`
	Body     string           `json:"body"`
	Author   string           `json:"author"`
	Comments []CommentContent `json:"comments"`
}

// CommentContent represents a comment in the issue content.
type CommentContent struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

// isBot reports whether a GitHub account is an app or bot.
func isBot(u *gh.User) bool {
	return u.GetType() == "Bot" || strings.HasSuffix(u.GetLogin(), "[bot]")
}

// buildIssueDocument converts an issue and its comments to a RawDocument.
func buildIssueDocument(repo Repo, issue *gh.Issue, comments []*gh.IssueComment, excludeBots bool) (domain.RawDocument, error) {
	content := IssueContent{
		Number:   issue.GetNumber(),
		Title:    issue.GetTitle(),
		Body:     issue.GetBody(),
		Author:   issue.GetUser().GetLogin(),
		Comments: make([]CommentContent, 0, len(comments)),
	}
	for _, c := range comments {
		if excludeBots && isBot(c.GetUser()) {
			continue
		}
		content.Comments = append(content.Comments, CommentContent{
			Author: c.GetUser().GetLogin(),
			Body:   c.GetBody(),
		})
	}

	contentJSON, err := json.Marshal(content)
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("marshal issue: %w", err)
	}

	labels := make([]string, len(issue.Labels))
	for i, l := range issue.Labels {
		labels[i] = l.GetName()
	}

	assignees := make([]string, len(issue.Assignees))
	for i, a := range issue.Assignees {
		assignees[i] = a.GetLogin()
	}

	created := issue.GetCreatedAt().Time
	updated := issue.GetUpdatedAt().Time

	md := map[string]any{
		"repo":       repo.String(),
		"number":     issue.GetNumber(),
		"title":      issue.GetTitle(),
		"state":      issue.GetState(),
		"author":     issue.GetUser().GetLogin(),
		"labels":     labels,
		"assignees":  assignees,
		"comments":   len(content.Comments),
		"url":        issue.GetHTMLURL(),
		"created":    created.Format(time.RFC3339),
		"updated":    updated.Format(time.RFC3339),
		"created_ts": created.Unix(),
		"updated_ts": updated.Unix(),
		"source":     "github",
	}
	if issue.Milestone != nil {
		md["milestone"] = issue.Milestone.GetTitle()
	}

	uri := issue.GetHTMLURL()
	if uri == "" {
		uri = fmt.Sprintf("https://github.com/%s/issues/%d", repo, issue.GetNumber())
	}

	return domain.RawDocument{
		SourceID:   issueID(repo, issue.GetNumber()),
		SourceType: "github",
		URI:        uri,
		MIMEType:   MIMETypeGitHubIssue,
		Content:    contentJSON,
		Metadata:   md,
		UpdatedAt:  updated,
	}, nil
}

// issueID returns the document id of an issue, unique across repositories.
func issueID(repo Repo, number int) string {
	return fmt.Sprintf("%s#%d", repo, number)
}
