// Package jira fetches issues from a Jira project through the REST search API.
// Jira Cloud is paged with nextPageToken on /rest/api/3/search/jql; the
// legacy offset search on /rest/api/2/search serves Data Center.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-sync/internal/connectors/atlassian"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// MIMETypeJiraIssue is the custom MIME type for Jira issues.
const MIMETypeJiraIssue = "application/vnd.atlassian.jira.issue+json"

const (
	searchPath       = "/rest/api/3/search/jql"
	legacySearchPath = "/rest/api/2/search"
	searchFields     = "summary,description,comment,status,priority,issuetype,assignee,reporter,creator,labels,components,created,updated"

	// timeLayout is the timestamp format of Jira REST fields.
	timeLayout = "2006-01-02T15:04:05.000-0700"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches issues from one Jira project.
type Connector struct {
	sourceName string
	config     *Config
	client     *atlassian.Client
	mu         sync.Mutex
	closed     bool
}

// New creates a new Jira connector.
func New(sourceName string, cfg *Config, client *atlassian.Client) *Connector {
	return &Connector{
		sourceName: sourceName,
		config:     cfg,
		client:     client,
	}
}

// Build creates a Jira connector from a source configuration.
func Build(source domain.Source, opts ...atlassian.ClientOption) (driven.Connector, error) {
	cfg, err := ParseConfig(source)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.ForSource(source)
	if err != nil {
		return nil, err
	}
	client, err := atlassian.NewClient(cfg.BaseURL, cfg.Email, tokens, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: source %s: %w", domain.ErrMisconfigured, source.Name, err)
	}
	return New(source.Name, cfg, client), nil
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return "jira"
}

// SourceName returns the configured source name.
func (c *Connector) SourceName() string {
	return c.sourceName
}

// searchPage covers both search APIs. Token paging fills NextPageToken and
// IsLast; offset paging fills StartAt and Total.
type searchPage struct {
	StartAt       int               `json:"startAt"`
	MaxResults    int               `json:"maxResults"`
	Total         int               `json:"total"`
	NextPageToken string            `json:"nextPageToken"`
	IsLast        bool              `json:"isLast"`
	Issues        []json.RawMessage `json:"issues"`
}

// cursor is the position of the next page request.
type cursor struct {
	startAt int
	token   string
}

type user struct {
	AccountID    string `json:"accountId"`
	AccountType  string `json:"accountType"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
}

type named struct {
	Name string `json:"name"`
}

// issueHeader is the part of an issue the connector reads for filtering and
// metadata. The full issue JSON is passed on untouched.
type issueHeader struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Status     *named   `json:"status"`
		Priority   *named   `json:"priority"`
		IssueType  *named   `json:"issuetype"`
		Assignee   *user    `json:"assignee"`
		Reporter   *user    `json:"reporter"`
		Creator    *user    `json:"creator"`
		Labels     []string `json:"labels"`
		Components []named  `json:"components"`
		Created    string   `json:"created"`
		Updated    string   `json:"updated"`
	} `json:"fields"`
}

// Fetch pages through the search results and streams every issue not
// created by an excluded or app account.
func (c *Connector) Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docsChan := make(chan domain.RawDocument)
	errsChan := make(chan error, 1)

	go func() {
		defer close(docsChan)
		defer close(errsChan)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			errsChan <- fmt.Errorf("%w: connector closed", domain.ErrSourceFetch)
			return
		}
		c.mu.Unlock()

		var cur cursor
		for page := 0; ; page++ {
			if page == c.config.MaxPages {
				logger.Warn("Jira %s: stopped after max_pages=%d", c.sourceName, c.config.MaxPages)
				errsChan <- fmt.Errorf("%w: jira: stopped after %d pages", domain.ErrSourceFetch, page)
				return
			}

			var resp searchPage
			path, query := c.request(cur)
			if err := c.client.GetJSON(ctx, path, query, &resp); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("Jira %s: page %d failed: %v", c.sourceName, page+1, err)
				errsChan <- fmt.Errorf("%w: jira page %d: %w", domain.ErrSourceFetch, page+1, err)
				return
			}
			if len(resp.Issues) == 0 {
				return
			}

			for _, raw := range resp.Issues {
				doc, ok := c.toRawDocument(raw)
				if !ok {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case docsChan <- doc:
				}
			}

			next, more := c.advance(cur, &resp)
			if !more {
				return
			}
			cur = next
		}
	}()

	return docsChan, errsChan
}

func (c *Connector) request(cur cursor) (string, url.Values) {
	q := url.Values{
		"jql":        {c.config.JQL},
		"maxResults": {strconv.Itoa(c.config.PageSize)},
		"fields":     {searchFields},
	}
	if c.config.SearchAPI == SearchAPILegacy {
		q.Set("startAt", strconv.Itoa(cur.startAt))
		return legacySearchPath, q
	}
	if cur.token != "" {
		q.Set("nextPageToken", cur.token)
	}
	return searchPath, q
}

// advance returns the cursor of the page after resp and whether one exists.
// A repeated token ends pagination so a misbehaving server cannot loop.
func (c *Connector) advance(cur cursor, resp *searchPage) (cursor, bool) {
	if c.config.SearchAPI == SearchAPILegacy {
		next := cursor{startAt: cur.startAt + len(resp.Issues)}
		return next, next.startAt < resp.Total
	}
	if resp.IsLast || resp.NextPageToken == "" || resp.NextPageToken == cur.token {
		return cursor{}, false
	}
	return cursor{token: resp.NextPageToken}, true
}

// toRawDocument returns false for unreadable or excluded issues.
func (c *Connector) toRawDocument(raw json.RawMessage) (domain.RawDocument, bool) {
	var is issueHeader
	if err := json.Unmarshal(raw, &is); err != nil || is.ID == "" {
		logger.Warn("Jira %s: skipping unreadable issue: %v", c.sourceName, err)
		return domain.RawDocument{}, false
	}
	if c.excluded(is.Fields.Reporter) || c.excluded(is.Fields.Creator) {
		logger.Debug("Jira %s: skipping %s from excluded account", c.sourceName, is.Key)
		return domain.RawDocument{}, false
	}

	f := is.Fields
	ticketURL := c.client.BaseURL() + "/browse/" + is.Key

	labels := f.Labels
	if labels == nil {
		labels = []string{}
	}
	components := make([]string, 0, len(f.Components))
	for _, comp := range f.Components {
		components = append(components, comp.Name)
	}

	md := map[string]any{
		"key":        is.Key,
		"status":     name(f.Status),
		"priority":   name(f.Priority),
		"issue_type": name(f.IssueType),
		"assignee":   displayName(f.Assignee),
		"reporter":   displayName(f.Reporter),
		"labels":     labels,
		"components": components,
		"created":    f.Created,
		"updated":    f.Updated,
		"ticket_url": ticketURL,
		"source":     "jira",
	}

	var updatedAt time.Time
	if t, err := time.Parse(timeLayout, f.Created); err == nil {
		md["created_ts"] = t.Unix()
	}
	if t, err := time.Parse(timeLayout, f.Updated); err == nil {
		md["updated_ts"] = t.Unix()
		updatedAt = t
	}

	return domain.RawDocument{
		SourceID:   is.ID,
		SourceType: "jira",
		URI:        ticketURL,
		MIMEType:   MIMETypeJiraIssue,
		Content:    raw,
		Metadata:   md,
		UpdatedAt:  updatedAt,
	}, true
}

// excluded reports whether issues by u are skipped. App accounts always are.
func (c *Connector) excluded(u *user) bool {
	if u == nil {
		return false
	}
	if u.AccountType == "app" {
		return true
	}
	for _, ex := range c.config.ExcludeAccounts {
		if ex == strings.ToLower(u.AccountID) ||
			ex == strings.ToLower(u.EmailAddress) ||
			ex == strings.ToLower(u.DisplayName) {
			return true
		}
	}
	return false
}

// Close releases resources.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func name(n *named) string {
	if n == nil {
		return ""
	}
	return n.Name
}

func displayName(u *user) string {
	if u == nil {
		return ""
	}
	return u.DisplayName
}
