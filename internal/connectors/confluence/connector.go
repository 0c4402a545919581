// Package confluence fetches pages from a Confluence site through the
// content REST API, skipping templates and system-generated pages.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
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

// MIMETypeConfluencePage is the custom MIME type for Confluence pages.
const MIMETypeConfluencePage = "application/vnd.atlassian.confluence.page+json"

const (
	contentPath   = "/wiki/rest/api/content"
	baseExpand    = "body.storage,version,metadata.labels,history,space"
	commentExpand = "children.comment.body.storage"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches pages from Confluence.
type Connector struct {
	sourceName string
	config     *Config
	client     *atlassian.Client
	mu         sync.Mutex
	closed     bool
}

// New creates a new Confluence connector.
func New(sourceName string, cfg *Config, client *atlassian.Client) *Connector {
	return &Connector{
		sourceName: sourceName,
		config:     cfg,
		client:     client,
	}
}

// Build creates a Confluence connector from a source configuration.
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
	return "confluence"
}

// SourceName returns the configured source name.
func (c *Connector) SourceName() string {
	return c.sourceName
}

type contentPage struct {
	Results []json.RawMessage `json:"results"`
	Start   int               `json:"start"`
	Limit   int               `json:"limit"`
	Size    int               `json:"size"`
	Links   struct {
		Next string `json:"next"`
	} `json:"_links"`
}

type pageHeader struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Title  string `json:"title"`
	Space  struct {
		Key string `json:"key"`
	} `json:"space"`
	Version struct {
		Number int    `json:"number"`
		When   string `json:"when"`
	} `json:"version"`
	History struct {
		CreatedDate string `json:"createdDate"`
		CreatedBy   struct {
			Email       string `json:"email"`
			DisplayName string `json:"displayName"`
			AccountType string `json:"accountType"`
		} `json:"createdBy"`
	} `json:"history"`
	Metadata struct {
		Labels struct {
			Results []struct {
				Name string `json:"name"`
			} `json:"results"`
		} `json:"labels"`
	} `json:"metadata"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

// Fetch pages through the content API and streams every page that passes
// the title, label and creator filters.
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

		start := 0
		for page := 0; ; page++ {
			if page == c.config.MaxPages {
				logger.Warn("Confluence %s: stopped after max_pages=%d", c.sourceName, c.config.MaxPages)
				errsChan <- fmt.Errorf("%w: confluence: stopped after %d pages", domain.ErrSourceFetch, page)
				return
			}

			var resp contentPage
			if err := c.client.GetJSON(ctx, contentPath, c.query(start), &resp); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("Confluence %s: page at %d failed: %v", c.sourceName, start, err)
				errsChan <- fmt.Errorf("%w: confluence page at %d: %w", domain.ErrSourceFetch, start, err)
				return
			}
			if len(resp.Results) == 0 {
				return
			}

			for _, raw := range resp.Results {
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

			// The server may cap limit below page_size; only the next link
			// says whether more pages exist.
			if resp.Links.Next == "" {
				return
			}
			start += len(resp.Results)
		}
	}()

	return docsChan, errsChan
}

func (c *Connector) query(start int) url.Values {
	expand := baseExpand
	if c.config.IncludeComments {
		expand += "," + commentExpand
	}
	q := url.Values{
		"type":   {"page"},
		"expand": {expand},
		"start":  {strconv.Itoa(start)},
		"limit":  {strconv.Itoa(c.config.PageSize)},
	}
	if c.config.SpaceKey != "" {
		q.Set("spaceKey", c.config.SpaceKey)
	}
	return q
}

// toRawDocument returns false for unreadable or excluded pages.
func (c *Connector) toRawDocument(raw json.RawMessage) (domain.RawDocument, bool) {
	var p pageHeader
	if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
		logger.Warn("Confluence %s: skipping unreadable page: %v", c.sourceName, err)
		return domain.RawDocument{}, false
	}

	labels := make([]string, 0, len(p.Metadata.Labels.Results))
	for _, l := range p.Metadata.Labels.Results {
		labels = append(labels, l.Name)
	}

	if reason := c.exclusion(&p, labels); reason != "" {
		logger.Debug("Confluence %s: skipping %q: %s", c.sourceName, p.Title, reason)
		return domain.RawDocument{}, false
	}

	pageURL := c.client.BaseURL() + "/wiki/pages/viewpage.action?pageId=" + p.ID
	if p.Links.WebUI != "" {
		pageURL = c.client.BaseURL() + "/wiki" + p.Links.WebUI
	}

	md := map[string]any{
		"title":   p.Title,
		"page_id": p.ID,
		"url":     pageURL,
		"type":    p.Type,
		"status":  p.Status,
		"created": p.History.CreatedDate,
		"creator": p.History.CreatedBy.DisplayName,
		"version": p.Version.Number,
		"labels":  labels,
		"space":   p.Space.Key,
		"source":  "confluence",
	}

	var updatedAt time.Time
	if t, err := time.Parse(time.RFC3339, p.Version.When); err == nil {
		updatedAt = t
	}

	return domain.RawDocument{
		SourceID:   p.ID,
		SourceType: "confluence",
		URI:        pageURL,
		MIMEType:   MIMETypeConfluencePage,
		Content:    raw,
		Metadata:   md,
		UpdatedAt:  updatedAt,
	}, true
}

// exclusion returns why a page is skipped, or "" to keep it.
func (c *Connector) exclusion(p *pageHeader, labels []string) string {
	title := strings.ToLower(strings.TrimSpace(p.Title))
	if slices.Contains(c.config.ExcludeTitles, title) {
		return "excluded title"
	}
	for _, prefix := range c.config.ExcludeTitlePrefixes {
		if strings.HasPrefix(title, prefix) {
			return "excluded title prefix"
		}
	}
	for _, l := range labels {
		if slices.Contains(c.config.ExcludeLabels, strings.ToLower(l)) {
			return "excluded label " + l
		}
	}

	creator := p.History.CreatedBy
	if creator.AccountType == "app" {
		return "app account"
	}
	email := strings.ToLower(creator.Email)
	for _, fragment := range c.config.ExcludeCreators {
		if email != "" && strings.Contains(email, fragment) {
			return "excluded creator"
		}
	}
	return ""
}

// Close releases resources.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
