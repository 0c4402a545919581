package github

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector fetches issues from GitHub repositories.
type Connector struct {
	sourceName string
	config     *Config
	client     *Client
	mu         sync.Mutex
	closed     bool
}

// New creates a new GitHub connector.
func New(sourceName string, cfg *Config, client *Client) *Connector {
	return &Connector{
		sourceName: sourceName,
		config:     cfg,
		client:     client,
	}
}

// Build creates a GitHub connector from a source configuration.
func Build(source domain.Source, opts ...ClientOption) (driven.Connector, error) {
	cfg, err := ParseConfig(source)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.ForSource(source)
	if err != nil {
		return nil, err
	}
	if cfg.BaseURL != "" {
		opts = append([]ClientOption{WithBaseURL(cfg.BaseURL)}, opts...)
	}
	return New(source.Name, cfg, NewClient(tokens, opts...)), nil
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return "github"
}

// SourceName returns the configured source name.
func (c *Connector) SourceName() string {
	return c.sourceName
}

// Fetch streams the issues of every configured repository.
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

		for _, repo := range c.config.Repos {
			if !c.fetchRepo(ctx, repo, docsChan, errsChan) {
				return
			}
		}
	}()

	return docsChan, errsChan
}

// fetchRepo sends one repository's issues. It returns false once ctx is done.
func (c *Connector) fetchRepo(
	ctx context.Context, repo Repo, docsChan chan<- domain.RawDocument, errsChan chan<- error,
) bool {
	report := func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		logger.Warn("GitHub %s: %s: %v", c.sourceName, repo, err)
		select {
		case <-ctx.Done():
			return false
		case errsChan <- fmt.Errorf("%w: github %s: %w", domain.ErrSourceFetch, repo, err):
			return true
		}
	}

	issues, more, err := c.client.ListIssues(ctx, repo.Owner, repo.Name, c.config.State, c.config.MaxPages)
	if err != nil {
		if !report(err) {
			return false
		}
	} else if more {
		if !report(fmt.Errorf("stopped after max_pages=%d", c.config.MaxPages)) {
			return false
		}
	}

	for _, issue := range issues {
		// Pull requests show up in the issues endpoint too.
		if issue.IsPullRequest() {
			continue
		}
		if c.config.ExcludeBots && isBot(issue.GetUser()) {
			continue
		}

		comments, err := c.client.ListIssueComments(ctx, repo.Owner, repo.Name, issue.GetNumber())
		if err != nil {
			if !report(fmt.Errorf("comments of #%d: %w", issue.GetNumber(), err)) {
				return false
			}
			continue
		}

		doc, err := buildIssueDocument(repo, issue, comments, c.config.ExcludeBots)
		if err != nil {
			logger.Warn("GitHub %s: skipping #%d: %v", c.sourceName, issue.GetNumber(), err)
			continue
		}

		select {
		case <-ctx.Done():
			return false
		case docsChan <- doc:
		}
	}
	return true
}

// Close releases resources.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
