package jira

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

const (
	// DefaultPageSize is the number of issues requested per page.
	DefaultPageSize = 100

	// DefaultMaxPages caps pagination.
	DefaultMaxPages = 1000

	// SearchAPIJQL pages /rest/api/3/search/jql with nextPageToken (Jira Cloud).
	SearchAPIJQL = "jql"

	// SearchAPILegacy pages /rest/api/2/search with startAt (Data Center).
	SearchAPILegacy = "legacy"
)

// Type describes the Jira connector and its settings.
func Type() domain.ConnectorType {
	return domain.ConnectorType{
		ID:          "jira",
		Name:        "Jira",
		Description: "Issues from a Jira Cloud or Data Center project",
		ConfigKeys: []domain.ConfigKey{
			{Key: "base_url", Description: "Site URL, e.g. https://acme.atlassian.net", Required: true},
			{Key: "project_key", Description: "Project key", Required: true},
			{Key: "token", Description: "API token or personal access token", Required: true, Secret: true},
			{Key: "email", Description: "Account email; enables basic auth"},
			{Key: "jql", Description: "Search query", Default: "project={project_key} ORDER BY updated DESC"},
			{Key: "page_size", Description: "Issues per page", Default: strconv.Itoa(DefaultPageSize)},
			{Key: "max_pages", Description: "Maximum pages per run", Default: strconv.Itoa(DefaultMaxPages)},
			{Key: "search_api", Description: "jql (Jira Cloud) or legacy (Data Center offset paging)", Default: SearchAPIJQL},
			{Key: "exclude_accounts", Description: "Comma-separated account ids, emails or names whose issues are skipped"},
		},
	}
}

// Config holds the parsed configuration for a Jira source.
type Config struct {
	BaseURL         string
	Email           string
	ProjectKey      string
	JQL             string
	SearchAPI       string
	PageSize        int
	MaxPages        int
	ExcludeAccounts []string
}

// ParseConfig parses a source's settings into a Config.
func ParseConfig(source domain.Source) (*Config, error) {
	cfg := &Config{
		BaseURL:    source.Setting("base_url", ""),
		Email:      source.Setting("email", ""),
		ProjectKey: source.Setting("project_key", ""),
	}
	if cfg.BaseURL == "" || cfg.ProjectKey == "" {
		return nil, fmt.Errorf("%w: source %s needs base_url and project_key", domain.ErrMisconfigured, source.Name)
	}
	cfg.JQL = source.Setting("jql", fmt.Sprintf("project=%s ORDER BY updated DESC", cfg.ProjectKey))

	var err error
	if cfg.PageSize, err = positiveInt(source, "page_size", DefaultPageSize); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = positiveInt(source, "max_pages", DefaultMaxPages); err != nil {
		return nil, err
	}
	cfg.ExcludeAccounts = splitList(source.Setting("exclude_accounts", ""))

	cfg.SearchAPI = strings.ToLower(source.Setting("search_api", SearchAPIJQL))
	if cfg.SearchAPI != SearchAPIJQL && cfg.SearchAPI != SearchAPILegacy {
		return nil, fmt.Errorf("%w: source %s: search_api must be %q or %q",
			domain.ErrMisconfigured, source.Name, SearchAPIJQL, SearchAPILegacy)
	}

	return cfg, nil
}

func positiveInt(source domain.Source, key string, fallback int) (int, error) {
	raw := source.Setting(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: source %s: %s must be a positive integer", domain.ErrMisconfigured, source.Name, key)
	}
	return n, nil
}

// splitList parses a comma-separated list, lowercased.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
