package github

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// DefaultMaxPages caps issue pages per repository.
const DefaultMaxPages = 100

// Type describes the GitHub connector and its settings.
func Type() domain.ConnectorType {
	return domain.ConnectorType{
		ID:          "github",
		Name:        "GitHub Issues",
		Description: "Issues and their comments from GitHub repositories",
		ConfigKeys: []domain.ConfigKey{
			{Key: "repos", Description: "Comma-separated owner/name list", Required: true},
			{Key: "token", Description: "Personal access token", Required: true, Secret: true},
			{Key: "state", Description: "open, closed or all", Default: "all"},
			{Key: "max_pages", Description: "Pages of 100 issues per repository", Default: strconv.Itoa(DefaultMaxPages)},
			{Key: "exclude_bots", Description: "Skip issues and comments by bots", Default: "true"},
			{Key: "base_url", Description: "GitHub Enterprise API root"},
		},
	}
}

// Repo identifies a repository.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// Config holds the parsed configuration for a GitHub source.
type Config struct {
	Repos       []Repo
	State       string
	MaxPages    int
	ExcludeBots bool
	BaseURL     string
}

// ParseConfig parses a source's settings into a Config struct.
func ParseConfig(source domain.Source) (*Config, error) {
	cfg := &Config{
		State:   strings.ToLower(source.Setting("state", "all")),
		BaseURL: source.Setting("base_url", ""),
	}

	repos, err := parseRepos(source.Setting("repos", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: source %s: %w", domain.ErrMisconfigured, source.Name, err)
	}
	cfg.Repos = repos

	switch cfg.State {
	case "open", "closed", "all":
	default:
		return nil, fmt.Errorf("%w: source %s: %w", domain.ErrMisconfigured, source.Name, ErrConfigInvalidState)
	}

	cfg.MaxPages = DefaultMaxPages
	if raw := source.Setting("max_pages", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: source %s: max_pages must be a positive integer", domain.ErrMisconfigured, source.Name)
		}
		cfg.MaxPages = n
	}

	if cfg.ExcludeBots, err = strconv.ParseBool(source.Setting("exclude_bots", "true")); err != nil {
		return nil, fmt.Errorf("%w: source %s: exclude_bots must be a boolean", domain.ErrMisconfigured, source.Name)
	}

	return cfg, nil
}

// parseRepos parses a comma-separated owner/name list.
func parseRepos(s string) ([]Repo, error) {
	var repos []Repo
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		owner, name, ok := strings.Cut(part, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("%w: %q", ErrConfigInvalidRepo, part)
		}
		repos = append(repos, Repo{Owner: owner, Name: name})
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("%w: no repositories", ErrConfigInvalidRepo)
	}
	return repos, nil
}
