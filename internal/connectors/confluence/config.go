package confluence

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

const (
	// DefaultPageSize is the number of pages requested per call.
	DefaultPageSize = 50

	// DefaultMaxPages caps pagination.
	DefaultMaxPages = 1000
)

// Default exclusion lists for template and system-generated pages.
var (
	DefaultExcludeTitles        = []string{"overview", "project plan", "software development", "template - decision documentation", "template - product requirements", "template - meeting notes"}
	DefaultExcludeTitlePrefixes = []string{"project plan"}
	DefaultExcludeLabels        = []string{"system", "auto-generated"}
	DefaultExcludeCreators      = []string{"@atlassian.com", "noreply"}
)

// Type describes the Confluence connector and its settings.
func Type() domain.ConnectorType {
	return domain.ConnectorType{
		ID:          "confluence",
		Name:        "Confluence",
		Description: "Pages and their comments from a Confluence site or space",
		ConfigKeys: []domain.ConfigKey{
			{Key: "base_url", Description: "Site URL, e.g. https://acme.atlassian.net", Required: true},
			{Key: "token", Description: "API token or personal access token", Required: true, Secret: true},
			{Key: "email", Description: "Account email; enables basic auth"},
			{Key: "space_key", Description: "Restrict to one space"},
			{Key: "page_size", Description: "Pages per request", Default: strconv.Itoa(DefaultPageSize)},
			{Key: "max_pages", Description: "Maximum requests per run", Default: strconv.Itoa(DefaultMaxPages)},
			{Key: "exclude_titles", Description: "Comma-separated page titles to skip", Default: strings.Join(DefaultExcludeTitles, ",")},
			{Key: "exclude_labels", Description: "Comma-separated labels whose pages are skipped", Default: strings.Join(DefaultExcludeLabels, ",")},
			{Key: "exclude_creators", Description: "Comma-separated creator email fragments to skip", Default: strings.Join(DefaultExcludeCreators, ",")},
			{Key: "include_comments", Description: "Append footer comments", Default: "true"},
		},
	}
}

// Config holds the parsed configuration for a Confluence source.
type Config struct {
	BaseURL              string
	Email                string
	SpaceKey             string
	PageSize             int
	MaxPages             int
	ExcludeTitles        []string
	ExcludeTitlePrefixes []string
	ExcludeLabels        []string
	ExcludeCreators      []string
	IncludeComments      bool
}

// ParseConfig parses a source's settings into a Config.
func ParseConfig(source domain.Source) (*Config, error) {
	cfg := &Config{
		BaseURL:              source.Setting("base_url", ""),
		Email:                source.Setting("email", ""),
		SpaceKey:             source.Setting("space_key", ""),
		ExcludeTitles:        listSetting(source, "exclude_titles", DefaultExcludeTitles),
		ExcludeTitlePrefixes: DefaultExcludeTitlePrefixes,
		ExcludeLabels:        listSetting(source, "exclude_labels", DefaultExcludeLabels),
		ExcludeCreators:      listSetting(source, "exclude_creators", DefaultExcludeCreators),
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: source %s needs base_url", domain.ErrMisconfigured, source.Name)
	}
	if _, ok := source.Settings["exclude_titles"]; ok {
		cfg.ExcludeTitlePrefixes = nil
	}

	var err error
	if cfg.PageSize, err = positiveInt(source, "page_size", DefaultPageSize); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = positiveInt(source, "max_pages", DefaultMaxPages); err != nil {
		return nil, err
	}
	if cfg.IncludeComments, err = strconv.ParseBool(source.Setting("include_comments", "true")); err != nil {
		return nil, fmt.Errorf("%w: source %s: include_comments must be a boolean", domain.ErrMisconfigured, source.Name)
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

// listSetting parses a comma-separated list, lowercased. An explicitly empty
// setting clears the defaults.
func listSetting(source domain.Source, key string, defaults []string) []string {
	raw, ok := source.Settings[key]
	if !ok {
		return defaults
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
