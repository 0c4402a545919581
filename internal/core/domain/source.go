package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Source represents a configured external system of record.
// Each source produces documents via a connector and writes to one index namespace.
type Source struct {
	// Name is the unique, human-chosen identifier for this source.
	Name string

	// Type identifies the connector type (e.g., "jira", "confluence").
	Type string

	// Index is the sink index or namespace the source's records are written to.
	Index string

	// Settings contains connector-specific configuration with credentials resolved.
	Settings map[string]string
}

// Setting returns the trimmed value for key, or fallback when unset.
func (s *Source) Setting(key, fallback string) string {
	if v, ok := s.Settings[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// Validate checks the source has a name, an index and every required setting
// declared by its connector type.
func (s *Source) Validate(ct *ConnectorType) error {
	if s.Name == "" {
		return fmt.Errorf("%w: source has no name", ErrMisconfigured)
	}
	if s.Index == "" {
		return fmt.Errorf("%w: source %s has no index name", ErrMisconfigured, s.Name)
	}
	if ct == nil {
		return fmt.Errorf("%w: source %s: %w %q", ErrMisconfigured, s.Name, ErrUnsupportedType, s.Type)
	}

	var missing []string
	for _, key := range ct.ConfigKeys {
		if key.Required && s.Setting(key.Key, "") == "" {
			missing = append(missing, key.Key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: source %s missing %s", ErrMisconfigured, s.Name, strings.Join(missing, ", "))
	}
	return nil
}
