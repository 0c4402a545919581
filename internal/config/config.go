// Package config loads sercha-sync settings from a TOML file, a .env file
// and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/services"
)

// EnvSuffix marks a setting whose value names an environment variable.
const EnvSuffix = "_env"

// DefaultDirName is the configuration directory under the user's home.
const DefaultDirName = ".sercha-sync"

// Duration is a time.Duration written as a Go duration string ("90s", "2m").
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full configuration file.
type Config struct {
	Data      DataConfig      `toml:"data"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Sink      SinkConfig      `toml:"sink"`
	Sync      SyncConfig      `toml:"sync"`
	Chunker   map[string]any  `toml:"chunker"`
	Sources   []SourceConfig  `toml:"sources"`

	// Path is the file the configuration was read from, empty when none.
	Path string `toml:"-"`
}

// DataConfig locates the local state database.
type DataConfig struct {
	Dir string `toml:"dir"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider          string   `toml:"provider"`
	Model             string   `toml:"model"`
	BaseURL           string   `toml:"base_url"`
	APIKey            string   `toml:"api_key"`
	APIKeyEnv         string   `toml:"api_key_env"`
	Dimensions        int      `toml:"dimensions"`
	Timeout           Duration `toml:"timeout"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
}

// SinkConfig selects the index sink backend.
type SinkConfig struct {
	Type      string            `toml:"type"`
	URL       string            `toml:"url"`
	APIKey    string            `toml:"api_key"`
	APIKeyEnv string            `toml:"api_key_env"`
	Timeout   Duration          `toml:"timeout"`
	Hosts     map[string]string `toml:"hosts"`
}

// SyncConfig tunes the orchestrator. Zero values take the defaults.
type SyncConfig struct {
	Workers         int      `toml:"workers"`
	DocumentTimeout Duration `toml:"document_timeout"`
	UpsertBatchSize int      `toml:"upsert_batch_size"`
	LookupBatchSize int      `toml:"lookup_batch_size"`
	PruneDeleted    *bool    `toml:"prune_deleted"`
	LockTTL         Duration `toml:"lock_ttl"`
}

// SourceConfig is one [[sources]] entry. Settings values may be strings,
// numbers, booleans or arrays of those.
type SourceConfig struct {
	Name     string         `toml:"name"`
	Type     string         `toml:"type"`
	Index    string         `toml:"index"`
	Settings map[string]any `toml:"settings"`
}

// DefaultPath returns ~/.sercha-sync/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName, "config.toml"), nil
}

// Load reads the configuration. A .env file in the working directory is
// loaded into the environment first without overriding existing variables.
// An empty path means the default location, which may be absent.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg := &Config{}
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes TOML, resolves *_env settings from the environment and
// fills defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.resolveEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) resolveEnv() {
	if c.Embedding.APIKey == "" && c.Embedding.APIKeyEnv != "" {
		c.Embedding.APIKey = os.Getenv(c.Embedding.APIKeyEnv)
	}
	if c.Sink.APIKey == "" && c.Sink.APIKeyEnv != "" {
		c.Sink.APIKey = os.Getenv(c.Sink.APIKeyEnv)
	}
}

func (c *Config) applyDefaults() {
	if c.Data.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Data.Dir = filepath.Join(home, DefaultDirName)
		}
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Sink.Type == "" {
		c.Sink.Type = "sqlite"
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Type = strings.TrimSpace(s.Type)
		s.Index = strings.TrimSpace(s.Index)
	}
}

// Validate checks structure that does not depend on connector types.
// Per-type settings are checked by the source service.
func (c *Config) Validate() error {
	var errs []error
	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		errs = append(errs, fmt.Errorf("embedding provider %q is not supported", c.Embedding.Provider))
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		errs = append(errs, errors.New("embedding provider openai needs api_key or api_key_env"))
	}
	switch c.Sink.Type {
	case "sqlite", "memory", "qdrant", "pinecone":
	default:
		errs = append(errs, fmt.Errorf("sink type %q is not supported", c.Sink.Type))
	}
	if c.Sink.Type == "pinecone" && c.Sink.APIKey == "" {
		errs = append(errs, errors.New("sink pinecone needs api_key or api_key_env"))
	}
	if c.Sync.Workers < 0 || c.Sync.UpsertBatchSize < 0 || c.Sync.LookupBatchSize < 0 {
		errs = append(errs, errors.New("sync sizes must not be negative"))
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("source #%d has no name", i+1))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("source %q is defined twice", s.Name))
		}
		seen[s.Name] = true
		if s.Type == "" {
			errs = append(errs, fmt.Errorf("source %q has no type", s.Name))
		}
		if s.Index == "" {
			errs = append(errs, fmt.Errorf("source %q has no index name", s.Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrMisconfigured, errors.Join(errs...))
	}
	return nil
}

// DomainSources converts the [[sources]] entries. Settings are flattened to
// strings and every key ending in _env is replaced by the named
// environment variable under the key without the suffix. An explicit
// value wins over an _env reference.
func (c *Config) DomainSources() []domain.Source {
	out := make([]domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, domain.Source{
			Name:     s.Name,
			Type:     s.Type,
			Index:    s.Index,
			Settings: resolveSettings(s.Settings),
		})
	}
	return out
}

// SyncOptions maps the [sync] section onto orchestrator options.
func (c *Config) SyncOptions() services.SyncOptions {
	opts := services.DefaultSyncOptions()
	if c.Sync.Workers > 0 {
		opts.Workers = c.Sync.Workers
	}
	if c.Sync.DocumentTimeout > 0 {
		opts.DocumentTimeout = c.Sync.DocumentTimeout.Std()
	}
	if c.Sync.UpsertBatchSize > 0 {
		opts.UpsertBatchSize = c.Sync.UpsertBatchSize
	}
	if c.Sync.LookupBatchSize > 0 {
		opts.LookupBatchSize = c.Sync.LookupBatchSize
	}
	if c.Sync.PruneDeleted != nil {
		opts.PruneDeleted = *c.Sync.PruneDeleted
	}
	if c.Sync.LockTTL > 0 {
		opts.LockTTL = c.Sync.LockTTL.Std()
	}
	return opts
}

// ChunkerType returns the configured chunker name, "semantic" by default.
func (c *Config) ChunkerType() string {
	if name, ok := c.Chunker["type"].(string); ok && name != "" {
		return name
	}
	return "semantic"
}

// DatabasePath returns the sqlite state file location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.Dir, "state.db")
}

func resolveSettings(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		if strings.HasSuffix(key, EnvSuffix) {
			continue
		}
		out[key] = stringify(value)
	}
	for key, value := range in {
		if !strings.HasSuffix(key, EnvSuffix) {
			continue
		}
		target := strings.TrimSuffix(key, EnvSuffix)
		if out[target] != "" {
			continue
		}
		out[target] = os.Getenv(stringify(value))
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}
