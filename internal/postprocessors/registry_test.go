package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// registryMockChunker is a simple mock for testing registry functionality.
type registryMockChunker struct {
	name string
}

func (m *registryMockChunker) Name() string { return m.name }
func (m *registryMockChunker) Chunk(_ context.Context, _ *domain.Document) ([]domain.Chunk, error) {
	return nil, nil
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if len(r.builders) != 0 {
		t.Errorf("expected empty builders, got %d", len(r.builders))
	}
}

func TestRegistry_Build_Success(t *testing.T) {
	r := NewRegistry()
	r.Register("test", func(cfg map[string]any) (driven.Chunker, error) {
		name := "default"
		if n, ok := cfg["name"].(string); ok {
			name = n
		}
		return &registryMockChunker{name: name}, nil
	})

	c, err := r.Build("test", map[string]any{"name": "custom"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if c.Name() != "custom" {
		t.Errorf("expected name 'custom', got %q", c.Name())
	}
}

func TestRegistry_Build_Unknown(t *testing.T) {
	_, err := NewRegistry().Build("unknown", nil)
	if !errors.Is(err, domain.ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", nil)
	r.Register("alpha", nil)

	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("unexpected names %v", names)
	}
	if !r.Has("zeta") || r.Has("beta") {
		t.Error("Has returned wrong result")
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	c, err := r.Build("semantic", nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if c.Name() != "semantic" {
		t.Errorf("expected semantic chunker, got %q", c.Name())
	}
}

func TestBuildSemantic_AppliesConfig(t *testing.T) {
	// TOML integers decode as int64.
	c, err := buildSemantic(map[string]any{
		"max_chunk_size":        int64(60),
		"min_chunk_size":        int64(10),
		"breakpoint_percentile": int64(90),
	})
	if err != nil {
		t.Fatalf("buildSemantic failed: %v", err)
	}

	text := strings.TrimSpace(strings.Repeat("word ", 100))
	chunks, err := c.Chunk(context.Background(), &domain.Document{ID: "d", FullText: text})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if len(ch.Text) > 60 {
			t.Errorf("chunk %d exceeds 60 bytes: %d", i, len(ch.Text))
		}
	}
}

func TestGetInt(t *testing.T) {
	cfg := map[string]any{"a": 3, "b": int64(4), "c": 5.0, "d": "6"}
	for key, want := range map[string]int{"a": 3, "b": 4, "c": 5} {
		if got, ok := getInt(cfg, key); !ok || got != want {
			t.Errorf("getInt(%q) = %d, %v", key, got, ok)
		}
	}
	if _, ok := getInt(cfg, "d"); ok {
		t.Error("string value should not convert")
	}
	if _, ok := getInt(nil, "a"); ok {
		t.Error("nil config should not convert")
	}
}
