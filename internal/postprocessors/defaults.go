package postprocessors

import (
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in chunkers with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("semantic", buildSemantic)
}

// buildSemantic creates the semantic chunker from generic config.
// Supported config keys:
//   - buffer_size (int): Neighbouring sentences per window (default: 1)
//   - breakpoint_percentile (float): Distance percentile that splits (default: 85)
//   - min_chunk_size (int): Bytes below which chunks merge (default: 100)
//   - max_chunk_size (int): Hard upper bound in bytes (default: 2000)
//   - overlap_sentences (int): Sentences repeated from the previous chunk (default: 0)
func buildSemantic(cfg map[string]any) (driven.Chunker, error) {
	var opts []chunker.Option

	if v, ok := getInt(cfg, "buffer_size"); ok {
		opts = append(opts, chunker.WithBufferSize(v))
	}
	if v, ok := getFloat(cfg, "breakpoint_percentile"); ok {
		opts = append(opts, chunker.WithBreakpointPercentile(v))
	}
	if v, ok := getInt(cfg, "min_chunk_size"); ok {
		opts = append(opts, chunker.WithMinChunkSize(v))
	}
	if v, ok := getInt(cfg, "max_chunk_size"); ok {
		opts = append(opts, chunker.WithMaxChunkSize(v))
	}
	if v, ok := getInt(cfg, "overlap_sentences"); ok {
		opts = append(opts, chunker.WithOverlapSentences(v))
	}

	return chunker.New(opts...), nil
}

// getInt extracts an int from a generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getInt(cfg map[string]any, key string) (int, bool) {
	switch v := cfg[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func getFloat(cfg map[string]any, key string) (float64, bool) {
	switch v := cfg[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
