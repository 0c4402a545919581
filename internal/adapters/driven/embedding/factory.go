// Package embedding selects the embedding backend from configuration.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// PingTimeout bounds the startup connectivity check.
const PingTimeout = 5 * time.Second

// Settings selects and configures an embedding backend.
type Settings struct {
	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	Dimensions        int
	Timeout           time.Duration
	RequestsPerMinute int
}

// New creates the embedding service named by s.Provider.
func New(s Settings) (driven.EmbeddingService, error) {
	switch s.Provider {
	case ProviderOllama, "":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Timeout:    s.Timeout,
			Dimensions: s.Dimensions,
		}), nil
	case ProviderOpenAI:
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:            s.APIKey,
			BaseURL:           s.BaseURL,
			Model:             s.Model,
			Timeout:           s.Timeout,
			Dimensions:        s.Dimensions,
			RequestsPerMinute: s.RequestsPerMinute,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, s.Provider)
	}
}

// Check pings svc so an unreachable backend is reported before a run
// starts rather than once per document.
func Check(ctx context.Context, svc driven.EmbeddingService) error {
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %s unreachable: %w", domain.ErrEmbedding, svc.ModelName(), err)
	}
	return nil
}
