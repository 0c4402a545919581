// Package auth provides TokenProvider implementations for connectors.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// TokenSetting is the source setting that carries the API token.
const TokenSetting = "token"

// Ensure StaticTokenProvider implements the TokenProvider interface.
var _ driven.TokenProvider = (*StaticTokenProvider)(nil)

// StaticTokenProvider provides a token resolved from configuration.
// API tokens and personal access tokens don't expire during a run and
// don't require refresh.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a token provider for a fixed token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: strings.TrimSpace(token)}
}

// ForSource returns a provider for the source's token setting.
func ForSource(source domain.Source) (*StaticTokenProvider, error) {
	token := source.Setting(TokenSetting, "")
	if token == "" {
		return nil, fmt.Errorf("%w: source %s has no %s", domain.ErrMisconfigured, source.Name, TokenSetting)
	}
	return NewStaticTokenProvider(token), nil
}

// GetToken returns the token.
func (p *StaticTokenProvider) GetToken(_ context.Context) (string, error) {
	if p.token == "" {
		return "", fmt.Errorf("%w: no token configured", domain.ErrMisconfigured)
	}
	return p.token, nil
}

// IsAuthenticated returns true if a token is configured.
func (p *StaticTokenProvider) IsAuthenticated() bool {
	return p.token != ""
}
