package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

func TestNew(t *testing.T) {
	svc, err := New(Settings{})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", svc.ModelName())

	svc, err = New(Settings{Provider: ProviderOpenAI, APIKey: "sk", Model: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.Equal(t, 1536, svc.Dimensions())

	_, err = New(Settings{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, domain.ErrMisconfigured)

	_, err = New(Settings{Provider: "cohere"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestCheck(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer up.Close()

	svc, err := New(Settings{Provider: ProviderOllama, BaseURL: up.URL})
	require.NoError(t, err)
	assert.NoError(t, Check(context.Background(), svc))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	svc, err = New(Settings{Provider: ProviderOllama, BaseURL: down.URL})
	require.NoError(t, err)
	assert.ErrorIs(t, Check(context.Background(), svc), domain.ErrEmbedding)
}
