package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

type openaiRequestLog struct {
	auth       string
	dimensions int
	inputs     []string
}

// openaiServer answers embeddings in reverse index order to check reordering.
func openaiServer(t *testing.T, dims int, log *openaiRequestLog) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.auth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/models":
			_, _ = w.Write([]byte(`{"data": []}`))
		case "/embeddings":
			var req embeddingRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.dimensions = req.Dimensions
			log.inputs = req.Input

			type item struct {
				Embedding []float64 `json:"embedding"`
				Index     int       `json:"index"`
			}
			data := make([]item, 0, len(req.Input))
			for i := len(req.Input) - 1; i >= 0; i-- {
				vec := make([]float64, dims)
				vec[0] = float64(i)
				data = append(data, item{Embedding: vec, Index: i})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEmbeddingService(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.ErrorIs(t, err, domain.ErrMisconfigured)

	s, err := NewEmbeddingService(Config{APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, 1536, s.Dimensions())

	s, err = NewEmbeddingService(Config{APIKey: "sk", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, s.Dimensions())
}

func TestEmbedBatch_OrdersByIndex(t *testing.T) {
	var log openaiRequestLog
	srv := openaiServer(t, 8, &log)

	s, err := NewEmbeddingService(Config{APIKey: "sk-test", BaseURL: srv.URL + "/", Dimensions: 8, RequestsPerMinute: 60000})
	require.NoError(t, err)

	vecs, err := s.EmbedBatch(context.Background(), []string{"zero", "one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Len(t, v, 8)
		assert.Equal(t, float32(i), v[0])
	}

	assert.Equal(t, "Bearer sk-test", log.auth)
	assert.Equal(t, 8, log.dimensions)
	assert.Equal(t, []string{"zero", "one", "two"}, log.inputs)
}

func TestEmbedBatch_DimensionMismatch(t *testing.T) {
	var log openaiRequestLog
	srv := openaiServer(t, 4, &log)

	s, err := NewEmbeddingService(Config{APIKey: "sk", BaseURL: srv.URL, Model: "custom-model", Dimensions: 8, RequestsPerMinute: 60000})
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Zero(t, log.dimensions)
}

func TestEmbedBatch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	s, err := NewEmbeddingService(Config{APIKey: "bad", BaseURL: srv.URL, RequestsPerMinute: 60000})
	require.NoError(t, err)

	_, err = s.EmbedBatch(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Contains(t, err.Error(), "Incorrect API key")
	assert.Error(t, s.Ping(context.Background()))
}

func TestEmbedBatch_CancelledContext(t *testing.T) {
	s, err := NewEmbeddingService(Config{APIKey: "sk", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestPing(t *testing.T) {
	var log openaiRequestLog
	srv := openaiServer(t, 4, &log)

	s, err := NewEmbeddingService(Config{APIKey: "sk", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, "Bearer sk", log.auth)
}
