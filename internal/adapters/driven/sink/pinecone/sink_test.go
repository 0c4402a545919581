package pinecone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/sink/similarity"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// fakePinecone serves the data plane endpoints for an index of fixed dimension.
type fakePinecone struct {
	mu         sync.Mutex
	dims       int
	namespaces map[string]map[string]vector
	upserts    int
	fetches    int
}

func newFakePinecone(t *testing.T, dims int) (*fakePinecone, *httptest.Server) {
	t.Helper()
	f := &fakePinecone{dims: dims, namespaces: make(map[string]map[string]vector)}

	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Api-Key") != "pc-key" || r.Header.Get("X-Pinecone-API-Version") != APIVersion {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{"message": "invalid api key"})
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /vectors/upsert", auth(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Vectors   []vector `json:"vectors"`
			Namespace string   `json:"namespace"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, v := range req.Vectors {
			if len(v.Values) != f.dims {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"message": fmt.Sprintf("Vector dimension %d does not match the dimension of the index %d", len(v.Values), f.dims),
				})
				return
			}
		}
		ns, ok := f.namespaces[req.Namespace]
		if !ok {
			ns = make(map[string]vector)
			f.namespaces[req.Namespace] = ns
		}
		for _, v := range req.Vectors {
			ns[v.ID] = v
		}
		f.upserts++
		_ = json.NewEncoder(w).Encode(map[string]any{"upsertedCount": len(req.Vectors)})
	}))
	mux.HandleFunc("GET /vectors/fetch", auth(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f.mu.Lock()
		defer f.mu.Unlock()
		f.fetches++
		out := map[string]vector{}
		for _, id := range q["ids"] {
			if v, ok := f.namespaces[q.Get("namespace")][id]; ok {
				out[id] = v
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"vectors": out, "namespace": q.Get("namespace")})
	}))
	mux.HandleFunc("POST /vectors/delete", auth(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs       []string `json:"ids"`
			Namespace string   `json:"namespace"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, id := range req.IDs {
			delete(f.namespaces[req.Namespace], id)
		}
		_, _ = w.Write([]byte("{}"))
	}))
	mux.HandleFunc("POST /query", auth(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Namespace string                    `json:"namespace"`
			Vector    []float32                 `json:"vector"`
			TopK      int                       `json:"topK"`
			Filter    map[string]map[string]any `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter := make(map[string]any)
		for key, cond := range req.Filter {
			in, _ := cond["$in"].([]any)
			if len(in) != 1 {
				http.Error(w, "unsupported filter", http.StatusBadRequest)
				return
			}
			filter[key] = in[0]
		}

		type match struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata,omitempty"`
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		matches := []match{}
		for _, v := range f.namespaces[req.Namespace] {
			if !similarity.Matches(v.Metadata, filter) {
				continue
			}
			matches = append(matches, match{ID: v.ID, Score: similarity.Cosine(req.Vector, v.Values), Metadata: v.Metadata})
		}
		sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
		if len(matches) > req.TopK {
			matches = matches[:req.TopK]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"matches": matches, "namespace": req.Namespace})
	}))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func openSink(t *testing.T, host, index string) *Sink {
	t.Helper()
	f, err := NewFactory(Config{URL: host, APIKey: "pc-key"})
	require.NoError(t, err)
	s, err := f.Open(context.Background(), index)
	require.NoError(t, err)
	return s.(*Sink)
}

func TestNewFactory(t *testing.T) {
	_, err := NewFactory(Config{URL: "https://idx.pinecone.io"})
	assert.ErrorIs(t, err, domain.ErrMisconfigured)

	_, err = NewFactory(Config{APIKey: "k"})
	assert.ErrorIs(t, err, domain.ErrMisconfigured)

	f, err := NewFactory(Config{APIKey: "k", Hosts: map[string]string{"eng": "eng-abc.svc.pinecone.io/"}})
	require.NoError(t, err)
	assert.Equal(t, "pinecone", f.Type())
	assert.Equal(t, DefaultTimeout, f.client.Timeout)

	s, err := f.Open(context.Background(), "eng")
	require.NoError(t, err)
	assert.Equal(t, "https://eng-abc.svc.pinecone.io", s.(*Sink).host)
	assert.Equal(t, "eng", s.Index())

	_, err = f.Open(context.Background(), "ops")
	assert.ErrorIs(t, err, domain.ErrMisconfigured)

	_, err = f.Open(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSink_UpsertFetchDelete(t *testing.T) {
	_, server := newFakePinecone(t, 2)
	s := openSink(t, server.URL, "eng")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{
		{ID: "A-0", Vector: []float32{1, 0}, Metadata: map[string]any{"content_hash": "h1"}},
		{ID: "B-0", Vector: []float32{0, 1}},
	}))

	md, err := s.FetchMetadata(ctx, []string{"A-0", "B-0", "C-0"})
	require.NoError(t, err)
	require.Len(t, md, 2)
	assert.Equal(t, "h1", md["A-0"]["content_hash"])
	assert.NotNil(t, md["B-0"])

	require.NoError(t, s.Delete(ctx, []string{"A-0"}))
	md, err = s.FetchMetadata(ctx, []string{"A-0", "B-0"})
	require.NoError(t, err)
	assert.Len(t, md, 1)
	assert.Contains(t, md, "B-0")
}

func TestSink_NamespacesIsolated(t *testing.T) {
	_, server := newFakePinecone(t, 2)
	eng := openSink(t, server.URL, "eng")
	ops := openSink(t, server.URL, "ops")
	ctx := context.Background()

	require.NoError(t, eng.Upsert(ctx, []domain.IndexRecord{{ID: "A-0", Vector: []float32{1, 0}}}))

	md, err := ops.FetchMetadata(ctx, []string{"A-0"})
	require.NoError(t, err)
	assert.Empty(t, md)
}

func TestSink_Batching(t *testing.T) {
	fake, server := newFakePinecone(t, 2)
	s := openSink(t, server.URL, "eng")
	ctx := context.Background()

	records := make([]domain.IndexRecord, 250)
	ids := make([]string, len(records))
	for i := range records {
		ids[i] = fmt.Sprintf("D-%d", i)
		records[i] = domain.IndexRecord{ID: ids[i], Vector: []float32{1, float32(i)}}
	}
	require.NoError(t, s.Upsert(ctx, records))
	assert.Equal(t, 3, fake.upserts)

	md, err := s.FetchMetadata(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, md, 250)
	assert.Equal(t, 3, fake.fetches)
}

func TestSink_Search(t *testing.T) {
	_, server := newFakePinecone(t, 2)
	s := openSink(t, server.URL, "eng")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{
		{ID: "A-0", Vector: []float32{1, 0}, Metadata: map[string]any{"status": "Open"}},
		{ID: "B-0", Vector: []float32{0.6, 0.8}, Metadata: map[string]any{"status": "Done", "labels": []string{"ui"}}},
	}))

	matches, err := s.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "A-0", matches[0].ID)
	assert.InDelta(t, 0.6, matches[1].Score, 1e-6)

	matches, err = s.Search(ctx, []float32{1, 0}, 10, map[string]any{"labels": "ui"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "B-0", matches[0].ID)
	assert.Equal(t, "Done", matches[0].Metadata["status"])
}

func TestSink_Errors(t *testing.T) {
	_, server := newFakePinecone(t, 2)
	ctx := context.Background()

	s := openSink(t, server.URL, "eng")
	err := s.Upsert(ctx, []domain.IndexRecord{{ID: "A-0", Vector: []float32{1, 0, 0}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	err = s.Upsert(ctx, []domain.IndexRecord{
		{ID: "A-0", Vector: []float32{1, 0}},
		{ID: "A-1", Vector: []float32{1}},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	s.apiKey = "wrong"
	_, err = s.FetchMetadata(ctx, []string{"A-0"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid api key", apiErr.Message)
}
