package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/sink/similarity"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// fakeQdrant keeps collections in memory and serves the REST subset the sink uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]int
	points      map[string]map[string]point
	created     int
	apiKeys     []string
}

func newFakeQdrant(t *testing.T) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{
		collections: make(map[string]int),
		points:      make(map[string]map[string]point),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/{c}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		size, ok := f.collections[r.PathValue("c")]
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{
			"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": size}}},
		}})
	})
	mux.HandleFunc("PUT /collections/{c}", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Vectors.Distance != "Cosine" {
			http.Error(w, "bad create", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.collections[r.PathValue("c")] = req.Vectors.Size
		f.points[r.PathValue("c")] = make(map[string]point)
		f.created++
		writeJSON(w, map[string]any{"result": true})
	})
	mux.HandleFunc("PUT /collections/{c}/points", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Points []point `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
		coll, ok := f.points[r.PathValue("c")]
		if !ok {
			notFound(w)
			return
		}
		for _, p := range req.Points {
			if len(p.Vector) != f.collections[r.PathValue("c")] {
				w.WriteHeader(http.StatusBadRequest)
				writeJSON(w, map[string]any{"status": map[string]any{"error": "Wrong input: Vector dimension error"}})
				return
			}
			coll[p.ID] = p
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	})
	mux.HandleFunc("POST /collections/{c}/points", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		coll, ok := f.points[r.PathValue("c")]
		if !ok {
			notFound(w)
			return
		}
		result := []point{}
		for _, id := range req.IDs {
			if p, ok := coll[id]; ok {
				result = append(result, point{ID: p.ID, Payload: p.Payload})
			}
		}
		writeJSON(w, map[string]any{"result": result})
	})
	mux.HandleFunc("POST /collections/{c}/points/delete", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Points []string `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		coll, ok := f.points[r.PathValue("c")]
		if !ok {
			notFound(w)
			return
		}
		for _, id := range req.Points {
			delete(coll, id)
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	})
	mux.HandleFunc("POST /collections/{c}/points/search", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value any `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter := make(map[string]any)
		for _, m := range req.Filter.Must {
			filter[m.Key] = m.Match.Value
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		coll, ok := f.points[r.PathValue("c")]
		if !ok {
			notFound(w)
			return
		}
		result := []point{}
		for _, p := range coll {
			if !similarity.Matches(p.Payload, filter) {
				continue
			}
			result = append(result, point{ID: p.ID, Payload: p.Payload, Score: similarity.Cosine(req.Vector, p.Vector)})
		}
		sort.Slice(result, func(i, j int) bool { return result[i].Score > result[j].Score })
		if len(result) > req.Limit {
			result = result[:req.Limit]
		}
		writeJSON(w, map[string]any{"result": result})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	writeJSON(w, map[string]any{"status": map[string]any{"error": "Not found: Collection doesn't exist!"}})
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func openSink(t *testing.T, url, collection string) *Sink {
	t.Helper()
	s, err := NewFactory(Config{URL: url + "/", APIKey: "secret"}).Open(context.Background(), collection)
	require.NoError(t, err)
	return s.(*Sink)
}

func TestPointID(t *testing.T) {
	id := PointID("PROJ-1-0")
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
	assert.Equal(t, id, PointID("PROJ-1-0"))
	assert.NotEqual(t, id, PointID("PROJ-1-1"))
}

func TestNewFactory_Defaults(t *testing.T) {
	f := NewFactory(Config{})
	assert.Equal(t, DefaultURL, f.baseURL)
	assert.Equal(t, DefaultTimeout, f.client.Timeout)
	assert.Equal(t, "qdrant", f.Type())

	_, err := f.Open(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSink_MissingCollection(t *testing.T) {
	_, server := newFakeQdrant(t)
	s := openSink(t, server.URL, "eng")
	ctx := context.Background()

	md, err := s.FetchMetadata(ctx, []string{"A-0"})
	require.NoError(t, err)
	assert.Empty(t, md)

	matches, err := s.Search(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)

	assert.NoError(t, s.Delete(ctx, []string{"A-0"}))
}

func TestSink_UpsertCreatesCollectionOnce(t *testing.T) {
	fake, server := newFakeQdrant(t)
	s := openSink(t, server.URL, "eng")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{
		{ID: "A-0", Vector: []float32{1, 0}, Metadata: map[string]any{"content_hash": "h1", "status": "Open"}},
		{ID: "B-0", Vector: []float32{0, 1}, Metadata: map[string]any{"content_hash": "h2", "labels": []string{"ui", "bug"}}},
	}))
	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{
		{ID: "A-0", Vector: []float32{1, 0}, Metadata: map[string]any{"content_hash": "h3"}},
	}))

	assert.Equal(t, 1, fake.created)
	assert.Equal(t, 2, fake.collections["eng"])
	assert.Equal(t, []string{"secret", "secret"}, fake.apiKeys)

	md, err := s.FetchMetadata(ctx, []string{"A-0", "B-0", "C-0"})
	require.NoError(t, err)
	require.Len(t, md, 2)
	assert.Equal(t, map[string]any{"content_hash": "h3"}, md["A-0"])
	assert.Equal(t, "h2", md["B-0"]["content_hash"])
}

func TestSink_SearchAndFilter(t *testing.T) {
	_, server := newFakeQdrant(t)
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
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "B-0", matches[1].ID)
	assert.NotContains(t, matches[0].Metadata, PayloadRecordID)

	matches, err = s.Search(ctx, []float32{1, 0}, 10, map[string]any{"labels": "ui"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "B-0", matches[0].ID)

	matches, err = s.Search(ctx, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestSink_Delete(t *testing.T) {
	_, server := newFakeQdrant(t)
	s := openSink(t, server.URL, "eng")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{
		{ID: "A-0", Vector: []float32{1, 0}},
		{ID: "A-1", Vector: []float32{0, 1}},
	}))
	require.NoError(t, s.Delete(ctx, []string{"A-1", "unknown"}))

	md, err := s.FetchMetadata(ctx, []string{"A-0", "A-1"})
	require.NoError(t, err)
	assert.Len(t, md, 1)
	assert.Contains(t, md, "A-0")
}

func TestSink_DimensionMismatch(t *testing.T) {
	fake, server := newFakeQdrant(t)
	fake.collections["eng"] = 3
	fake.points["eng"] = make(map[string]point)
	ctx := context.Background()

	s := openSink(t, server.URL, "eng")
	err := s.Upsert(ctx, []domain.IndexRecord{{ID: "A-0", Vector: []float32{1, 0}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	err = s.Upsert(ctx, []domain.IndexRecord{
		{ID: "A-0", Vector: []float32{1, 0, 0}},
		{ID: "A-1", Vector: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Empty(t, fake.points["eng"])
}

func TestSink_ServerDimensionError(t *testing.T) {
	fake, server := newFakeQdrant(t)
	ctx := context.Background()

	s := openSink(t, server.URL, "eng")
	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{{ID: "A-0", Vector: []float32{1, 0}}}))

	// resized behind the sink's back
	fake.mu.Lock()
	fake.collections["eng"] = 4
	fake.mu.Unlock()

	err := s.Upsert(ctx, []domain.IndexRecord{{ID: "A-1", Vector: []float32{0, 1}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestMatchValue(t *testing.T) {
	assert.Equal(t, "Open", matchValue("Open"))
	assert.Equal(t, int64(3), matchValue(float64(3)))
	assert.Equal(t, "2.5", matchValue(2.5))
	assert.Equal(t, true, matchValue(true))
}
