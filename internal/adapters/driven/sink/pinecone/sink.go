// Package pinecone provides an index sink backed by the Pinecone data plane
// REST API. One Pinecone index serves every configured index name as a
// namespace.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// Default configuration values.
const (
	DefaultTimeout = 30 * time.Second
	APIVersion     = "2024-07"

	// MaxUpsertBatch is the vector count sent per upsert request.
	MaxUpsertBatch = 100

	// MaxFetchBatch keeps fetch query strings short.
	MaxFetchBatch = 100
)

// Ensure interfaces are implemented.
var (
	_ driven.IndexSink   = (*Sink)(nil)
	_ driven.SinkFactory = (*Factory)(nil)
)

// Config holds Pinecone connection settings.
type Config struct {
	// URL is the index host, e.g. https://docs-abc123.svc.us-east1-gcp.pinecone.io.
	URL string

	// Hosts overrides URL for specific index names.
	Hosts map[string]string

	// APIKey is sent in the Api-Key header (required).
	APIKey string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Factory opens one Sink per namespace.
type Factory struct {
	cfg    Config
	client *http.Client
}

// NewFactory creates a Pinecone sink factory.
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: pinecone API key is required", domain.ErrMisconfigured)
	}
	if cfg.URL == "" && len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("%w: pinecone index host is required", domain.ErrMisconfigured)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Factory{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Open returns the sink for a namespace on its configured host.
func (f *Factory) Open(ctx context.Context, index string) (driven.IndexSink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index == "" {
		return nil, fmt.Errorf("%w: empty namespace", domain.ErrInvalidInput)
	}
	host := f.cfg.URL
	if h, ok := f.cfg.Hosts[index]; ok && h != "" {
		host = h
	}
	if host == "" {
		return nil, fmt.Errorf("%w: no pinecone host for index %s", domain.ErrMisconfigured, index)
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return &Sink{
		host:      strings.TrimRight(host, "/"),
		namespace: index,
		apiKey:    f.cfg.APIKey,
		client:    f.client,
	}, nil
}

// Type returns "pinecone".
func (f *Factory) Type() string {
	return "pinecone"
}

// Sink reads and writes vectors of one namespace.
type Sink struct {
	host      string
	namespace string
	apiKey    string
	client    *http.Client
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Index returns the namespace.
func (s *Sink) Index() string {
	return s.namespace
}

// FetchMetadata retrieves vector metadata by id.
func (s *Sink) FetchMetadata(ctx context.Context, ids []string) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any, len(ids))
	for start := 0; start < len(ids); start += MaxFetchBatch {
		end := min(start+MaxFetchBatch, len(ids))
		q := url.Values{"ids": ids[start:end], "namespace": {s.namespace}}

		var resp struct {
			Vectors map[string]vector `json:"vectors"`
		}
		if err := s.do(ctx, http.MethodGet, "/vectors/fetch", q, nil, &resp); err != nil {
			return nil, fmt.Errorf("fetching vectors: %w", err)
		}
		for id, v := range resp.Vectors {
			md := maps.Clone(v.Metadata)
			if md == nil {
				md = make(map[string]any)
			}
			out[id] = md
		}
	}
	return out, nil
}

// Upsert writes vectors in batches. All records must share one dimension;
// Pinecone rejects vectors that disagree with the index.
func (s *Sink) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	dims := len(records[0].Vector)
	vectors := make([]vector, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("%w: record without id", domain.ErrInvalidInput)
		}
		if len(rec.Vector) != dims {
			return fmt.Errorf("%w: record %s has %d, batch has %d", domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), dims)
		}
		vectors = append(vectors, vector{ID: rec.ID, Values: rec.Vector, Metadata: rec.Metadata})
	}

	for start := 0; start < len(vectors); start += MaxUpsertBatch {
		end := min(start+MaxUpsertBatch, len(vectors))
		body := map[string]any{"vectors": vectors[start:end], "namespace": s.namespace}
		if err := s.do(ctx, http.MethodPost, "/vectors/upsert", nil, body, nil); err != nil {
			return fmt.Errorf("upserting vectors: %w", err)
		}
	}
	return nil
}

// Delete removes vectors by id.
func (s *Sink) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"ids": ids, "namespace": s.namespace}
	if err := s.do(ctx, http.MethodPost, "/vectors/delete", nil, body, nil); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// Search queries the namespace. Filters use $in so list metadata matches
// by membership.
func (s *Sink) Search(ctx context.Context, vec []float32, k int, filter map[string]any) ([]domain.Match, error) {
	body := map[string]any{
		"namespace":       s.namespace,
		"vector":          vec,
		"topK":            k,
		"includeMetadata": true,
		"includeValues":   false,
	}
	if len(filter) > 0 {
		f := make(map[string]any, len(filter))
		for key, value := range filter {
			f[key] = map[string]any{"$in": []any{value}}
		}
		body["filter"] = f
	}

	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.do(ctx, http.MethodPost, "/query", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	matches := make([]domain.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		md := m.Metadata
		if md == nil {
			md = make(map[string]any)
		}
		matches = append(matches, domain.Match{ID: m.ID, Score: m.Score, Metadata: md})
	}
	return matches, nil
}

// Close is a no-op.
func (s *Sink) Close() error {
	return nil
}

// APIError is a non-success response from Pinecone.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinecone error (status %d): %s", e.StatusCode, e.Message)
}

func (s *Sink) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := s.host + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Api-Key", s.apiKey)
	req.Header.Set("X-Pinecone-API-Version", APIVersion)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiResp struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiResp) == nil && apiResp.Message != "" {
			msg = apiResp.Message
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: msg}
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "dimension") {
			return fmt.Errorf("%w: %w", domain.ErrDimensionMismatch, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
