// Package qdrant provides an index sink backed by the Qdrant REST API.
//
// Each index is a collection. Qdrant only accepts unsigned integers or UUIDs
// as point ids, so record ids are mapped to deterministic UUIDv5 values and the
// original id is kept in the payload under record_id.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// Default configuration values.
const (
	DefaultURL      = "http://localhost:6333"
	DefaultTimeout  = 30 * time.Second
	DefaultDistance = "Cosine"

	// PayloadRecordID holds the original record id in each point payload.
	PayloadRecordID = "record_id"
)

// pointNamespace seeds the UUIDv5 point ids.
var pointNamespace = uuid.MustParse("6f1c8a52-3b0e-4d7a-9a51-2f4d6b8e9c10")

// Ensure interfaces are implemented.
var (
	_ driven.IndexSink   = (*Sink)(nil)
	_ driven.SinkFactory = (*Factory)(nil)
)

// Config holds Qdrant connection settings.
type Config struct {
	// URL is the Qdrant REST endpoint (default: http://localhost:6333).
	URL string

	// APIKey is sent in the api-key header when set.
	APIKey string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Factory opens one Sink per collection over a shared HTTP client.
type Factory struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewFactory creates a Qdrant sink factory.
func NewFactory(cfg Config) *Factory {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Factory{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Open returns the sink for a collection. The collection is created lazily.
func (f *Factory) Open(ctx context.Context, index string) (driven.IndexSink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index == "" {
		return nil, fmt.Errorf("%w: empty collection name", domain.ErrInvalidInput)
	}
	return &Sink{factory: f, collection: index}, nil
}

// Type returns "qdrant".
func (f *Factory) Type() string {
	return "qdrant"
}

// Sink reads and writes points of one collection.
type Sink struct {
	factory    *Factory
	collection string

	mu   sync.Mutex
	dims int // known collection vector size, 0 until checked
}

// PointID returns the Qdrant point id for a record id.
func PointID(recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(recordID)).String()
}

// Index returns the collection name.
func (s *Sink) Index() string {
	return s.collection
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Score   float64        `json:"score,omitempty"`
}

// FetchMetadata retrieves payloads by record id. A missing collection has no
// records.
func (s *Sink) FetchMetadata(ctx context.Context, ids []string) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pointIDs := make([]string, len(ids))
	for i, id := range ids {
		pointIDs[i] = PointID(id)
	}
	body := map[string]any{
		"ids":          pointIDs,
		"with_payload": true,
		"with_vector":  false,
	}

	var resp struct {
		Result []point `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.path("points"), nil, body, &resp)
	if isNotFound(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching points: %w", err)
	}

	for _, p := range resp.Result {
		id, md := fromPayload(p.Payload)
		if id == "" {
			continue
		}
		out[id] = md
	}
	return out, nil
}

// Upsert writes points, creating the collection sized to the first vector
// when it does not exist.
func (s *Sink) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	dims := len(records[0].Vector)
	points := make([]point, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("%w: record without id", domain.ErrInvalidInput)
		}
		if len(rec.Vector) != dims {
			return fmt.Errorf("%w: record %s has %d, batch has %d", domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), dims)
		}
		payload := maps.Clone(rec.Metadata)
		if payload == nil {
			payload = make(map[string]any, 1)
		}
		payload[PayloadRecordID] = rec.ID
		points = append(points, point{ID: PointID(rec.ID), Vector: rec.Vector, Payload: payload})
	}

	if err := s.ensureCollection(ctx, dims); err != nil {
		return err
	}

	q := url.Values{"wait": {"true"}}
	if err := s.do(ctx, http.MethodPut, s.path("points"), q, map[string]any{"points": points}, nil); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}
	return nil
}

// Delete removes points by record id.
func (s *Sink) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]string, len(ids))
	for i, id := range ids {
		pointIDs[i] = PointID(id)
	}
	q := url.Values{"wait": {"true"}}
	err := s.do(ctx, http.MethodPost, s.path("points", "delete"), q, map[string]any{"points": pointIDs}, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("deleting points: %w", err)
	}
	return nil
}

// Search queries the collection. Each filter entry becomes a match condition;
// Qdrant matches array payloads by membership.
func (s *Sink) Search(ctx context.Context, vector []float32, k int, filter map[string]any) ([]domain.Match, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if len(filter) > 0 {
		must := make([]map[string]any, 0, len(filter))
		for key, value := range filter {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": matchValue(value)},
			})
		}
		body["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []point `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.path("points", "search"), nil, body, &resp)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	matches := make([]domain.Match, 0, len(resp.Result))
	for _, p := range resp.Result {
		id, md := fromPayload(p.Payload)
		if id == "" {
			id = p.ID
		}
		matches = append(matches, domain.Match{ID: id, Score: p.Score, Metadata: md})
	}
	return matches, nil
}

// Close is a no-op; the factory owns the HTTP client.
func (s *Sink) Close() error {
	return nil
}

// ensureCollection checks the collection vector size once per sink, creating
// the collection when it is missing.
func (s *Sink) ensureCollection(ctx context.Context, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dims == 0 {
		var info struct {
			Result struct {
				Config struct {
					Params struct {
						Vectors struct {
							Size int `json:"size"`
						} `json:"vectors"`
					} `json:"params"`
				} `json:"config"`
			} `json:"result"`
		}
		err := s.do(ctx, http.MethodGet, s.path(), nil, nil, &info)
		switch {
		case isNotFound(err):
			logger.Info("Creating Qdrant collection %s (%d dimensions)", s.collection, dims)
			create := map[string]any{
				"vectors": map[string]any{"size": dims, "distance": DefaultDistance},
			}
			if err := s.do(ctx, http.MethodPut, s.path(), nil, create, nil); err != nil {
				return fmt.Errorf("creating collection %s: %w", s.collection, err)
			}
			s.dims = dims
		case err != nil:
			return fmt.Errorf("reading collection %s: %w", s.collection, err)
		default:
			s.dims = info.Result.Config.Params.Vectors.Size
		}
	}

	if s.dims != 0 && s.dims != dims {
		return fmt.Errorf("%w: records have %d, collection %s has %d", domain.ErrDimensionMismatch, dims, s.collection, s.dims)
	}
	return nil
}

func (s *Sink) path(elem ...string) string {
	parts := append([]string{"collections", url.PathEscape(s.collection)}, elem...)
	return "/" + strings.Join(parts, "/")
}

// apiError is a non-success response from Qdrant.
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("qdrant error (status %d): %s", e.StatusCode, e.Message)
}

func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (s *Sink) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := s.factory.baseURL + path
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
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.factory.apiKey != "" {
		req.Header.Set("api-key", s.factory.apiKey)
	}

	resp, err := s.factory.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var status struct {
			Status struct {
				Error string `json:"error"`
			} `json:"status"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &status) == nil && status.Status.Error != "" {
			msg = status.Status.Error
		}
		apiErr := &apiError{StatusCode: resp.StatusCode, Message: msg}
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

// fromPayload splits the record id out of a payload.
func fromPayload(payload map[string]any) (string, map[string]any) {
	md := maps.Clone(payload)
	if md == nil {
		md = make(map[string]any)
	}
	id, _ := md[PayloadRecordID].(string)
	delete(md, PayloadRecordID)
	return id, md
}

// matchValue narrows a filter value to the keyword, integer or bool types
// Qdrant can match on.
func matchValue(v any) any {
	switch x := v.(type) {
	case string, bool, int, int64:
		return x
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
		return fmt.Sprint(x)
	default:
		return fmt.Sprint(x)
	}
}
