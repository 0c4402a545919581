// Package memory provides an in-process index sink.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/sink/similarity"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// Ensure interfaces are implemented.
var (
	_ driven.IndexSink   = (*Sink)(nil)
	_ driven.SinkFactory = (*Factory)(nil)
)

// Sink is a map-backed index. Records are copied in and out.
type Sink struct {
	index string

	mu      sync.RWMutex
	records map[string]domain.IndexRecord
	dims    int
}

// New creates an empty sink for an index.
func New(index string) *Sink {
	return &Sink{
		index:   index,
		records: make(map[string]domain.IndexRecord),
	}
}

// Index returns the index name.
func (s *Sink) Index() string {
	return s.index
}

// FetchMetadata returns metadata for the ids that exist.
func (s *Sink) FetchMetadata(_ context.Context, ids []string) (map[string]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]any, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			out[id] = maps.Clone(rec.Metadata)
		}
	}
	return out, nil
}

// Upsert inserts or replaces records. The whole batch is rejected when any
// vector disagrees with the index dimension.
func (s *Sink) Upsert(_ context.Context, records []domain.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dims := s.dims
	if len(s.records) == 0 {
		dims = 0
	}
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("%w: record without id", domain.ErrInvalidInput)
		}
		if dims == 0 {
			dims = len(rec.Vector)
		}
		if len(rec.Vector) != dims {
			return fmt.Errorf("%w: record %s has %d, index has %d", domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), dims)
		}
	}

	for _, rec := range records {
		s.records[rec.ID] = domain.IndexRecord{
			ID:       rec.ID,
			Vector:   slices.Clone(rec.Vector),
			Metadata: maps.Clone(rec.Metadata),
		}
	}
	s.dims = dims
	return nil
}

// Delete removes records by id.
func (s *Sink) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

// Search scores every record by cosine similarity.
func (s *Sink) Search(_ context.Context, vector []float32, k int, filter map[string]any) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) > 0 && len(vector) != s.dims {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(vector), s.dims)
	}

	matches := make([]domain.Match, 0, len(s.records))
	for id, rec := range s.records {
		if !similarity.Matches(rec.Metadata, filter) {
			continue
		}
		matches = append(matches, domain.Match{
			ID:       id,
			Score:    similarity.Cosine(vector, rec.Vector),
			Metadata: maps.Clone(rec.Metadata),
		})
	}
	return similarity.TopK(matches, k), nil
}

// Len returns the number of stored records.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// IDs returns the stored record ids in sorted order.
func (s *Sink) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.records))
}

// Close is a no-op; records outlive the handle.
func (s *Sink) Close() error {
	return nil
}

// Factory hands out one shared Sink per index name.
type Factory struct {
	mu    sync.Mutex
	sinks map[string]*Sink
}

// NewFactory creates a new memory sink factory.
func NewFactory() *Factory {
	return &Factory{sinks: make(map[string]*Sink)}
}

// Open returns the sink for index, creating it on first use.
func (f *Factory) Open(_ context.Context, index string) (driven.IndexSink, error) {
	return f.Sink(index), nil
}

// Sink returns the concrete sink for index.
func (f *Factory) Sink(index string) *Sink {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sinks[index]
	if !ok {
		s = New(index)
		f.sinks[index] = s
	}
	return s
}

// Type returns "memory".
func (f *Factory) Type() string {
	return "memory"
}
