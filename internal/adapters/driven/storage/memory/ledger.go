package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// Ensure LedgerStore implements the interface.
var _ driven.LedgerStore = (*LedgerStore)(nil)

// LedgerStore is an in-memory implementation of driven.LedgerStore.
type LedgerStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]domain.LedgerEntry // source -> document id -> entry
}

// NewLedgerStore creates a new in-memory ledger.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		entries: make(map[string]map[string]domain.LedgerEntry),
	}
}

// List returns all entries for a source ordered by document id.
func (s *LedgerStore) List(_ context.Context, source string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.entries[source]
	result := make([]domain.LedgerEntry, 0, len(docs))
	for _, e := range docs {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DocumentID < result[j].DocumentID })
	return result, nil
}

// SaveBatch stores or replaces entries.
func (s *LedgerStore) SaveBatch(_ context.Context, entries []domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		docs, ok := s.entries[e.Source]
		if !ok {
			docs = make(map[string]domain.LedgerEntry)
			s.entries[e.Source] = docs
		}
		docs[e.DocumentID] = e
	}
	return nil
}

// Delete removes entries for the given document ids of a source.
func (s *LedgerStore) Delete(_ context.Context, source string, documentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.entries[source]
	for _, id := range documentIDs {
		delete(docs, id)
	}
	return nil
}
