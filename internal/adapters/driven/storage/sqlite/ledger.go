package sqlite

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// ledgerStore implements driven.LedgerStore.
type ledgerStore struct {
	store *Store
}

var _ driven.LedgerStore = (*ledgerStore)(nil)

// List returns all entries for a source ordered by document id.
func (s *ledgerStore) List(ctx context.Context, source string) ([]domain.LedgerEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source, document_id, content_hash, chunk_count, synced_at
		FROM ledger_entries WHERE source = ?
		ORDER BY document_id
	`, source)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var syncedAt int64
		if err := rows.Scan(&e.Source, &e.DocumentID, &e.ContentHash, &e.ChunkCount, &syncedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		e.SyncedAt = fromUnixNano(syncedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveBatch stores or replaces entries in one transaction.
func (s *ledgerStore) SaveBatch(ctx context.Context, entries []domain.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger_entries (source, document_id, content_hash, chunk_count, synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source, document_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			chunk_count = excluded.chunk_count,
			synced_at = excluded.synced_at
	`)
	if err != nil {
		return fmt.Errorf("preparing ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.Source == "" || e.DocumentID == "" {
			return fmt.Errorf("%w: ledger entry needs source and document id", domain.ErrInvalidInput)
		}
		if _, err := stmt.ExecContext(ctx, e.Source, e.DocumentID, e.ContentHash, e.ChunkCount, unixNano(e.SyncedAt)); err != nil {
			return fmt.Errorf("saving ledger entry %s: %w", e.DocumentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ledger: %w", err)
	}
	return nil
}

// Delete removes entries for the given document ids of a source.
func (s *ledgerStore) Delete(ctx context.Context, source string, documentIDs []string) error {
	for _, batch := range batches(documentIDs, maxBatchParams) {
		args := make([]any, 0, len(batch)+1)
		args = append(args, source)
		for _, id := range batch {
			args = append(args, id)
		}
		query := "DELETE FROM ledger_entries WHERE source = ? AND document_id IN (" + placeholders(len(batch)) + ")"
		if _, err := s.store.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deleting ledger entries: %w", err)
		}
	}
	return nil
}
