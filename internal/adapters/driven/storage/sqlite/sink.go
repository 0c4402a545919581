package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/sink/similarity"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// maxBatchParams keeps IN lists well under SQLite's variable limit.
const maxBatchParams = 500

// sinkFactory implements driven.SinkFactory over the index_records table.
type sinkFactory struct {
	store *Store
}

var _ driven.SinkFactory = (*sinkFactory)(nil)

// Open returns the sink for index. Records of different indexes never mix.
func (f *sinkFactory) Open(ctx context.Context, index string) (driven.IndexSink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index == "" {
		return nil, fmt.Errorf("%w: empty index name", domain.ErrInvalidInput)
	}
	return &sink{store: f.store, index: index}, nil
}

// Type returns "sqlite".
func (f *sinkFactory) Type() string {
	return "sqlite"
}

// sink implements driven.IndexSink with brute-force cosine search.
type sink struct {
	store *Store
	index string
}

var _ driven.IndexSink = (*sink)(nil)

func (s *sink) Index() string {
	return s.index
}

// FetchMetadata returns metadata for the ids that exist.
func (s *sink) FetchMetadata(ctx context.Context, ids []string) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any, len(ids))
	for _, batch := range batches(ids, maxBatchParams) {
		args := make([]any, 0, len(batch)+1)
		args = append(args, s.index)
		for _, id := range batch {
			args = append(args, id)
		}
		rows, err := s.store.db.QueryContext(ctx,
			"SELECT id, metadata FROM index_records WHERE index_name = ? AND id IN ("+placeholders(len(batch))+")",
			args...)
		if err != nil {
			return nil, fmt.Errorf("fetching metadata: %w", err)
		}
		for rows.Next() {
			var id, raw string
			if err := rows.Scan(&id, &raw); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning metadata: %w", err)
			}
			md, err := decodeMetadata(raw)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("decoding metadata for %s: %w", id, err)
			}
			out[id] = md
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("fetching metadata: %w", err)
		}
	}
	return out, nil
}

// Upsert replaces records in one transaction. The whole batch is rejected
// when any vector disagrees with the index dimension.
func (s *sink) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	dims, err := indexDims(ctx, tx, s.index)
	if err != nil {
		return err
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_records (index_name, id, dims, vector, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(index_name, id) DO UPDATE SET
			dims = excluded.dims,
			vector = excluded.vector,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := unixNano(s.store.now())
	for _, rec := range records {
		md, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, s.index, rec.ID, len(rec.Vector), float32SliceToBytes(rec.Vector), string(md), now); err != nil {
			return fmt.Errorf("upserting %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// Delete removes records by id. Unknown ids are ignored.
func (s *sink) Delete(ctx context.Context, ids []string) error {
	for _, batch := range batches(ids, maxBatchParams) {
		args := make([]any, 0, len(batch)+1)
		args = append(args, s.index)
		for _, id := range batch {
			args = append(args, id)
		}
		query := "DELETE FROM index_records WHERE index_name = ? AND id IN (" + placeholders(len(batch)) + ")"
		if _, err := s.store.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deleting records: %w", err)
		}
	}
	return nil
}

// Search scans every record of the index.
func (s *sink) Search(ctx context.Context, vector []float32, k int, filter map[string]any) ([]domain.Match, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id, dims, vector, metadata FROM index_records WHERE index_name = ?", s.index)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var (
			id, raw string
			dims    int
			blob    []byte
		)
		if err := rows.Scan(&id, &dims, &blob, &raw); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if dims != len(vector) {
			return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(vector), dims)
		}
		md, err := decodeMetadata(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", id, err)
		}
		if !similarity.Matches(md, filter) {
			continue
		}
		matches = append(matches, domain.Match{
			ID:       id,
			Score:    similarity.Cosine(vector, bytesToFloat32Slice(blob)),
			Metadata: md,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	return similarity.TopK(matches, k), nil
}

// Close is a no-op; the Store owns the connection.
func (s *sink) Close() error {
	return nil
}

func indexDims(ctx context.Context, tx *sql.Tx, index string) (int, error) {
	var dims int
	err := tx.QueryRowContext(ctx, "SELECT dims FROM index_records WHERE index_name = ? LIMIT 1", index).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading index dimension: %w", err)
	}
	return dims, nil
}

func decodeMetadata(raw string) (map[string]any, error) {
	md := make(map[string]any)
	if raw == "" || raw == "null" {
		return md, nil
	}
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return nil, err
	}
	return md, nil
}

func batches(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
