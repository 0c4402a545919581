package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

func record(id string, vec []float32, md map[string]any) domain.IndexRecord {
	return domain.IndexRecord{ID: id, Vector: vec, Metadata: md}
}

func TestSink_UpsertOverwritesEntirely(t *testing.T) {
	s := New("eng")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{
		record("A-0", []float32{1, 0}, map[string]any{"content_hash": "h1", "status": "Open"}),
	}))
	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{
		record("A-0", []float32{0, 1}, map[string]any{"content_hash": "h2"}),
	}))

	md, err := s.FetchMetadata(ctx, []string{"A-0", "B-0"})
	require.NoError(t, err)
	require.Len(t, md, 1)
	assert.Equal(t, map[string]any{"content_hash": "h2"}, md["A-0"])
	assert.Equal(t, 1, s.Len())
}

func TestSink_DimensionMismatch(t *testing.T) {
	s := New("eng")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{record("A-0", []float32{1, 0}, nil)}))

	err := s.Upsert(ctx, []domain.IndexRecord{
		record("B-0", []float32{1, 0}, nil),
		record("C-0", []float32{1, 0, 0}, nil),
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, []string{"A-0"}, s.IDs(), "failed batch must not be partially applied")

	_, err = s.Search(ctx, []float32{1, 0, 0}, 5, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestSink_DimensionResetsWhenEmptied(t *testing.T) {
	s := New("eng")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{record("A-0", []float32{1, 0}, nil)}))
	require.NoError(t, s.Delete(ctx, []string{"A-0"}))
	assert.NoError(t, s.Upsert(ctx, []domain.IndexRecord{record("A-0", []float32{1, 0, 0}, nil)}))
}

func TestSink_Search(t *testing.T) {
	s := New("eng")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{
		record("A-0", []float32{1, 0}, map[string]any{"status": "Open", "labels": []string{"auth"}}),
		record("B-0", []float32{0.7, 0.7}, map[string]any{"status": "Done", "labels": []string{"ui"}}),
		record("C-0", []float32{0, 1}, map[string]any{"status": "Open", "labels": []string{"auth", "ui"}}),
	}))

	matches, err := s.Search(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "A-0", matches[0].ID)
	assert.Equal(t, "B-0", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)

	matches, err = s.Search(ctx, []float32{1, 0}, 10, map[string]any{"labels": "ui", "status": "Open"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "C-0", matches[0].ID)
}

func TestSink_ReturnsCopies(t *testing.T) {
	s := New("eng")
	ctx := context.Background()

	md := map[string]any{"status": "Open"}
	require.NoError(t, s.Upsert(ctx, []domain.IndexRecord{record("A-0", []float32{1}, md)}))
	md["status"] = "mutated"

	got, err := s.FetchMetadata(ctx, []string{"A-0"})
	require.NoError(t, err)
	assert.Equal(t, "Open", got["A-0"]["status"])
}

func TestFactory_SharesSinkPerIndex(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()

	a, err := f.Open(ctx, "eng")
	require.NoError(t, err)
	require.NoError(t, a.Upsert(ctx, []domain.IndexRecord{record("A-0", []float32{1}, nil)}))
	require.NoError(t, a.Close())

	b, err := f.Open(ctx, "eng")
	require.NoError(t, err)
	md, err := b.FetchMetadata(ctx, []string{"A-0"})
	require.NoError(t, err)
	assert.Len(t, md, 1)

	other, err := f.Open(ctx, "wiki")
	require.NoError(t, err)
	assert.Equal(t, "wiki", other.Index())
	assert.Equal(t, "memory", f.Type())
}
