package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

func TestSourceService_GetAndList(t *testing.T) {
	store := memory.NewSourceStore(testSource("b"), testSource("a"))
	svc := NewSourceService(store, newSyncMockConnectorFactory())

	src, err := svc.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", src.Name)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
}

func TestSourceService_ConnectorTypes(t *testing.T) {
	svc := NewSourceService(memory.NewSourceStore(), newSyncMockConnectorFactory())

	types := svc.ConnectorTypes()
	require.Len(t, types, 1)
	assert.Equal(t, "mock", types[0].ID)
}

func TestSourceService_ValidateAll(t *testing.T) {
	noIndex := testSource("no-index")
	noIndex.Index = ""
	unknown := testSource("unknown")
	unknown.Type = "gopher"

	svc := NewSourceService(memory.NewSourceStore(testSource("ok"), noIndex, unknown), newSyncMockConnectorFactory())

	err := svc.ValidateAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMisconfigured)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.Contains(t, err.Error(), "no-index")
	assert.NotContains(t, err.Error(), "source ok")

	valid := NewSourceService(memory.NewSourceStore(testSource("ok")), newSyncMockConnectorFactory())
	assert.NoError(t, valid.ValidateAll(context.Background()))
}
