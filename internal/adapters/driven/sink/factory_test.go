package sink

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

func TestNew(t *testing.T) {
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tests := []struct {
		name     string
		settings Settings
		want     string
	}{
		{"default is sqlite", Settings{}, TypeSQLite},
		{"memory", Settings{Type: TypeMemory}, TypeMemory},
		{"qdrant", Settings{Type: TypeQdrant, URL: "http://localhost:6333"}, TypeQdrant},
		{"pinecone", Settings{Type: TypePinecone, URL: "idx.pinecone.io", APIKey: "k"}, TypePinecone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.settings, store)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Type())
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Settings{Type: TypeSQLite}, nil)
	assert.ErrorIs(t, err, domain.ErrMisconfigured)

	_, err = New(Settings{Type: TypePinecone, URL: "idx.pinecone.io"}, nil)
	assert.ErrorIs(t, err, domain.ErrMisconfigured)

	_, err = New(Settings{Type: "weaviate"}, nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}
