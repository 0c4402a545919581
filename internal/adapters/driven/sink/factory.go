// Package sink selects the index sink backend from configuration.
package sink

import (
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/sink/memory"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/sink/pinecone"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/sink/qdrant"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// Backend names accepted by New.
const (
	TypeSQLite   = "sqlite"
	TypeMemory   = "memory"
	TypeQdrant   = "qdrant"
	TypePinecone = "pinecone"
)

// Settings selects and configures a sink backend.
type Settings struct {
	Type    string
	URL     string
	APIKey  string
	Timeout time.Duration
	Hosts   map[string]string
}

// New creates the sink factory named by s.Type. The sqlite backend shares
// store with the ledger and may not be nil for that type.
func New(s Settings, store *sqlite.Store) (driven.SinkFactory, error) {
	switch s.Type {
	case TypeSQLite, "":
		if store == nil {
			return nil, fmt.Errorf("%w: sqlite sink needs a store", domain.ErrMisconfigured)
		}
		return store.SinkFactory(), nil
	case TypeMemory:
		return memory.NewFactory(), nil
	case TypeQdrant:
		return qdrant.NewFactory(qdrant.Config{
			URL:     s.URL,
			APIKey:  s.APIKey,
			Timeout: s.Timeout,
		}), nil
	case TypePinecone:
		f, err := pinecone.NewFactory(pinecone.Config{
			URL:     s.URL,
			Hosts:   s.Hosts,
			APIKey:  s.APIKey,
			Timeout: s.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: sink type %q", domain.ErrUnsupportedType, s.Type)
	}
}
