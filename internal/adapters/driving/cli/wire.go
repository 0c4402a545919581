package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/embedding"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/sink"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/sink/memory"
	memstore "github.com/custodia-labs/sercha-sync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-sync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-sync/internal/config"
	"github.com/custodia-labs/sercha-sync/internal/connectors"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sync/internal/core/services"
	"github.com/custodia-labs/sercha-sync/internal/logger"
	"github.com/custodia-labs/sercha-sync/internal/normalisers"
	"github.com/custodia-labs/sercha-sync/internal/postprocessors"
)

type wireOptions struct {
	// DryRun indexes into memory and keeps the ledger in memory, so nothing
	// outside the process changes.
	DryRun bool
}

type wiredServices struct {
	sync    driving.SyncOrchestrator
	search  driving.SearchService
	sources driving.SourceService
	close   func() error
}

// wire builds every adapter from cfg and checks the sources before any fetch.
func wire(ctx context.Context, cfg *config.Config, opts wireOptions) (*wiredServices, error) {
	sourceStore := memstore.NewSourceStore(cfg.DomainSources()...)

	factory := connectors.NewFactory()
	connectors.RegisterDefaults(factory)

	sourceSvc := services.NewSourceService(sourceStore, factory)
	if err := sourceSvc.ValidateAll(ctx); err != nil {
		return nil, err
	}

	registry := normalisers.NewRegistry()
	normalisers.RegisterDefaults(registry)

	chunkers := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(chunkers)
	chunker, err := chunkers.Build(cfg.ChunkerType(), cfg.Chunker)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	embedder, err := embedding.New(embedding.Settings{
		Provider:          cfg.Embedding.Provider,
		Model:             cfg.Embedding.Model,
		BaseURL:           cfg.Embedding.BaseURL,
		APIKey:            cfg.Embedding.APIKey,
		Dimensions:        cfg.Embedding.Dimensions,
		Timeout:           cfg.Embedding.Timeout.Std(),
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}

	var (
		store     *sqlite.Store
		sinks     driven.SinkFactory
		ledger    driven.LedgerStore
		syncState driven.SyncStateStore
		runLock   driven.RunLock
	)
	if opts.DryRun {
		logger.Info("Dry run: records are indexed in memory only")
		sinks = memory.NewFactory()
		ledger = memstore.NewLedgerStore()
		syncState = memstore.NewSyncStateStore()
		runLock = memstore.NewRunLock()
	} else {
		store, err = sqlite.NewStore(cfg.DatabasePath())
		if err != nil {
			embedder.Close()
			return nil, fmt.Errorf("opening state database: %w", err)
		}
		sinks, err = sink.New(sink.Settings{
			Type:    cfg.Sink.Type,
			URL:     cfg.Sink.URL,
			APIKey:  cfg.Sink.APIKey,
			Timeout: cfg.Sink.Timeout.Std(),
			Hosts:   cfg.Sink.Hosts,
		}, store)
		if err != nil {
			embedder.Close()
			store.Close()
			return nil, fmt.Errorf("sink: %w", err)
		}
		ledger = store.LedgerStore()
		syncState = store.SyncStateStore()
		runLock = store.RunLock()

		if err := embedding.Check(ctx, embedder); err != nil {
			logger.Warn("%v", err)
		}
	}
	logger.Debug("Using %s embeddings (%s, %d dimensions) and %s sink",
		cfg.Embedding.Provider, embedder.ModelName(), embedder.Dimensions(), sinks.Type())

	orchestrator := services.NewSyncOrchestrator(
		sourceStore, factory, registry, chunker, embedder, sinks,
		ledger, syncState, runLock, cfg.SyncOptions(),
	)

	return &wiredServices{
		sync:    orchestrator,
		search:  services.NewSearchService(sourceStore, embedder, sinks),
		sources: sourceSvc,
		close: func() error {
			var errs []error
			errs = append(errs, embedder.Close())
			if store != nil {
				errs = append(errs, store.Close())
			}
			return errors.Join(errs...)
		},
	}, nil
}
