package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// SyncOptions tunes a sync run.
type SyncOptions struct {
	// Workers bounds concurrent per-document processing.
	Workers int
	// DocumentTimeout bounds chunking and embedding of one document.
	DocumentTimeout time.Duration
	// UpsertBatchSize is the target number of records per upsert call.
	// Documents are never split across batches.
	UpsertBatchSize int
	// LookupBatchSize is the number of ids per metadata lookup.
	LookupBatchSize int
	// PruneDeleted removes documents that vanished from the source.
	PruneDeleted bool
	// LockTTL is the run lease duration.
	LockTTL time.Duration
}

// DefaultSyncOptions returns the default tuning.
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		Workers:         4,
		DocumentTimeout: 2 * time.Minute,
		UpsertBatchSize: 100,
		LookupBatchSize: 100,
		PruneDeleted:    true,
		LockTTL:         30 * time.Minute,
	}
}

func (o *SyncOptions) applyDefaults() {
	d := DefaultSyncOptions()
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.DocumentTimeout <= 0 {
		o.DocumentTimeout = d.DocumentTimeout
	}
	if o.UpsertBatchSize <= 0 {
		o.UpsertBatchSize = d.UpsertBatchSize
	}
	if o.LookupBatchSize <= 0 {
		o.LookupBatchSize = d.LookupBatchSize
	}
	if o.LockTTL <= 0 {
		o.LockTTL = d.LockTTL
	}
}

// SyncOrchestrator drives fetch, diff, embed and upsert for a source and
// produces a SyncReport. Per-document failures never stop a run.
type SyncOrchestrator struct {
	sourceStore driven.SourceStore
	factory     driven.ConnectorFactory
	registry    driven.NormaliserRegistry
	chunker     driven.Chunker
	embedder    driven.EmbeddingService
	sinks       driven.SinkFactory
	ledger      driven.LedgerStore
	syncStore   driven.SyncStateStore
	runLock     driven.RunLock
	opts        SyncOptions

	// Status tracking
	mu          sync.RWMutex
	activeSyncs map[string]*driving.SyncStatus
	lastSyncs   map[string]driving.SyncStatus
}

// NewSyncOrchestrator creates a new sync orchestrator.
// syncStore and runLock are optional; without a run lock only the
// in-process guard prevents concurrent runs of one source.
func NewSyncOrchestrator(
	sourceStore driven.SourceStore,
	factory driven.ConnectorFactory,
	registry driven.NormaliserRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	sinks driven.SinkFactory,
	ledger driven.LedgerStore,
	syncStore driven.SyncStateStore,
	runLock driven.RunLock,
	opts SyncOptions,
) *SyncOrchestrator {
	opts.applyDefaults()
	return &SyncOrchestrator{
		sourceStore: sourceStore,
		factory:     factory,
		registry:    registry,
		chunker:     chunker,
		embedder:    embedder,
		sinks:       sinks,
		ledger:      ledger,
		syncStore:   syncStore,
		runLock:     runLock,
		opts:        opts,
		activeSyncs: make(map[string]*driving.SyncStatus),
		lastSyncs:   make(map[string]driving.SyncStatus),
	}
}

// run carries the state of one pass over a source.
type run struct {
	source *domain.Source
	sink   driven.IndexSink
	status *driving.SyncStatus
	report *domain.SyncReport
}

// item is one document moving through the pipeline.
type item struct {
	raw       domain.RawDocument
	doc       *domain.Document
	hash      string
	class     domain.Classification
	prevCount int
	records   []domain.IndexRecord
	failed    bool
}

// Sync runs one full pass for a source.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (o *SyncOrchestrator) Sync(ctx context.Context, sourceName string) (*domain.SyncReport, error) {
	// 1. Resolve and validate the source before anything touches the network
	source, err := o.sourceStore.Get(ctx, sourceName)
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	if o.factory == nil {
		return nil, fmt.Errorf("%w: connector factory not configured", domain.ErrMisconfigured)
	}
	ct, _ := o.factory.ConnectorType(source.Type)
	if err := source.Validate(ct); err != nil {
		return nil, err
	}

	// 2. Mutual exclusion, in process and through the lease
	status, err := o.begin(sourceName)
	if err != nil {
		return nil, err
	}
	defer o.finish(sourceName, status)

	if o.runLock != nil {
		owner := uuid.NewString()
		if err := o.runLock.Acquire(ctx, sourceName, owner, o.opts.LockTTL); err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		var cancel context.CancelCauseFunc
		ctx, cancel = context.WithCancelCause(ctx)
		stop := o.keepLease(ctx, sourceName, owner, cancel)
		defer func() {
			stop()
			cancel(nil)
			if err := o.runLock.Release(context.WithoutCancel(ctx), sourceName, owner); err != nil {
				logger.Warn("Failed to release run lock for %s: %v", sourceName, err)
			}
		}()
	}

	// 3. Open collaborators
	connector, err := o.factory.Create(ctx, *source)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}
	defer connector.Close()

	sink, err := o.sinks.Open(ctx, source.Index)
	if err != nil {
		return nil, fmt.Errorf("open sink %s: %w", source.Index, err)
	}
	defer sink.Close()

	r := &run{
		source: source,
		sink:   sink,
		status: status,
		report: &domain.SyncReport{
			Source:    source.Name,
			Index:     source.Index,
			StartedAt: time.Now(),
		},
	}

	logger.Info("Starting sync for source %s (index %s)", source.Name, source.Index)

	// FETCHING
	o.setPhase(r, domain.PhaseFetching)
	items, err := o.fetch(ctx, r, connector)
	if err != nil {
		return r.report, err
	}

	// DIFFING
	o.setPhase(r, domain.PhaseDiffing)
	o.normalise(ctx, r, items)
	ledger := o.loadLedger(ctx, r)
	o.diff(ctx, r, items, ledger)

	// EMBEDDING_AND_UPSERTING
	o.setPhase(r, domain.PhaseEmbedding)
	o.stage(ctx, r, items)
	entries := o.upsert(ctx, r, items)
	if o.opts.PruneDeleted {
		o.prune(ctx, r, items, ledger)
	}
	if len(entries) > 0 {
		if err := o.ledger.SaveBatch(ctx, entries); err != nil {
			logger.Warn("Failed to save ledger for %s: %v", source.Name, err)
		}
	}

	// REPORTING
	o.setPhase(r, domain.PhaseReporting)
	r.report.FinishedAt = time.Now()
	if o.syncStore != nil {
		state := domain.SyncState{SourceName: source.Name, LastSync: r.report.FinishedAt}
		if err := o.syncStore.Save(ctx, state); err != nil {
			logger.Warn("Failed to save sync state for %s: %v", source.Name, err)
		}
	}
	logger.Info("Sync complete: %s (%s)", r.report, r.report.Duration().Round(time.Millisecond))

	return r.report, nil
}

// keepLease renews the run lease every third of its TTL until stop is
// called. A lease taken over by another owner cancels the run with
// domain.ErrSyncInProgress.
func (o *SyncOrchestrator) keepLease(
	ctx context.Context, key, owner string, cancel context.CancelCauseFunc,
) (stop func()) {
	interval := max(o.opts.LockTTL/3, time.Millisecond)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			err := o.runLock.Acquire(ctx, key, owner, o.opts.LockTTL)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrSyncInProgress):
				logger.Error("Run lease for %s was taken over, stopping this run", key)
				cancel(fmt.Errorf("run lease lost: %w", domain.ErrSyncInProgress))
				return
			case ctx.Err() != nil:
				return
			default:
				logger.Warn("Failed to renew run lease for %s: %v", key, err)
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// SyncAll triggers synchronisation for all configured sources.
// Fatal errors for one source do not stop the others.
func (o *SyncOrchestrator) SyncAll(ctx context.Context) ([]*domain.SyncReport, error) {
	sources, err := o.sourceStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	var (
		reports []*domain.SyncReport
		errs    []error
	)
	for _, source := range sources {
		report, err := o.Sync(ctx, source.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", source.Name, err))
			continue
		}
		reports = append(reports, report)
	}

	return reports, errors.Join(errs...)
}

// Status returns sync status for a source.
func (o *SyncOrchestrator) Status(_ context.Context, sourceName string) (*driving.SyncStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if status, ok := o.activeSyncs[sourceName]; ok {
		// Return a copy to avoid race conditions
		cp := *status
		return &cp, nil
	}
	if last, ok := o.lastSyncs[sourceName]; ok {
		return &last, nil
	}

	return &driving.SyncStatus{
		SourceName: sourceName,
		Phase:      domain.PhaseIdle,
	}, nil
}

// fetch drains the connector. Connector errors truncate the run but keep
// what was already received. Duplicate ids collapse to the last one seen.
func (o *SyncOrchestrator) fetch(ctx context.Context, r *run, connector driven.Connector) ([]*item, error) {
	docsCh, errsCh := connector.Fetch(ctx)

	var items []*item
	index := make(map[string]int)

	for docsCh != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			if err != nil {
				logger.Warn("Fetch for %s stopped early: %v", r.source.Name, err)
				r.report.Truncated = true
			}

		case raw, ok := <-docsCh:
			if !ok {
				docsCh = nil
				continue
			}
			r.report.Fetched++
			if i, dup := index[raw.SourceID]; dup {
				logger.Warn("Duplicate document %s from %s, keeping the latest", raw.SourceID, r.source.Name)
				items[i].raw = raw
				continue
			}
			index[raw.SourceID] = len(items)
			items = append(items, &item{raw: raw})
		}
	}

	// Connectors close their channels quietly on cancellation, which must
	// not pass for a complete fetch.
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}

	logger.Debug("Fetched %d documents from %s", len(items), r.source.Name)
	return items, nil
}

// normalise converts raw documents. A failure affects that document only.
func (o *SyncOrchestrator) normalise(ctx context.Context, r *run, items []*item) {
	for _, it := range items {
		doc, err := o.registry.Normalise(ctx, &it.raw)
		if err != nil {
			o.fail(r, it, domain.StageNormalise, err)
			continue
		}
		if doc.ID == "" {
			doc.ID = it.raw.SourceID
		}
		it.doc = doc
	}
}

// loadLedger returns the ledger entries of the source keyed by document id.
func (o *SyncOrchestrator) loadLedger(ctx context.Context, r *run) map[string]domain.LedgerEntry {
	entries, err := o.ledger.List(ctx, r.source.Name)
	if err != nil {
		logger.Warn("Failed to read ledger for %s: %v", r.source.Name, err)
		return map[string]domain.LedgerEntry{}
	}
	out := make(map[string]domain.LedgerEntry, len(entries))
	for _, e := range entries {
		out[e.DocumentID] = e
	}
	return out
}

// diff looks up the recorded fingerprint of each document through its first
// chunk and classifies it. Lookup failures mean "no prior hash".
func (o *SyncOrchestrator) diff(ctx context.Context, r *run, items []*item, ledger map[string]domain.LedgerEntry) {
	var pending []*item
	for _, it := range items {
		if !it.failed {
			pending = append(pending, it)
		}
	}

	existing := make(map[string]map[string]any, len(pending))
	for start := 0; start < len(pending); start += o.opts.LookupBatchSize {
		end := min(start+o.opts.LookupBatchSize, len(pending))
		ids := make([]string, 0, end-start)
		for _, it := range pending[start:end] {
			ids = append(ids, domain.ChunkID(it.doc.ID, 0))
		}

		found, err := r.sink.FetchMetadata(ctx, ids)
		if err != nil {
			logger.Warn("%v: %s: %v", domain.ErrSinkMetadataLookup, r.source.Name, err)
			continue
		}
		for id, md := range found {
			existing[id] = md
		}
	}

	for _, it := range pending {
		var prevHash string
		entry, inLedger := ledger[it.doc.ID]
		if inLedger {
			it.prevCount = entry.ChunkCount
		}

		if md, ok := existing[domain.ChunkID(it.doc.ID, 0)]; ok {
			prevHash, _ = md[domain.MetaContentHash].(string)
			it.prevCount = max(it.prevCount, metaInt(md[domain.MetaChunkCount]), 1)
		} else if inLedger && entry.ChunkCount == 0 {
			// Documents without text have no records to carry their hash
			prevHash = entry.ContentHash
		}

		it.hash, it.class = Classify(it.doc, prevHash)
		logger.Debug("%s %s", it.doc.ID, it.class)

		if it.class == domain.ClassUnchanged {
			o.tally(r, func(report *domain.SyncReport, status *driving.SyncStatus) {
				report.Skipped++
				status.DocumentsProcessed++
			})
		}
	}
}

// stage chunks and embeds new and changed documents in parallel.
func (o *SyncOrchestrator) stage(ctx context.Context, r *run, items []*item) {
	var g errgroup.Group
	g.SetLimit(o.opts.Workers)

	for _, it := range items {
		if it.failed || it.class == domain.ClassUnchanged {
			continue
		}
		g.Go(func() error {
			docCtx, cancel := context.WithTimeout(ctx, o.opts.DocumentTimeout)
			defer cancel()

			if stage, err := o.buildRecords(docCtx, r, it); err != nil {
				o.fail(r, it, stage, err)
			}
			return nil
		})
	}

	_ = g.Wait()
}

// buildRecords chunks and embeds one document into IndexRecords.
func (o *SyncOrchestrator) buildRecords(ctx context.Context, r *run, it *item) (domain.Stage, error) {
	chunks, err := o.chunker.Chunk(ctx, it.doc)
	if err != nil {
		return domain.StageChunk, fmt.Errorf("%w: %w", domain.ErrChunking, err)
	}
	if len(chunks) == 0 {
		return "", nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return domain.StageEmbed, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return domain.StageEmbed, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedding, len(vectors), len(chunks))
	}

	base := domain.SanitizeMetadata(it.doc.Metadata)
	records := make([]domain.IndexRecord, len(chunks))
	for i, c := range chunks {
		if dims := o.embedder.Dimensions(); dims > 0 && len(vectors[i]) != dims {
			return domain.StageEmbed, fmt.Errorf("%w: %w: got %d, want %d",
				domain.ErrEmbedding, domain.ErrDimensionMismatch, len(vectors[i]), dims)
		}

		md := make(map[string]any, len(base)+8)
		for k, v := range base {
			md[k] = v
		}
		md[domain.MetaText] = c.Text
		md[domain.MetaContentHash] = it.hash
		md[domain.MetaDocumentID] = it.doc.ID
		md[domain.MetaChunkIndex] = c.Order
		md[domain.MetaChunkCount] = len(chunks)
		md[domain.MetaTitle] = it.doc.Title
		md[domain.MetaEmbeddingVer] = o.embedder.ModelName()
		if _, ok := md[domain.MetaSource]; !ok {
			md[domain.MetaSource] = it.doc.SourceType
		}

		records[i] = domain.IndexRecord{ID: c.ID, Vector: vectors[i], Metadata: md}
	}
	it.records = records
	return "", nil
}

// upsert sends staged records in batches of whole documents, removes stale
// trailing chunks and returns ledger entries for everything now persisted.
//
//nolint:gocognit // Batch assembly and per-document accounting
func (o *SyncOrchestrator) upsert(ctx context.Context, r *run, items []*item) []domain.LedgerEntry {
	now := time.Now()
	var entries []domain.LedgerEntry

	var staged []*item
	for _, it := range items {
		if it.failed || it.doc == nil {
			continue
		}
		if it.class == domain.ClassUnchanged {
			entries = append(entries, domain.LedgerEntry{
				Source:      r.source.Name,
				DocumentID:  it.doc.ID,
				ContentHash: it.hash,
				ChunkCount:  it.prevCount,
				SyncedAt:    now,
			})
			continue
		}
		staged = append(staged, it)
	}

	for _, batch := range batchItems(staged, o.opts.UpsertBatchSize) {
		records := markersLast(batch)
		if len(records) > 0 {
			if err := r.sink.Upsert(ctx, records); err != nil {
				logger.Error("Upsert of %d records to %s failed: %v", len(records), r.source.Index, err)
				for _, it := range batch {
					o.fail(r, it, domain.StageUpsert, fmt.Errorf("%w: %w", domain.ErrSinkUpsert, err))
				}
				continue
			}
		}

		for _, it := range batch {
			count := len(it.records)
			if stale := staleChunkIDs(it.doc.ID, count, it.prevCount); len(stale) > 0 {
				if err := r.sink.Delete(ctx, stale); err != nil {
					logger.Warn("%v: stale chunks of %s: %v", domain.ErrSinkDelete, it.doc.ID, err)
					// Remember the old count so the next run retries
					count = it.prevCount
				}
			}

			o.tally(r, func(report *domain.SyncReport, status *driving.SyncStatus) {
				if it.class == domain.ClassNew {
					report.New++
				} else {
					report.Updated++
				}
				status.DocumentsProcessed++
			})

			entries = append(entries, domain.LedgerEntry{
				Source:      r.source.Name,
				DocumentID:  it.doc.ID,
				ContentHash: it.hash,
				ChunkCount:  count,
				SyncedAt:    now,
			})
		}
	}

	return entries
}

// markersLast flattens the records of batch with every document's first
// chunk at the end. The first chunk carries the hash read back by the next
// run, so a sink that fails part way through a batch never leaves a new
// hash next to old trailing chunks.
func markersLast(batch []*item) []domain.IndexRecord {
	var records, markers []domain.IndexRecord
	for _, it := range batch {
		if len(it.records) == 0 {
			continue
		}
		markers = append(markers, it.records[0])
		records = append(records, it.records[1:]...)
	}
	return append(records, markers...)
}

// prune deletes documents recorded in the ledger that the latest complete
// fetch no longer returned.
func (o *SyncOrchestrator) prune(ctx context.Context, r *run, items []*item, ledger map[string]domain.LedgerEntry) {
	if r.report.Truncated {
		logger.Info("Skipping deletion reconciliation for %s: fetch was truncated", r.source.Name)
		return
	}

	live := make(map[string]struct{}, len(items))
	for _, it := range items {
		live[it.raw.SourceID] = struct{}{}
		if it.doc != nil {
			live[it.doc.ID] = struct{}{}
		}
	}

	var gone []string
	for id, entry := range ledger {
		if _, ok := live[id]; ok {
			continue
		}
		if ids := staleChunkIDs(id, 0, entry.ChunkCount); len(ids) > 0 {
			if err := r.sink.Delete(ctx, ids); err != nil {
				logger.Warn("%v: removed document %s: %v", domain.ErrSinkDelete, id, err)
				continue
			}
		}
		gone = append(gone, id)
	}
	if len(gone) == 0 {
		return
	}

	if err := o.ledger.Delete(ctx, r.source.Name, gone); err != nil {
		logger.Warn("Failed to remove ledger entries for %s: %v", r.source.Name, err)
	}
	r.report.Deleted = len(gone)
	logger.Info("Removed %d documents no longer present in %s", len(gone), r.source.Name)
}

// fail records a per-document failure.
func (o *SyncOrchestrator) fail(r *run, it *item, stage domain.Stage, err error) {
	id := it.raw.SourceID
	if it.doc != nil {
		id = it.doc.ID
	}
	derr := &domain.DocumentError{DocumentID: id, Stage: stage, Err: err}
	logger.Error("Sync %s: %v", r.source.Name, derr)

	it.failed = true
	it.records = nil
	o.tally(r, func(report *domain.SyncReport, status *driving.SyncStatus) {
		report.Failed++
		report.Failures = append(report.Failures, domain.DocumentFailure{
			DocumentID: id,
			Stage:      stage,
			Error:      err.Error(),
		})
		status.ErrorCount++
	})
}

// tally updates counters under the status lock, since Status reads them
// while workers run.
func (o *SyncOrchestrator) tally(r *run, fn func(report *domain.SyncReport, status *driving.SyncStatus)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(r.report, r.status)
}

// begin registers a run, refusing a second concurrent run of one source.
func (o *SyncOrchestrator) begin(sourceName string) (*driving.SyncStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, running := o.activeSyncs[sourceName]; running {
		return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, sourceName)
	}
	status := &driving.SyncStatus{
		SourceName: sourceName,
		Running:    true,
		Phase:      domain.PhaseIdle,
	}
	o.activeSyncs[sourceName] = status
	return status, nil
}

// finish removes the active status and keeps the final one.
func (o *SyncOrchestrator) finish(sourceName string, status *driving.SyncStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()

	final := *status
	final.Running = false
	final.Phase = domain.PhaseDone
	o.lastSyncs[sourceName] = final
	delete(o.activeSyncs, sourceName)
}

func (o *SyncOrchestrator) setPhase(r *run, phase domain.SyncPhase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r.status.Phase = phase
	logger.Debug("Sync %s: %s", r.source.Name, phase)
}

// batchItems groups documents so each batch holds at most size records,
// except a single document larger than size, which forms its own batch.
func batchItems(items []*item, size int) [][]*item {
	var (
		batches [][]*item
		current []*item
		n       int
	)
	for _, it := range items {
		if len(current) > 0 && n+len(it.records) > size {
			batches = append(batches, current)
			current, n = nil, 0
		}
		current = append(current, it)
		n += len(it.records)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// staleChunkIDs returns the ids of chunks from..prev-1.
func staleChunkIDs(documentID string, from, prev int) []string {
	if prev <= from {
		return nil
	}
	ids := make([]string, 0, prev-from)
	for i := from; i < prev; i++ {
		ids = append(ids, domain.ChunkID(documentID, i))
	}
	return ids
}

// metaInt reads an integer metadata value that may have been decoded as a
// float by a JSON-speaking sink.
func metaInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
