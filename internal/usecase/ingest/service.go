// Package ingest implements the document write path: batched adds with
// on-the-fly schema growth, partial updates with map-merge semantics and
// order-preserving per-document outcomes.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lexivec/lexivec/internal/config"
	"github.com/lexivec/lexivec/internal/db"
	"github.com/lexivec/lexivec/internal/domain"
	"github.com/lexivec/lexivec/internal/domain/batch"
	"github.com/lexivec/lexivec/internal/domain/document"
	"github.com/lexivec/lexivec/internal/domain/index"
	"github.com/lexivec/lexivec/internal/inference"
	"github.com/lexivec/lexivec/internal/metrics"
	"github.com/lexivec/lexivec/internal/usecase/schema"
)

// SchemaRepo persists index schemas.
type SchemaRepo interface {
	Create(ctx context.Context, idx *index.Index) error
	Persist(ctx context.Context, idx *index.Index) error
}

// Config holds the ingestion settings resolved once at construction.
type Config struct {
	Capacity              config.CapacityConfig
	FilterStringMaxLength int
	MaxChunkChars         int
	SchemaLockTimeout     time.Duration
}

// Service is the ingestion orchestrator: it resolves an index's type, runs
// the matching pipeline variant and drives add/update/delete-all end to end.
type Service struct {
	cache      IndexCache
	store      Store
	schemaRepo SchemaRepo
	locker     schema.Locker
	vectoriser inference.Vectoriser
	chunker    *inference.Chunker
	cfg        Config
	logger     *zap.Logger
}

// New creates the ingestion service.
func New(
	cache IndexCache,
	store Store,
	schemaRepo SchemaRepo,
	locker schema.Locker,
	embedder domain.Embedder,
	cfg Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		cache:      cache,
		store:      store,
		schemaRepo: schemaRepo,
		locker:     locker,
		vectoriser: inference.NewSingleVectoriser(embedder),
		chunker:    inference.NewChunker(cfg.MaxChunkChars),
		cfg:        cfg,
		logger:     logger,
	}
}

// CreateIndex bootstraps a new index schema.
func (s *Service) CreateIndex(
	ctx context.Context, name string, t index.Type, compatVersion string,
) (*index.Index, error) {
	idx, err := index.New(name, t, compatVersion)
	if err != nil {
		return nil, fmt.Errorf("validate index: %w", err)
	}
	if err := s.schemaRepo.Create(ctx, idx); err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	// Drop any stale cache entry left by a previous index of the same name.
	s.cache.Invalidate(name)
	return idx, nil
}

// AddDocuments runs one add batch end to end: per-document processing, one
// batched store write, one schema flush for growing variants, then response
// translation. tensorFields names the fields to chunk and embed
// (semi-structured and unstructured only; structured uses its declared set).
func (s *Service) AddDocuments(
	ctx context.Context, indexName string, docs []map[string]any, tensorFields []string,
) (*batch.Response, error) {
	start := time.Now()

	idx, err := s.cache.GetIndex(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("resolve index %s: %w", indexName, err)
	}
	if len(docs) == 0 {
		return s.emptyResponse(indexName, start), nil
	}

	p, mgr, err := s.pipelineFor(idx)
	if err != nil {
		return nil, err
	}

	wireDocs, local := p.processBatch(ctx, docs, tensorFields)

	var result *db.BatchResult
	if len(wireDocs) > 0 {
		result, err = s.store.WriteBatch(ctx, wireDocs, idx.SchemaName())
		if err != nil {
			return nil, fmt.Errorf("write batch to %s: %w", indexName, err)
		}
	}

	if mgr != nil {
		if err := mgr.Flush(ctx); err != nil {
			return nil, err
		}
	}

	resp := NewTranslator(indexName).Translate(result, local)
	s.finishResponse(resp, "add", start)
	return resp, nil
}

// PartialUpdateDocuments runs one update batch: dedup, map detection, one
// batched snapshot read for map-bearing documents, wire-update construction,
// one batched conditional write, then response translation.
func (s *Service) PartialUpdateDocuments(
	ctx context.Context, indexName string, docs []map[string]any,
) (*batch.Response, error) {
	start := time.Now()

	idx, err := s.cache.GetIndex(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("resolve index %s: %w", indexName, err)
	}
	if err := checkPartialUpdateSupport(idx); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return s.emptyResponse(indexName, start), nil
	}

	semiMode := idx.Type() == index.TypeSemiStructured
	entries, mapBearing, local := NewProcessor(semiMode, s.logger).Process(docs)

	snapshots, err := s.fetchSnapshots(ctx, idx, mapBearing)
	if err != nil {
		return nil, err
	}

	updates, buildLocal := newUpdateBuilder(idx, s.cfg.FilterStringMaxLength, snapshots).build(entries)
	local = append(local, buildLocal...)

	var result *db.BatchResult
	if len(updates) > 0 {
		result, err = s.store.UpdateBatch(ctx, updates, idx.SchemaName())
		if err != nil {
			return nil, fmt.Errorf("update batch in %s: %w", indexName, err)
		}
	}

	resp := NewTranslator(indexName).Translate(result, local)
	s.finishResponse(resp, "update", start)
	return resp, nil
}

// DeleteAllDocuments removes every document of an index, returning the count.
func (s *Service) DeleteAllDocuments(ctx context.Context, indexName string) (int, error) {
	idx, err := s.cache.GetIndex(ctx, indexName)
	if err != nil {
		return 0, fmt.Errorf("resolve index %s: %w", indexName, err)
	}

	count, err := s.store.DeleteAll(ctx, idx.SchemaName())
	if err != nil {
		return 0, fmt.Errorf("delete all documents in %s: %w", indexName, err)
	}
	metrics.DocumentsProcessedTotal.WithLabelValues(indexName, "delete_all", "ok").Add(float64(count))
	s.logger.Info("Deleted all documents",
		zap.String("index", indexName), zap.Int("count", count))
	return count, nil
}

// pipelineFor selects the pipeline variant for an index type. The schema
// manager exists only for the growing variants.
func (s *Service) pipelineFor(idx *index.Index) (*pipeline, *schema.Manager, error) {
	// Batch-scoped caching: chunks shared across the batch's documents reach
	// the model once.
	p := &pipeline{
		idx: idx,
		vectoriser: inference.NewBatchCachingVectoriser(
			s.vectoriser, idx.SchemaName(), nil, metrics.VectoriseCacheTotal, s.logger,
		),
		chunker:   s.chunker,
		filterMax: s.cfg.FilterStringMaxLength,
		logger:    s.logger,
	}

	switch idx.Type() {
	case index.TypeStructured:
		return p, nil, nil
	case index.TypeSemiStructured, index.TypeUnstructured:
		mgr := schema.NewManager(
			idx, s.schemaRepo, s.cache, s.locker,
			s.cfg.Capacity, s.cfg.SchemaLockTimeout, s.logger,
		)
		p.mgr = mgr
		return p, mgr, nil
	default:
		return nil, nil, fmt.Errorf("%w: unrecognized index type %q", domain.ErrInternal, idx.Type())
	}
}

func checkPartialUpdateSupport(idx *index.Index) error {
	switch idx.Type() {
	case index.TypeStructured:
		return nil
	case index.TypeUnstructured:
		return fmt.Errorf(
			"partial updates are not supported for unstructured indexes: %w",
			domain.ErrUnsupportedFeature,
		)
	case index.TypeSemiStructured:
		if !idx.SupportsPartialUpdates() {
			return fmt.Errorf(
				"partial updates require index version %s or above, index %s has %s: %w",
				index.PartialUpdateSupportVersion, idx.Name(), idx.CompatVersion(),
				domain.ErrUnsupportedFeature,
			)
		}
		return nil
	default:
		return fmt.Errorf("%w: unrecognized index type %q", domain.ErrInternal, idx.Type())
	}
}

// fetchSnapshots reads the stored flattened numeric maps and creation
// timestamps of every map-bearing document in one batched read.
func (s *Service) fetchSnapshots(
	ctx context.Context, idx *index.Index, mapBearing map[string]bool,
) (map[string]document.WireDocument, error) {
	if len(mapBearing) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(mapBearing))
	for id := range mapBearing {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stored, err := s.store.ReadBatch(ctx, ids,
		[]string{document.WireFieldIntFields, document.WireFieldFloatFields}, idx.SchemaName())
	if err != nil {
		return nil, fmt.Errorf("read stored state for map-bearing documents: %w", err)
	}

	snapshots := make(map[string]document.WireDocument, len(stored))
	for _, doc := range stored {
		snapshots[doc.ID] = doc
	}
	return snapshots, nil
}

func (s *Service) emptyResponse(indexName string, start time.Time) *batch.Response {
	resp := &batch.Response{IndexName: indexName, Items: []batch.Item{}}
	resp.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	return resp
}

// finishResponse stamps the processing time and records outcome metrics.
func (s *Service) finishResponse(resp *batch.Response, operation string, start time.Time) {
	resp.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	for _, item := range resp.Items {
		outcome := "ok"
		if item.Status != 200 {
			outcome = "error"
		}
		metrics.DocumentsProcessedTotal.WithLabelValues(resp.IndexName, operation, outcome).Inc()
	}
}
