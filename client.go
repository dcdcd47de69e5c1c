// Package lexivec is the embedded SDK: it wires the ingestion stack over a
// Redis connection so Go programs can manage indexes without running the HTTP
// server.
package lexivec

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbRedis "github.com/lexivec/lexivec/internal/db/redis"
	"github.com/lexivec/lexivec/internal/domain"
	"github.com/lexivec/lexivec/internal/domain/batch"
	"github.com/lexivec/lexivec/internal/domain/index"
	"github.com/lexivec/lexivec/internal/repository/indexmeta"
	ingestuc "github.com/lexivec/lexivec/internal/usecase/ingest"
)

const defaultReadinessTimeout = 10 * time.Second

// IndexType selects the schema variant of a new index.
type IndexType string

// Supported index types.
const (
	IndexTypeStructured     IndexType = IndexType(index.TypeStructured)
	IndexTypeSemiStructured IndexType = IndexType(index.TypeSemiStructured)
	IndexTypeUnstructured   IndexType = IndexType(index.TypeUnstructured)
)

// BatchResponse is the per-document outcome report of a batch operation.
type BatchResponse = batch.Response

// Client is the lexivec SDK entry point.
type Client struct {
	store  *dbRedis.Store
	ingest *ingestuc.Service
}

// New creates a lexivec Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("lexivec: database address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:     cfg.addrs,
		Username:  cfg.username,
		Password:  cfg.password,
		KeyPrefix: cfg.keyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("lexivec: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("lexivec: database not ready: %w", err)
	}

	return wireClient(store, cfg), nil
}

func wireClient(store *dbRedis.Store, cfg *clientConfig) *Client {
	metaRepo := indexmeta.New(store)
	metaCache := indexmeta.NewCache(metaRepo)

	var embedder domain.Embedder = &noopEmbedder{}
	if cfg.embedder != nil {
		embedder = &embedderAdapter{inner: cfg.embedder}
	}

	svc := ingestuc.New(metaCache, store, metaRepo, store, embedder, ingestuc.Config{
		Capacity:              cfg.capacity,
		FilterStringMaxLength: cfg.filterStringMaxLength,
		MaxChunkChars:         cfg.maxChunkChars,
		SchemaLockTimeout:     cfg.schemaLockTimeout,
	}, cfg.logger)

	return &Client{store: store, ingest: svc}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// CreateIndex creates a new index schema. compatVersion may be empty to take
// the current default.
func (c *Client) CreateIndex(
	ctx context.Context, name string, t IndexType, compatVersion string,
) error {
	if compatVersion == "" {
		compatVersion = index.PartialUpdateSupportVersion
	}
	if _, err := c.ingest.CreateIndex(ctx, name, index.Type(t), compatVersion); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// AddDocuments ingests one document batch. tensorFields names the string
// fields to chunk and embed (semi-structured and unstructured indexes).
func (c *Client) AddDocuments(
	ctx context.Context, indexName string, docs []map[string]any, tensorFields []string,
) (*BatchResponse, error) {
	resp, err := c.ingest.AddDocuments(ctx, indexName, docs, tensorFields)
	if err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}
	return resp, nil
}

// PartialUpdateDocuments applies one partial-update batch.
func (c *Client) PartialUpdateDocuments(
	ctx context.Context, indexName string, docs []map[string]any,
) (*BatchResponse, error) {
	resp, err := c.ingest.PartialUpdateDocuments(ctx, indexName, docs)
	if err != nil {
		return nil, fmt.Errorf("partial update documents: %w", err)
	}
	return resp, nil
}

// DeleteAllDocuments removes every document of an index, returning the count.
func (c *Client) DeleteAllDocuments(ctx context.Context, indexName string) (int, error) {
	count, err := c.ingest.DeleteAllDocuments(ctx, indexName)
	if err != nil {
		return 0, fmt.Errorf("delete all documents: %w", err)
	}
	return count, nil
}

// Embedder is the public embedding capability accepted by WithEmbedder.
// Implementations return one vector per content item, in input order.
type Embedder interface {
	Embed(ctx context.Context, content []string) ([][]float32, error)
}

// embedderAdapter wraps a public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(
	ctx context.Context, content []string, _ domain.Modality,
) ([][]float32, error) {
	vecs, err := a.inner.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vecs, nil
}

// noopEmbedder returns an error on Embed call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ []string, _ domain.Modality) ([][]float32, error) {
	return nil, errors.New(
		"lexivec: embedder not configured (use WithEmbedder for tensor fields)",
	)
}
