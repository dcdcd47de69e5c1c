package ingest

import (
	"context"

	"github.com/lexivec/lexivec/internal/db"
	"github.com/lexivec/lexivec/internal/domain/document"
	"github.com/lexivec/lexivec/internal/domain/index"
)

// Store is the backing document store contract consumed by the pipelines.
type Store interface {
	WriteBatch(ctx context.Context, docs []document.WireDocument, schema string) (*db.BatchResult, error)
	UpdateBatch(ctx context.Context, updates []document.PartialDocument, schema string) (*db.BatchResult, error)
	ReadBatch(ctx context.Context, ids []string, fields []string, schema string) ([]document.WireDocument, error)
	DeleteAll(ctx context.Context, schema string) (int, error)
}

// IndexCache resolves index schemas, serving clones safe for batch-local mutation.
type IndexCache interface {
	GetIndex(ctx context.Context, name string) (*index.Index, error)
	ForceRefresh(ctx context.Context, name string) (*index.Index, error)
	Invalidate(name string)
}
