// Package db defines the backing document store contract consumed by the
// ingestion pipeline and the index metadata repository.
package db

import (
	"context"
	"time"

	"github.com/lexivec/lexivec/internal/domain/document"
)

// Batch item statuses returned by the store. They follow document-store
// conventions and are translated into API statuses by the response
// translator, not here.
const (
	StatusOK                 = 200
	StatusNotFound           = 404
	StatusPreconditionFailed = 412
	StatusOutOfResources     = 507
	StatusInternal           = 500
)

// ItemResponse is the store's outcome for one document in a batch. ID is the
// store-internal key (including the key prefix and schema).
type ItemResponse struct {
	ID      string
	Status  int
	Message string
}

// BatchResult is the store's response to a batched write or update.
type BatchResult struct {
	Errors    bool
	Responses []ItemResponse
}

// Store is the backing document store client.
type Store interface {
	// WriteBatch stores wire documents under the given schema in one
	// pipelined call, reporting a per-document status.
	WriteBatch(ctx context.Context, docs []document.WireDocument, schema string) (*BatchResult, error)
	// UpdateBatch applies wire-level partial updates. A document whose
	// field-type precondition does not match the stored state fails with
	// StatusPreconditionFailed; a missing document fails with StatusNotFound.
	UpdateBatch(ctx context.Context, updates []document.PartialDocument, schema string) (*BatchResult, error)
	// ReadBatch fetches documents by ID, restricted to the given top-level
	// wire fields (nil = all). Missing documents are omitted.
	ReadBatch(ctx context.Context, ids []string, fields []string, schema string) ([]document.WireDocument, error)
	// DeleteAll removes every document of a schema, returning the count.
	DeleteAll(ctx context.Context, schema string) (int, error)

	// Get and Set are plain KV operations used for index metadata.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error

	// AcquireLock takes a bounded-timeout exclusive lock, returning a release
	// token. Fails with ErrLockTimeout when the deadline passes first.
	AcquireLock(ctx context.Context, name string, ttl, timeout time.Duration) (string, error)
	// ReleaseLock releases a held lock if the token still matches.
	ReleaseLock(ctx context.Context, name, token string) error

	Ping(ctx context.Context) error
	Close()
}
