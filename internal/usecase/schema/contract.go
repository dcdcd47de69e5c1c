package schema

import (
	"context"
	"time"

	"github.com/lexivec/lexivec/internal/domain/index"
)

// Persister writes a grown schema back to the metadata store.
type Persister interface {
	Persist(ctx context.Context, idx *index.Index) error
}

// Refresher invalidates and reloads the shared schema cache after a flush.
type Refresher interface {
	ForceRefresh(ctx context.Context, name string) (*index.Index, error)
}

// Locker serializes concurrent schema flushes across service instances.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl, timeout time.Duration) (string, error)
	ReleaseLock(ctx context.Context, name, token string) error
}
