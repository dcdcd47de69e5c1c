// Package indexmeta persists index schemas in the KV store and serves them
// through an in-memory cache.
package indexmeta

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexivec/lexivec/internal/db"
	"github.com/lexivec/lexivec/internal/domain"
	"github.com/lexivec/lexivec/internal/domain/index"
)

var metaKeyPrefix = domain.KeyPrefix + "index_meta:"

// store is the consumer interface for index metadata (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo loads and persists index schemas.
type Repo struct {
	store store
}

// New creates an index metadata repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

func metaKey(name string) string {
	return metaKeyPrefix + name
}

// Get loads an index schema by name.
func (r *Repo) Get(ctx context.Context, name string) (*index.Index, error) {
	data, err := r.store.Get(ctx, metaKey(name))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrIndexNotFound
		}
		return nil, fmt.Errorf("get index %s: %w", name, err)
	}
	return indexFromJSON(data)
}

// Persist writes an index schema, bumping its version tag first so readers
// can tell stale cached schemas apart.
func (r *Repo) Persist(ctx context.Context, idx *index.Index) error {
	idx.BumpVersion()
	data, err := indexToJSON(idx)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, metaKey(idx.Name()), data); err != nil {
		return fmt.Errorf("persist index %s: %w", idx.Name(), err)
	}
	return nil
}

// Create stores a brand-new index schema without bumping its version.
func (r *Repo) Create(ctx context.Context, idx *index.Index) error {
	data, err := indexToJSON(idx)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, metaKey(idx.Name()), data); err != nil {
		return fmt.Errorf("create index %s: %w", idx.Name(), err)
	}
	return nil
}
