package indexmeta

import (
	"context"
	"sync"

	"github.com/lexivec/lexivec/internal/domain/index"
)

// loader is the consumer interface the cache refreshes from.
type loader interface {
	Get(ctx context.Context, name string) (*index.Index, error)
}

// Cache serves index schemas from memory, loading through the repository on
// miss. GetIndex hands out clones: the schema aggregate is a mutable
// batch-scoped builder and must never be shared between batches.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*index.Index
	repo    loader
}

// NewCache creates an index schema cache backed by the given repository.
func NewCache(repo loader) *Cache {
	return &Cache{entries: make(map[string]*index.Index), repo: repo}
}

// GetIndex returns a clone of the cached schema, loading it on first use.
func (c *Cache) GetIndex(ctx context.Context, name string) (*index.Index, error) {
	c.mu.RLock()
	idx, ok := c.entries[name]
	c.mu.RUnlock()
	if ok {
		return idx.Clone(), nil
	}
	return c.ForceRefresh(ctx, name)
}

// ForceRefresh reloads the schema from the repository, replacing any cached
// entry. Called after a schema flush so later batches observe the growth.
func (c *Cache) ForceRefresh(ctx context.Context, name string) (*index.Index, error) {
	idx, err := c.repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[name] = idx
	c.mu.Unlock()
	return idx.Clone(), nil
}

// Invalidate drops a cached entry.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}
