package indexmeta

import (
	"context"
	"errors"
	"testing"

	"github.com/lexivec/lexivec/internal/db"
	"github.com/lexivec/lexivec/internal/domain"
	"github.com/lexivec/lexivec/internal/domain/index"
)

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	data  map[string][]byte
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte) error
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: make(map[string][]byte)}
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	data, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return data, nil
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	m.data[key] = value
	return nil
}

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.New("articles", index.TypeSemiStructured, "2.16.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx.AppendLexicalField(index.NewLexicalField("title"))
	idx.AppendTensorField(index.NewTensorField("body"))
	idx.AppendStringArrayField(index.NewStringArrayField("tags"))
	return idx
}

func TestRepo_PersistAndGet(t *testing.T) {
	ms := newMockKVStore()
	repo := New(ms)
	ctx := context.Background()

	idx := testIndex(t)
	if err := repo.Persist(ctx, idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(ctx, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name() != "articles" || got.Type() != index.TypeSemiStructured {
		t.Errorf("unexpected index: %s %s", got.Name(), got.Type())
	}
	if len(got.LexicalFields()) != 1 || got.LexicalFields()[0].LexicalName() != "lexivec__lexical_title" {
		t.Errorf("unexpected lexical fields: %+v", got.LexicalFields())
	}
	if len(got.TensorFields()) != 1 || got.TensorFields()[0].ChunksName() != "lexivec__chunks_body" {
		t.Errorf("unexpected tensor fields: %+v", got.TensorFields())
	}
	if len(got.StringArrayFields()) != 1 || got.StringArrayFields()[0].ArrayName() != "lexivec__string_array_tags" {
		t.Errorf("unexpected string array fields: %+v", got.StringArrayFields())
	}
}

func TestRepo_PersistBumpsVersion(t *testing.T) {
	ms := newMockKVStore()
	repo := New(ms)
	ctx := context.Background()

	idx := testIndex(t)
	if idx.Version() != 1 {
		t.Fatalf("expected fresh version 1, got %d", idx.Version())
	}
	if err := repo.Persist(ctx, idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(ctx, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version() != 2 {
		t.Errorf("expected persisted version 2, got %d", got.Version())
	}
}

func TestRepo_GetNotFound(t *testing.T) {
	repo := New(newMockKVStore())

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestRepo_SupportsPartialUpdatesSurvivesRoundTrip(t *testing.T) {
	ms := newMockKVStore()
	repo := New(ms)
	ctx := context.Background()

	old, _ := index.New("legacy", index.TypeStructured, "2.9.0")
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(ctx, "legacy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SupportsPartialUpdates() {
		t.Error("expected 2.9.0 index to not support partial updates")
	}
}

// --- cache tests ---

func TestCache_LoadsOnMiss(t *testing.T) {
	ms := newMockKVStore()
	repo := New(ms)
	ctx := context.Background()
	if err := repo.Create(ctx, testIndex(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cache := NewCache(repo)
	got, err := cache.GetIndex(ctx, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name() != "articles" {
		t.Errorf("unexpected index: %s", got.Name())
	}
}

func TestCache_ServesFromMemory(t *testing.T) {
	ms := newMockKVStore()
	repo := New(ms)
	ctx := context.Background()
	if err := repo.Create(ctx, testIndex(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cache := NewCache(repo)
	if _, err := cache.GetIndex(ctx, "articles"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := 0
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		calls++
		return nil, db.ErrKeyNotFound
	}
	if _, err := cache.GetIndex(ctx, "articles"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 {
		t.Errorf("expected cached read, store was hit %d times", calls)
	}
}

func TestCache_HandsOutClones(t *testing.T) {
	ms := newMockKVStore()
	repo := New(ms)
	ctx := context.Background()
	if err := repo.Create(ctx, testIndex(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cache := NewCache(repo)
	first, _ := cache.GetIndex(ctx, "articles")
	first.AppendLexicalField(index.NewLexicalField("sneaky"))

	second, _ := cache.GetIndex(ctx, "articles")
	if len(second.LexicalFields()) != 1 {
		t.Errorf("cached schema leaked a batch-local mutation: %+v", second.LexicalFields())
	}
}

func TestCache_ForceRefresh(t *testing.T) {
	ms := newMockKVStore()
	repo := New(ms)
	ctx := context.Background()

	idx := testIndex(t)
	if err := repo.Create(ctx, idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cache := NewCache(repo)
	if _, err := cache.GetIndex(ctx, "articles"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// schema grows and is re-persisted behind the cache's back
	idx.AppendLexicalField(index.NewLexicalField("author"))
	if err := repo.Persist(ctx, idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refreshed, err := cache.ForceRefresh(ctx, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refreshed.LexicalFields()) != 2 {
		t.Errorf("expected refreshed schema with 2 lexical fields, got %d", len(refreshed.LexicalFields()))
	}

	cached, _ := cache.GetIndex(ctx, "articles")
	if len(cached.LexicalFields()) != 2 {
		t.Errorf("expected cache updated after refresh, got %d fields", len(cached.LexicalFields()))
	}
}
