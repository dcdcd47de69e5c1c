package ingest

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lexivec/lexivec/internal/config"
	"github.com/lexivec/lexivec/internal/db"
	"github.com/lexivec/lexivec/internal/domain"
	"github.com/lexivec/lexivec/internal/domain/document"
	"github.com/lexivec/lexivec/internal/domain/index"
)

// mockStore implements Store with an okResult default: every written or
// updated document succeeds with status 200 under a realistic store key.
type mockStore struct {
	written []document.WireDocument
	updated []document.PartialDocument

	writeErr    error
	updateErr   error
	writeResult *db.BatchResult

	readDocs []document.WireDocument
	readErr  error
	readIDs  []string

	deleteCount int
	deleteErr   error
}

func storeKey(schema, id string) string {
	return "lexivec:" + schema + "::" + id
}

func okResult(schema string, ids []string) *db.BatchResult {
	r := &db.BatchResult{}
	for _, id := range ids {
		r.Responses = append(r.Responses, db.ItemResponse{ID: storeKey(schema, id), Status: db.StatusOK})
	}
	return r
}

func (m *mockStore) WriteBatch(
	_ context.Context, docs []document.WireDocument, schema string,
) (*db.BatchResult, error) {
	m.written = append(m.written, docs...)
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	if m.writeResult != nil {
		return m.writeResult, nil
	}
	ids := make([]string, len(docs))
	for n, d := range docs {
		ids[n] = d.ID
	}
	return okResult(schema, ids), nil
}

func (m *mockStore) UpdateBatch(
	_ context.Context, updates []document.PartialDocument, schema string,
) (*db.BatchResult, error) {
	m.updated = append(m.updated, updates...)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.writeResult != nil {
		return m.writeResult, nil
	}
	ids := make([]string, len(updates))
	for n, u := range updates {
		ids[n] = u.ID
	}
	return okResult(schema, ids), nil
}

func (m *mockStore) ReadBatch(
	_ context.Context, ids []string, _ []string, _ string,
) ([]document.WireDocument, error) {
	m.readIDs = append(m.readIDs, ids...)
	return m.readDocs, m.readErr
}

func (m *mockStore) DeleteAll(_ context.Context, _ string) (int, error) {
	return m.deleteCount, m.deleteErr
}

// mockCache implements IndexCache over a single index, handing out clones
// like the real cache does.
type mockCache struct {
	idx           *index.Index
	refreshCalls  int
	invalidations int
	getErr        error
}

func (m *mockCache) GetIndex(_ context.Context, _ string) (*index.Index, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.idx.Clone(), nil
}

func (m *mockCache) ForceRefresh(_ context.Context, _ string) (*index.Index, error) {
	m.refreshCalls++
	return m.idx.Clone(), nil
}

func (m *mockCache) Invalidate(_ string) {
	m.invalidations++
}

type mockSchemaRepo struct {
	persisted int
	created   int
	err       error
	last      *index.Index
}

func (m *mockSchemaRepo) Persist(_ context.Context, idx *index.Index) error {
	m.persisted++
	m.last = idx
	return m.err
}

func (m *mockSchemaRepo) Create(_ context.Context, idx *index.Index) error {
	m.created++
	m.last = idx
	return m.err
}

type mockLocker struct {
	acquireErr error
	acquired   int
	released   int
}

func (m *mockLocker) AcquireLock(_ context.Context, _ string, _, _ time.Duration) (string, error) {
	m.acquired++
	if m.acquireErr != nil {
		return "", m.acquireErr
	}
	return "token", nil
}

func (m *mockLocker) ReleaseLock(_ context.Context, _, _ string) error {
	m.released++
	return nil
}

type mockEmbedder struct {
	calls int
	err   error
}

func (m *mockEmbedder) Embed(
	_ context.Context, content []string, _ domain.Modality,
) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	vecs := make([][]float32, len(content))
	for n := range content {
		vecs[n] = []float32{0.1, 0.2}
	}
	return vecs, nil
}

type testEnv struct {
	svc    *Service
	store  *mockStore
	cache  *mockCache
	repo   *mockSchemaRepo
	locker *mockLocker
	emb    *mockEmbedder
}

func newTestService(t *testing.T, idx *index.Index) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  &mockStore{},
		cache:  &mockCache{idx: idx},
		repo:   &mockSchemaRepo{},
		locker: &mockLocker{},
		emb:    &mockEmbedder{},
	}
	env.svc = New(env.cache, env.store, env.repo, env.locker, env.emb, Config{
		Capacity: config.CapacityConfig{
			MaxLexicalFieldCount:     100,
			MaxTensorFieldCount:      100,
			MaxStringArrayFieldCount: 100,
		},
		FilterStringMaxLength: 50,
		MaxChunkChars:         600,
		SchemaLockTimeout:     time.Second,
	}, zap.NewNop())
	return env
}

func newSemiIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.New("articles", index.TypeSemiStructured, "2.16.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return idx
}
