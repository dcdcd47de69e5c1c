package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/lexivec/lexivec/internal/db"
	"github.com/lexivec/lexivec/internal/domain/document"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// --- kv tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisBlobString("value")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "mykey")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "myvalue")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.Set(context.Background(), "mykey", []byte("myvalue")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- batch.go tests ---

func TestWriteBatch_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString("OK")),
			mock.Result(mock.RedisString("OK")),
		})

	s := NewStoreForTest(c)
	result, err := s.WriteBatch(context.Background(), []document.WireDocument{
		{ID: "doc1", Fields: map[string]any{"title": "hello"}},
		{ID: "doc2", Fields: map[string]any{"title": "world"}},
	}, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Errors {
		t.Error("expected no errors")
	}
	if len(result.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(result.Responses))
	}
	if result.Responses[0].ID != "lexivec:articles::doc1" {
		t.Errorf("unexpected key: %s", result.Responses[0].ID)
	}
	if result.Responses[0].Status != db.StatusOK {
		t.Errorf("unexpected status: %d", result.Responses[0].Status)
	}
}

func TestWriteBatch_Empty(t *testing.T) {
	s := NewStoreForTest(nil)
	result, err := s.WriteBatch(context.Background(), nil, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Errors || len(result.Responses) != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestWriteBatch_OutOfMemory(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisError("OOM command not allowed when used memory > 'maxmemory'")),
		})

	s := NewStoreForTest(c)
	result, err := s.WriteBatch(context.Background(), []document.WireDocument{
		{ID: "doc1", Fields: map[string]any{"title": "big"}},
	}, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Errors {
		t.Error("expected errors flag")
	}
	if result.Responses[0].Status != db.StatusOutOfResources {
		t.Errorf("expected 507, got %d", result.Responses[0].Status)
	}
}

func TestUpdateBatch_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("JSON.GET", "lexivec:articles::missing")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	result, err := s.UpdateBatch(context.Background(), []document.PartialDocument{
		{ID: "missing", Fields: map[string]document.UpdateStatement{
			"title": document.AssignStatement("x"),
		}},
	}, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Errors {
		t.Error("expected errors flag")
	}
	if result.Responses[0].Status != db.StatusNotFound {
		t.Errorf("expected 404, got %d", result.Responses[0].Status)
	}
}

func TestUpdateBatch_PreconditionFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	stored := `{"lexivec__id":"doc1","lexivec__field_types":{"count":"int"},"count":3}`
	c.EXPECT().
		Do(gomock.Any(), mock.Match("JSON.GET", "lexivec:articles::doc1")).
		Return(mock.Result(mock.RedisString(stored)))

	s := NewStoreForTest(c)
	result, err := s.UpdateBatch(context.Background(), []document.PartialDocument{
		{
			ID:         "doc1",
			Fields:     map[string]document.UpdateStatement{"count": document.AssignStatement("text")},
			FieldTypes: map[string]string{"count": "string"},
		},
	}, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Responses[0].Status != db.StatusPreconditionFailed {
		t.Errorf("expected 412, got %d", result.Responses[0].Status)
	}
}

func TestUpdateBatch_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	stored := `{"lexivec__id":"doc1","title":"old","count":3}`
	c.EXPECT().
		Do(gomock.Any(), mock.Match("JSON.GET", "lexivec:articles::doc1")).
		Return(mock.Result(mock.RedisString(stored)))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "JSON.SET" && cmd[1] == "lexivec:articles::doc1"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	result, err := s.UpdateBatch(context.Background(), []document.PartialDocument{
		{ID: "doc1", Fields: map[string]document.UpdateStatement{
			"title": document.AssignStatement("new"),
		}},
	}, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Errors {
		t.Errorf("unexpected errors: %+v", result.Responses)
	}
	if result.Responses[0].Status != db.StatusOK {
		t.Errorf("expected 200, got %d", result.Responses[0].Status)
	}
}

func TestReadBatch_OmitsMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString(`{"lexivec__id":"doc1","title":"hello"}`)),
			mock.Result(mock.RedisNil()),
		})

	s := NewStoreForTest(c)
	docs, err := s.ReadBatch(context.Background(), []string{"doc1", "doc2"}, nil, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	if docs[0].ID != "doc1" || docs[0].Fields["title"] != "hello" {
		t.Errorf("unexpected doc: %+v", docs[0])
	}
}

func TestReadBatch_FieldFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString(`{"lexivec__id":"doc1","title":"hello","body":"long"}`)),
		})

	s := NewStoreForTest(c)
	docs, err := s.ReadBatch(context.Background(), []string{"doc1"}, []string{"title"}, "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := docs[0].Fields["body"]; ok {
		t.Error("expected body to be filtered out")
	}
	if docs[0].Fields["title"] != "hello" {
		t.Errorf("unexpected fields: %v", docs[0].Fields)
	}
}

func TestDeleteAll_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(0),
			mock.RedisArray(mock.RedisString("lexivec:articles::doc1"), mock.RedisString("lexivec:articles::doc2")),
		)))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "lexivec:articles::doc1", "lexivec:articles::doc2")).
		Return(mock.Result(mock.RedisInt64(2)))

	s := NewStoreForTest(c)
	count, err := s.DeleteAll(context.Background(), "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2, got %d", count)
	}
}

func TestDeleteAll_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0), mock.RedisArray())))

	s := NewStoreForTest(c)
	count, err := s.DeleteAll(context.Background(), "articles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0, got %d", count)
	}
}

// --- lock.go tests ---

func TestAcquireLock_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET" && cmd[1] == "lexivec:lock:schema"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	token, err := s.AcquireLock(context.Background(), "schema", time.Second, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Error("expected a token")
	}
}

func TestAcquireLock_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET"
		})).
		Return(mock.Result(mock.RedisNil())).
		AnyTimes()

	s := NewStoreForTest(c)
	_, err := s.AcquireLock(context.Background(), "schema", time.Second, 50*time.Millisecond)
	if !errors.Is(err, db.ErrLockTimeout) {
		t.Errorf("expected ErrLockTimeout, got %v", err)
	}
}

func TestReleaseLock_TokenMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "lexivec:lock:schema")).
		Return(mock.Result(mock.RedisString("other-token")))

	s := NewStoreForTest(c)
	if err := s.ReleaseLock(context.Background(), "schema", "my-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReleaseLock_Held(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "lexivec:lock:schema")).
		Return(mock.Result(mock.RedisString("my-token")))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "lexivec:lock:schema")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.ReleaseLock(context.Background(), "schema", "my-token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- statement application ---

func TestApplyStatements_AssignAndRemove(t *testing.T) {
	stored := map[string]any{"title": "old", "views": float64(3)}
	applyStatements(stored, map[string]document.UpdateStatement{
		"title": document.AssignStatement("new"),
		"views": document.RemoveStatement(),
	})
	if stored["title"] != "new" {
		t.Errorf("unexpected title: %v", stored["title"])
	}
	if _, ok := stored["views"]; ok {
		t.Error("expected views removed")
	}
}

func TestApplyStatements_MapEntryMerge(t *testing.T) {
	stored := map[string]any{
		"scores": map[string]any{"a": float64(1), "b": float64(2)},
	}
	applyStatements(stored, map[string]document.UpdateStatement{
		document.MapEntryKey("scores", "a"): document.AssignStatement(float64(5)),
		document.MapEntryKey("scores", "c"): document.AssignStatement(float64(9)),
	})
	inner := stored["scores"].(map[string]any)
	if inner["a"] != float64(5) || inner["b"] != float64(2) || inner["c"] != float64(9) {
		t.Errorf("unexpected merge result: %v", inner)
	}
}

func TestApplyStatements_MapEntryRemove(t *testing.T) {
	stored := map[string]any{
		"scores": map[string]any{"a": float64(1), "b": float64(2)},
	}
	applyStatements(stored, map[string]document.UpdateStatement{
		document.MapEntryKey("scores", "a"): document.RemoveStatement(),
	})
	inner := stored["scores"].(map[string]any)
	if _, ok := inner["a"]; ok {
		t.Error("expected entry a removed")
	}
	if inner["b"] != float64(2) {
		t.Errorf("unexpected map: %v", inner)
	}
}

func TestApplyStatements_FieldTypeMetadataStaysCurrent(t *testing.T) {
	stored := map[string]any{
		document.WireFieldIntFields: map[string]any{"scores.a": float64(1)},
		document.WireFieldTypes:     map[string]any{"scores.a": "int_map_entry", "title": "string"},
	}
	applyStatements(stored, map[string]document.UpdateStatement{
		document.MapEntryKey(document.WireFieldIntFields, "scores.a"): document.RemoveStatement(),
		document.MapEntryKey(document.WireFieldTypes, "scores.a"):     document.RemoveStatement(),
		document.MapEntryKey(document.WireFieldTypes, "views"):        document.AssignStatement("int"),
	})

	types := stored[document.WireFieldTypes].(map[string]any)
	if _, ok := types["scores.a"]; ok {
		t.Error("expected stale type metadata removed with the cleared entry")
	}
	if types["views"] != "int" {
		t.Errorf("expected views type recorded, got %v", types)
	}
	if types["title"] != "string" {
		t.Errorf("expected unrelated type kept, got %v", types)
	}
}

func TestSplitMapEntryKey(t *testing.T) {
	tests := []struct {
		key          string
		field, entry string
		ok           bool
	}{
		{"scores{a}", "scores", "a", true},
		{"plain", "", "", false},
		{"{a}", "", "", false},
		{"trailing{", "", "", false},
	}
	for _, tc := range tests {
		field, entry, ok := splitMapEntryKey(tc.key)
		if field != tc.field || entry != tc.entry || ok != tc.ok {
			t.Errorf("splitMapEntryKey(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.key, field, entry, ok, tc.field, tc.entry, tc.ok)
		}
	}
}

func TestCheckPreconditions(t *testing.T) {
	stored := map[string]any{
		document.WireFieldTypes: map[string]any{"count": "int", "title": "string"},
	}
	if msg := checkPreconditions(stored, map[string]string{"count": "int"}); msg != "" {
		t.Errorf("expected pass, got %q", msg)
	}
	if msg := checkPreconditions(stored, map[string]string{"count": "string"}); msg == "" {
		t.Error("expected mismatch failure")
	}
	// fields the document never stored carry no precondition
	if msg := checkPreconditions(stored, map[string]string{"fresh": "float"}); msg != "" {
		t.Errorf("expected pass for new field, got %q", msg)
	}
}
