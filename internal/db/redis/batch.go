package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/lexivec/lexivec/internal/db"
	"github.com/lexivec/lexivec/internal/domain/document"
)

// WriteBatch stores wire documents with one pipelined JSON.SET per document.
func (s *Store) WriteBatch(
	ctx context.Context, docs []document.WireDocument, schema string,
) (*db.BatchResult, error) {
	result := &db.BatchResult{Responses: make([]db.ItemResponse, 0, len(docs))}
	if len(docs) == 0 {
		return result, nil
	}

	cmds := make(rueidis.Commands, 0, len(docs))
	keys := make([]string, 0, len(docs))
	for _, doc := range docs {
		key := s.docKey(schema, doc.ID)
		data, err := json.Marshal(wireToMap(doc))
		if err != nil {
			return nil, fmt.Errorf("marshal document %s: %w", doc.ID, err)
		}
		cmds = append(cmds, s.b().Arbitrary("JSON.SET").Keys(key).Args("$", string(data)).Build())
		keys = append(keys, key)
	}

	for n, resp := range s.client.DoMulti(ctx, cmds...) {
		result.Responses = append(result.Responses, itemResponse(keys[n], resp.Error()))
	}
	for _, r := range result.Responses {
		if r.Status != db.StatusOK {
			result.Errors = true
			break
		}
	}
	return result, nil
}

// UpdateBatch applies partial updates one document at a time: read the
// stored JSON, verify the field-type preconditions, merge the update
// statements and write the document back.
func (s *Store) UpdateBatch(
	ctx context.Context, updates []document.PartialDocument, schema string,
) (*db.BatchResult, error) {
	result := &db.BatchResult{Responses: make([]db.ItemResponse, 0, len(updates))}

	for _, upd := range updates {
		resp := s.applyUpdate(ctx, upd, schema)
		if resp.Status != db.StatusOK {
			result.Errors = true
		}
		result.Responses = append(result.Responses, resp)
	}
	return result, nil
}

func (s *Store) applyUpdate(
	ctx context.Context, upd document.PartialDocument, schema string,
) db.ItemResponse {
	key := s.docKey(schema, upd.ID)

	raw, err := s.do(ctx, s.b().Arbitrary("JSON.GET").Keys(key).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return db.ItemResponse{ID: key, Status: db.StatusNotFound, Message: "document not found"}
		}
		return itemResponse(key, err)
	}

	var stored map[string]any
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return db.ItemResponse{ID: key, Status: db.StatusInternal, Message: "stored document is not valid JSON"}
	}

	if msg := checkPreconditions(stored, upd.FieldTypes); msg != "" {
		return db.ItemResponse{ID: key, Status: db.StatusPreconditionFailed, Message: msg}
	}

	applyStatements(stored, upd.Fields)
	if upd.CreateTimestamp > 0 {
		stored[document.WireFieldCreateTimestamp] = upd.CreateTimestamp
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return db.ItemResponse{ID: key, Status: db.StatusInternal, Message: err.Error()}
	}
	if err := s.do(ctx, s.b().Arbitrary("JSON.SET").Keys(key).Args("$", string(data)).Build()).Error(); err != nil {
		return itemResponse(key, err)
	}
	return db.ItemResponse{ID: key, Status: db.StatusOK}
}

// ReadBatch fetches documents by ID with pipelined JSON.GET calls. Missing
// documents are omitted; fields (nil = all) restricts top-level wire fields.
func (s *Store) ReadBatch(
	ctx context.Context, ids []string, fields []string, schema string,
) ([]document.WireDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, s.b().Arbitrary("JSON.GET").Keys(s.docKey(schema, id)).Build())
	}

	docs := make([]document.WireDocument, 0, len(ids))
	for n, resp := range s.client.DoMulti(ctx, cmds...) {
		raw, err := resp.ToString()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue
			}
			return nil, &db.Error{Op: db.OpJSONGet, Err: err}
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("unmarshal document %s: %w", ids[n], err)
		}
		docs = append(docs, mapToWire(m, fields))
	}
	return docs, nil
}

// DeleteAll removes every document of a schema, returning the count.
func (s *Store) DeleteAll(ctx context.Context, schema string) (int, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(s.docKeyPattern(schema)).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return 0, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.do(ctx, s.b().Del().Key(keys...).Build()).Error(); err != nil {
		return 0, &db.Error{Op: db.OpDel, Err: err}
	}
	return len(keys), nil
}

// itemResponse maps a per-command error to a store item status.
func itemResponse(key string, err error) db.ItemResponse {
	switch {
	case err == nil:
		return db.ItemResponse{ID: key, Status: db.StatusOK}
	case isRedisErr(err, "oom"):
		return db.ItemResponse{ID: key, Status: db.StatusOutOfResources, Message: err.Error()}
	default:
		return db.ItemResponse{ID: key, Status: db.StatusInternal, Message: err.Error()}
	}
}

// checkPreconditions compares the update's field-type metadata against the
// stored metadata. A stored field with a different type fails the update.
func checkPreconditions(stored map[string]any, fieldTypes map[string]string) string {
	storedTypes, _ := stored[document.WireFieldTypes].(map[string]any)
	for field, newType := range fieldTypes {
		if current, ok := storedTypes[field].(string); ok && current != newType {
			return fmt.Sprintf(
				"field %s has stored type %s and cannot be updated with type %s", field, current, newType,
			)
		}
	}
	return ""
}

// applyStatements merges update statements into the stored JSON map.
// Keys of the form "name{entry}" address one entry of a map-valued field.
func applyStatements(stored map[string]any, statements map[string]document.UpdateStatement) {
	for key, stmt := range statements {
		field, entry, isEntry := splitMapEntryKey(key)
		if !isEntry {
			if stmt.Remove {
				delete(stored, key)
			} else {
				stored[key] = stmt.Assign
			}
			continue
		}

		inner, ok := stored[field].(map[string]any)
		if !ok {
			if stmt.Remove {
				continue
			}
			inner = make(map[string]any)
			stored[field] = inner
		}
		if stmt.Remove {
			delete(inner, entry)
		} else {
			inner[entry] = stmt.Assign
		}
	}
}

func splitMapEntryKey(key string) (field, entry string, ok bool) {
	if !strings.HasSuffix(key, "}") {
		return "", "", false
	}
	open := strings.Index(key, "{")
	if open <= 0 {
		return "", "", false
	}
	return key[:open], key[open+1 : len(key)-1], true
}

func wireToMap(doc document.WireDocument) map[string]any {
	m := make(map[string]any, len(doc.Fields)+3)
	for k, v := range doc.Fields {
		m[k] = v
	}
	m[document.WireFieldID] = doc.ID
	if len(doc.FieldTypes) > 0 {
		m[document.WireFieldTypes] = doc.FieldTypes
	}
	if doc.CreateTimestamp > 0 {
		m[document.WireFieldCreateTimestamp] = doc.CreateTimestamp
	}
	return m
}

func mapToWire(m map[string]any, fields []string) document.WireDocument {
	doc := document.WireDocument{Fields: make(map[string]any)}

	if id, ok := m[document.WireFieldID].(string); ok {
		doc.ID = id
	}
	if ts, ok := m[document.WireFieldCreateTimestamp].(float64); ok {
		doc.CreateTimestamp = ts
	}
	if types, ok := m[document.WireFieldTypes].(map[string]any); ok {
		doc.FieldTypes = make(map[string]string, len(types))
		for k, v := range types {
			if s, ok := v.(string); ok {
				doc.FieldTypes[k] = s
			}
		}
	}

	var keep map[string]bool
	if fields != nil {
		keep = make(map[string]bool, len(fields))
		for _, f := range fields {
			keep[f] = true
		}
	}
	for k, v := range m {
		switch k {
		case document.WireFieldID, document.WireFieldTypes, document.WireFieldCreateTimestamp:
			continue
		}
		if keep != nil && !keep[k] {
			continue
		}
		doc.Fields[k] = v
	}
	return doc
}
