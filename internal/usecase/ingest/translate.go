package ingest

import (
	"sort"
	"strings"

	"github.com/lexivec/lexivec/internal/db"
	"github.com/lexivec/lexivec/internal/domain/batch"
)

// Translator converts backing-store batch results and locally-detected
// failures into the order-preserving API response.
type Translator struct {
	indexName string
}

// NewTranslator creates a translator for one index.
func NewTranslator(indexName string) *Translator {
	return &Translator{indexName: indexName}
}

// Translate maps every store item to an outcome, then re-inserts local
// failures at their original batch positions. A nil store result means every
// document failed before submission.
func (t *Translator) Translate(result *db.BatchResult, local []batch.IndexedItem) *batch.Response {
	resp := &batch.Response{IndexName: t.indexName, Items: []batch.Item{}}

	if result == nil {
		resp.Errors = true
	} else {
		resp.Errors = result.Errors
		for _, item := range result.Responses {
			resp.Items = append(resp.Items, translateItem(item))
		}
	}

	if len(local) > 0 {
		resp.Errors = true
		insertLocalItems(resp, local)
	}
	return resp
}

// translateItem maps one store status/message pair to the API taxonomy.
func translateItem(item db.ItemResponse) batch.Item {
	id := stripStoreKey(item.ID)

	switch {
	case item.Status == db.StatusOK:
		return batch.NewItem(id, 200, "")
	case item.Status == db.StatusNotFound:
		return batch.NewErrorItem(id, 404, "Document does not exist in the index")
	case item.Status == db.StatusPreconditionFailed:
		return batch.NewErrorItem(id, 400,
			"Document cannot be updated: a field's value type does not match its stored type")
	case item.Status == 429:
		return batch.NewErrorItem(id, 429, "Document store received too many requests. Please try again later")
	case item.Status == db.StatusOutOfResources:
		return batch.NewErrorItem(id, 400, "Document store is out of memory or disk space")
	case item.Status == 400 && strings.Contains(item.Message, "could not parse field"):
		return batch.NewErrorItem(id, 400, "The document contains invalid characters in the fields. Original error: "+item.Message)
	default:
		return batch.NewErrorItem(id, 500, "Document store returned an unexpected internal error")
	}
}

// stripStoreKey recovers the caller-facing document ID from the
// store-internal key ("<prefix><schema>::<id>").
func stripStoreKey(key string) string {
	if n := strings.LastIndex(key, "::"); n >= 0 {
		return key[n+2:]
	}
	return key
}

// insertLocalItems splices locally-detected failures into the response at
// their recorded batch positions, shifting later items.
func insertLocalItems(resp *batch.Response, local []batch.IndexedItem) {
	sorted := append([]batch.IndexedItem(nil), local...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	for _, li := range sorted {
		pos := li.Index
		if pos > len(resp.Items) {
			pos = len(resp.Items)
		}
		resp.Items = append(resp.Items, batch.Item{})
		copy(resp.Items[pos+1:], resp.Items[pos:])
		resp.Items[pos] = li.Item
	}
}
