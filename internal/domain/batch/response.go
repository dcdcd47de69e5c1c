// Package batch holds the per-document outcome and batch response shapes
// shared by the add and partial-update paths.
package batch

// Item is the outcome of processing one document, ordered to match the
// original request position, not the backing store's return ordering.
type Item struct {
	ID      string `json:"_id"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewItem creates a successful outcome.
func NewItem(id string, status int, message string) Item {
	return Item{ID: id, Status: status, Message: message}
}

// NewErrorItem creates a failed outcome with the error surfaced to the caller.
func NewErrorItem(id string, status int, message string) Item {
	return Item{ID: id, Status: status, Message: message, Error: message}
}

// IndexedItem pins a locally-detected failure to its original batch index so
// the translator can re-insert it at the exact position.
type IndexedItem struct {
	Index int
	Item  Item
}

// Response is the batch response shared by add and update operations.
type Response struct {
	Errors           bool    `json:"errors"`
	IndexName        string  `json:"indexName"`
	Items            []Item  `json:"items"`
	ProcessingTimeMs float64 `json:"processingTimeMs"`
}
