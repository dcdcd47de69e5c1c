package ingest

import "github.com/lexivec/lexivec/internal/domain/index"

// tensorFieldContent is the per-field intermediate state of tensor
// processing: the ordered chunk sequence and, once vectorised, one embedding
// per chunk. Owned by the document being processed and discarded after the
// wire document is built.
type tensorFieldContent struct {
	field      index.TensorField
	chunks     []string
	embeddings [][]float32
}
