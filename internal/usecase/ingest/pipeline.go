package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexivec/lexivec/internal/domain"
	"github.com/lexivec/lexivec/internal/domain/batch"
	"github.com/lexivec/lexivec/internal/domain/document"
	"github.com/lexivec/lexivec/internal/domain/index"
	"github.com/lexivec/lexivec/internal/inference"
	"github.com/lexivec/lexivec/internal/metrics"
	"github.com/lexivec/lexivec/internal/usecase/schema"
)

// pipeline converts input documents into wire documents for one batch.
//
// The schema manager is nil for structured indexes: there an unknown field is
// a per-document validation failure instead of a growth event. Semi-structured
// and unstructured indexes share the growing variant.
type pipeline struct {
	idx        *index.Index
	mgr        *schema.Manager
	vectoriser inference.Vectoriser
	chunker    *inference.Chunker
	filterMax  int
	logger     *zap.Logger
}

// processBatch runs every document through the pipeline. Failed documents are
// excluded from the returned wire batch and recorded at their batch position
// so the translator can re-insert them.
func (p *pipeline) processBatch(
	ctx context.Context, docs []map[string]any, tensorFields []string,
) ([]document.WireDocument, []batch.IndexedItem) {
	tensorSet := make(map[string]bool, len(tensorFields))
	for _, f := range tensorFields {
		tensorSet[f] = true
	}

	wireDocs := make([]document.WireDocument, 0, len(docs))
	var local []batch.IndexedItem

	for n, raw := range docs {
		wire, err := p.processDocument(ctx, raw, tensorSet)
		if err != nil {
			var docErr *domain.DocumentError
			if !errors.As(err, &docErr) {
				docErr = &domain.DocumentError{Status: 400, Message: err.Error(), Cause: err}
			}
			local = append(local, batch.IndexedItem{
				Index: n,
				Item:  batch.NewErrorItem(docErr.ID, docErr.Status, docErr.Message),
			})
			continue
		}
		wireDocs = append(wireDocs, wire)
	}
	return wireDocs, local
}

// processDocument validates one input document, routes tensor content through
// the vectoriser and builds the wire document. Any returned error is scoped
// to this document.
func (p *pipeline) processDocument(
	ctx context.Context, raw map[string]any, tensorFields map[string]bool,
) (document.WireDocument, error) {
	id, present, err := document.ExtractID(raw)
	if err != nil {
		return document.WireDocument{}, domain.NewDocumentError("", err.Error())
	}
	if !present {
		id = uuid.NewString()
	}

	wire := document.WireDocument{
		ID:              id,
		Fields:          make(map[string]any),
		FieldTypes:      make(map[string]string),
		CreateTimestamp: float64(time.Now().UnixMilli()) / 1000.0,
	}
	ints := make(map[string]float64)
	floats := make(map[string]float64)
	bools := make(map[string]bool)
	shorts := make(map[string]string)
	legacyArrays := make(map[string][]string)
	var tensors []tensorFieldContent

	for _, name := range sortedFieldNames(raw) {
		if name == document.IDField {
			continue
		}
		if err := document.ValidateFieldName(name); err != nil {
			return document.WireDocument{}, domain.NewDocumentError(id, err.Error())
		}

		value := raw[name]
		switch v := value.(type) {
		case string:
			tc, err := p.processStringField(id, name, v, tensorFields, &wire, shorts)
			if err != nil {
				return document.WireDocument{}, err
			}
			if tc != nil {
				tensors = append(tensors, *tc)
			}
		case bool:
			bools[name] = v
			wire.FieldTypes[name] = string(document.TypeBool)
		case map[string]any:
			if err := p.processMapField(id, name, v, ints, floats, &wire); err != nil {
				return document.WireDocument{}, err
			}
		default:
			if arr, ok := document.AsStringArray(value); ok {
				if err := p.processStringArrayField(id, name, arr, &wire, legacyArrays); err != nil {
					return document.WireDocument{}, err
				}
				break
			}
			if num, isInt, ok := document.AsNumber(value); ok {
				if isInt {
					ints[name] = num
					wire.FieldTypes[name] = string(document.TypeInt)
				} else {
					floats[name] = num
					wire.FieldTypes[name] = string(document.TypeFloat)
				}
				break
			}
			return document.WireDocument{}, domain.NewDocumentError(id,
				fmt.Sprintf("field %s has unsupported value type %T", name, value))
		}
	}

	if err := p.vectoriseDocument(ctx, id, tensors, &wire); err != nil {
		return document.WireDocument{}, err
	}

	if len(ints) > 0 {
		wire.Fields[document.WireFieldIntFields] = ints
	}
	if len(floats) > 0 {
		wire.Fields[document.WireFieldFloatFields] = floats
	}
	if len(bools) > 0 {
		wire.Fields[document.WireFieldBoolFields] = bools
	}
	if len(shorts) > 0 {
		wire.Fields[document.WireFieldShortStrings] = shorts
	}
	if len(legacyArrays) > 0 {
		wire.Fields[document.WireFieldStringArray] = legacyArrays
	}
	return wire, nil
}

// processStringField stores the lexical copy (plus the short-string filter
// copy) and, for declared tensor fields, returns the chunked content.
func (p *pipeline) processStringField(
	id, name, value string,
	tensorFields map[string]bool,
	wire *document.WireDocument,
	shorts map[string]string,
) (*tensorFieldContent, error) {
	isTensor := p.isTensorField(name, tensorFields)

	lexical, known := p.idx.FieldMap()[name]
	if !known {
		if p.mgr == nil {
			if !isTensor {
				return nil, domain.NewDocumentError(id,
					fmt.Sprintf("field %s is not part of the index schema", name))
			}
		} else {
			if err := p.mgr.RegisterLexicalField(name); err != nil {
				return nil, p.growthError(id, err)
			}
			lexical = p.idx.FieldMap()[name]
			known = true
		}
	}

	if known {
		wire.Fields[lexical.LexicalName()] = value
		wire.FieldTypes[name] = string(document.TypeString)
		if len(value) <= p.filterMax {
			shorts[name] = value
		}
	}

	if !isTensor {
		return nil, nil
	}

	tf, ok := p.idx.TensorFieldMap()[name]
	if !ok {
		if p.mgr == nil {
			return nil, domain.NewDocumentError(id,
				fmt.Sprintf("field %s is not a tensor field of the index schema", name))
		}
		if err := p.mgr.RegisterTensorField(name); err != nil {
			return nil, p.growthError(id, err)
		}
		tf = p.idx.TensorFieldMap()[name]
	}
	wire.FieldTypes[name] = string(document.TypeTensor)
	return &tensorFieldContent{field: tf, chunks: p.chunker.Split(value)}, nil
}

// processStringArrayField stores a list-of-strings field, registering it as a
// schema field only when the index's compatibility version supports on-the-fly
// array fields; older indexes take the legacy combined-map path.
func (p *pipeline) processStringArrayField(
	id, name string, arr []string,
	wire *document.WireDocument,
	legacyArrays map[string][]string,
) error {
	wire.FieldTypes[name] = string(document.TypeStringArray)

	f, known := p.idx.StringArrayFieldMap()[name]
	if known {
		wire.Fields[f.ArrayName()] = arr
		return nil
	}

	if p.mgr == nil {
		return domain.NewDocumentError(id,
			fmt.Sprintf("field %s is not part of the index schema", name))
	}
	if !p.idx.SupportsPartialUpdates() {
		legacyArrays[name] = arr
		return nil
	}
	if err := p.mgr.RegisterStringArrayField(name); err != nil {
		return p.growthError(id, err)
	}
	wire.Fields[p.idx.StringArrayFieldMap()[name].ArrayName()] = arr
	return nil
}

// processMapField flattens a map of string→number into the per-type numeric
// maps as "field.key" entries. A non-numeric value fails the document.
func (p *pipeline) processMapField(
	id, name string, m map[string]any,
	ints, floats map[string]float64,
	wire *document.WireDocument,
) error {
	for _, key := range sortedFieldNames(m) {
		num, isInt, ok := document.AsNumber(m[key])
		if !ok {
			return domain.NewDocumentError(id,
				fmt.Sprintf("map field %s contains non-numeric value for key %s", name, key))
		}
		flat := name + "." + key
		if isInt {
			ints[flat] = num
			wire.FieldTypes[flat] = string(document.TypeIntMap)
		} else {
			floats[flat] = num
			wire.FieldTypes[flat] = string(document.TypeFloatMap)
		}
	}
	return nil
}

// vectoriseDocument embeds all tensor chunks of one document in one pass
// through the batch-scoped cache and distributes the vectors back per field.
// A model failure fails this document only.
func (p *pipeline) vectoriseDocument(
	ctx context.Context, id string, tensors []tensorFieldContent, wire *document.WireDocument,
) error {
	if len(tensors) == 0 {
		return nil
	}

	var allChunks []string
	for _, tc := range tensors {
		allChunks = append(allChunks, tc.chunks...)
	}
	if len(allChunks) == 0 {
		return nil
	}

	start := time.Now()
	vecs, err := p.vectoriser.Vectorise(ctx, allChunks, domain.ModalityText)
	if err != nil {
		return &domain.DocumentError{ID: id, Status: 400, Message: err.Error(), Cause: err}
	}
	metrics.VectoriseDuration.WithLabelValues(string(domain.ModalityText)).
		Observe(time.Since(start).Seconds())

	offset := 0
	for n := range tensors {
		count := len(tensors[n].chunks)
		tensors[n].embeddings = vecs[offset : offset+count]
		offset += count

		wire.Fields[tensors[n].field.ChunksName()] = tensors[n].chunks
		wire.Fields[tensors[n].field.EmbeddingsName()] = tensors[n].embeddings
	}
	return nil
}

func (p *pipeline) isTensorField(name string, tensorFields map[string]bool) bool {
	if p.mgr == nil {
		_, ok := p.idx.TensorFieldMap()[name]
		return ok
	}
	return tensorFields[name]
}

// growthError converts a schema registration failure into a document-scoped
// error. Capacity rejections fail only the document that forced the growth.
func (p *pipeline) growthError(id string, err error) error {
	return &domain.DocumentError{ID: id, Status: 400, Message: err.Error(), Cause: err}
}

func sortedFieldNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
