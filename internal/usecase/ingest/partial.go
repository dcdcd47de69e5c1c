package ingest

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lexivec/lexivec/internal/domain"
	"github.com/lexivec/lexivec/internal/domain/batch"
	"github.com/lexivec/lexivec/internal/domain/document"
	"github.com/lexivec/lexivec/internal/domain/index"
)

// updateEntry is one retained update document with its position in the
// response ordering (positions run over all retained documents, failed ones
// included, so the translator can splice failures back in).
type updateEntry struct {
	pos int
	id  string
	doc map[string]any
}

// Processor deduplicates a partial-update batch and detects map-bearing
// documents. Map detection runs only in semi-structured mode, where map
// fields are stored flattened and need merge-on-update handling.
type Processor struct {
	semiMode bool
	logger   *zap.Logger
}

// NewProcessor creates a partial-update preprocessor.
func NewProcessor(semiMode bool, logger *zap.Logger) *Processor {
	return &Processor{semiMode: semiMode, logger: logger}
}

// Process scans the batch from last to first: the last occurrence of each
// identifier wins and earlier duplicates are discarded silently. Documents
// without a usable identifier pass through unfiltered. The retained list
// keeps the original relative order.
func (p *Processor) Process(
	docs []map[string]any,
) (entries []updateEntry, mapBearing map[string]bool, local []batch.IndexedItem) {
	mapBearing = make(map[string]bool)
	seen := make(map[string]bool, len(docs))

	type scanned struct {
		id      string
		doc     map[string]any
		failure *domain.DocumentError
	}
	var kept []scanned

	for n := len(docs) - 1; n >= 0; n-- {
		doc := docs[n]
		id, present, err := document.ExtractID(doc)
		usable := present && err == nil

		if usable {
			if seen[id] {
				continue
			}
			seen[id] = true
		} else {
			p.logger.Debug("Update document without usable identifier passes dedup unfiltered",
				zap.Int("position", n))
		}

		s := scanned{id: id, doc: doc}
		if err != nil {
			s.failure = domain.NewDocumentError(id, err.Error())
		} else if p.semiMode && usable {
			s.failure = p.detectMaps(doc, id, mapBearing)
		}
		kept = append(kept, s)
	}

	// restore original relative order
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	for pos, s := range kept {
		if s.failure != nil {
			local = append(local, batch.IndexedItem{
				Index: pos,
				Item:  batch.NewErrorItem(s.failure.ID, s.failure.Status, s.failure.Message),
			})
			continue
		}
		entries = append(entries, updateEntry{pos: pos, id: s.id, doc: s.doc})
	}
	return entries, mapBearing, local
}

// detectMaps inspects every map-valued field. An empty map flags the document
// as map-bearing (the update must clear the stored map); a fully numeric map
// flags it and stops the scan; a non-numeric value fails the document.
func (p *Processor) detectMaps(
	doc map[string]any, id string, mapBearing map[string]bool,
) *domain.DocumentError {
	for _, name := range sortedFieldNames(doc) {
		m, ok := doc[name].(map[string]any)
		if !ok {
			continue
		}
		if len(m) == 0 {
			mapBearing[id] = true
			continue
		}
		for key, value := range m {
			if _, _, numeric := document.AsNumber(value); !numeric {
				return domain.NewDocumentError(id,
					fmt.Sprintf("map field %s contains non-numeric value for key %s", name, key))
			}
		}
		mapBearing[id] = true
		return nil
	}
	return nil
}

// updateBuilder turns retained update documents into wire-level partial
// updates against a known schema. Partial updates never grow the schema.
type updateBuilder struct {
	idx       *index.Index
	filterMax int
	// snapshots holds the stored state of map-bearing documents, fetched in
	// one batched read: flattened numeric maps plus the creation timestamp.
	snapshots map[string]document.WireDocument
}

func newUpdateBuilder(
	idx *index.Index, filterMax int, snapshots map[string]document.WireDocument,
) *updateBuilder {
	return &updateBuilder{idx: idx, filterMax: filterMax, snapshots: snapshots}
}

// build constructs one PartialDocument per entry. Per-document failures are
// recorded at the entry's position and excluded from the returned batch.
func (b *updateBuilder) build(
	entries []updateEntry,
) ([]document.PartialDocument, []batch.IndexedItem) {
	updates := make([]document.PartialDocument, 0, len(entries))
	var local []batch.IndexedItem

	for _, e := range entries {
		upd, err := b.buildOne(e)
		if err != nil {
			var docErr *domain.DocumentError
			if !errors.As(err, &docErr) {
				docErr = domain.NewDocumentError(e.id, err.Error())
			}
			local = append(local, batch.IndexedItem{
				Index: e.pos,
				Item:  batch.NewErrorItem(docErr.ID, docErr.Status, docErr.Message),
			})
			continue
		}
		updates = append(updates, upd)
	}
	return updates, local
}

func (b *updateBuilder) buildOne(e updateEntry) (document.PartialDocument, error) {
	if e.id == "" {
		return document.PartialDocument{}, domain.NewDocumentError("",
			"a document _id is required for partial updates")
	}

	upd := document.PartialDocument{
		ID:         e.id,
		Fields:     make(map[string]document.UpdateStatement),
		FieldTypes: make(map[string]string),
	}
	if snap, ok := b.snapshots[e.id]; ok {
		upd.CreateTimestamp = snap.CreateTimestamp
	}

	for _, name := range sortedFieldNames(e.doc) {
		if name == document.IDField {
			continue
		}
		if err := document.ValidateFieldName(name); err != nil {
			return document.PartialDocument{}, domain.NewDocumentError(e.id, err.Error())
		}

		value := e.doc[name]
		switch v := value.(type) {
		case string:
			if err := b.buildStringField(&upd, name, v); err != nil {
				return document.PartialDocument{}, err
			}
		case bool:
			upd.Fields[document.MapEntryKey(document.WireFieldBoolFields, name)] = document.AssignStatement(v)
			setFieldType(&upd, name, document.TypeBool)
		case map[string]any:
			if err := b.buildMapField(&upd, name, v); err != nil {
				return document.PartialDocument{}, err
			}
		default:
			if arr, ok := document.AsStringArray(value); ok {
				if err := b.buildStringArrayField(&upd, name, arr); err != nil {
					return document.PartialDocument{}, err
				}
				break
			}
			if num, isInt, ok := document.AsNumber(value); ok {
				b.buildNumericField(&upd, name, num, isInt)
				break
			}
			return document.PartialDocument{}, domain.NewDocumentError(e.id,
				fmt.Sprintf("field %s has unsupported value type %T", name, value))
		}
	}
	return upd, nil
}

func (b *updateBuilder) buildStringField(upd *document.PartialDocument, name, value string) error {
	if _, isTensor := b.idx.TensorFieldMap()[name]; isTensor {
		return domain.NewDocumentError(upd.ID,
			fmt.Sprintf("tensor field %s cannot be partially updated", name))
	}
	f, ok := b.idx.FieldMap()[name]
	if !ok {
		return domain.NewDocumentError(upd.ID,
			fmt.Sprintf("field %s is not part of the index schema; partial updates cannot add fields", name))
	}

	upd.Fields[f.LexicalName()] = document.AssignStatement(value)
	setFieldType(upd, name, document.TypeString)

	shortKey := document.MapEntryKey(document.WireFieldShortStrings, name)
	if len(value) <= b.filterMax {
		upd.Fields[shortKey] = document.AssignStatement(value)
	} else {
		upd.Fields[shortKey] = document.RemoveStatement()
	}
	return nil
}

func (b *updateBuilder) buildStringArrayField(
	upd *document.PartialDocument, name string, arr []string,
) error {
	f, ok := b.idx.StringArrayFieldMap()[name]
	if !ok {
		return domain.NewDocumentError(upd.ID,
			fmt.Sprintf("field %s is not part of the index schema; partial updates cannot add fields", name))
	}
	// arrays replace wholesale, unlike maps
	upd.Fields[f.ArrayName()] = document.AssignStatement(arr)
	setFieldType(upd, name, document.TypeStringArray)
	return nil
}

func (b *updateBuilder) buildNumericField(
	upd *document.PartialDocument, name string, num float64, isInt bool,
) {
	if isInt {
		upd.Fields[document.MapEntryKey(document.WireFieldIntFields, name)] = document.AssignStatement(num)
		setFieldType(upd, name, document.TypeInt)
	} else {
		upd.Fields[document.MapEntryKey(document.WireFieldFloatFields, name)] = document.AssignStatement(num)
		setFieldType(upd, name, document.TypeFloat)
	}
}

// buildMapField merges incoming map entries into the stored flattened maps.
// Entries not mentioned in the update stay intact; an empty incoming map
// removes every stored entry of the field instead.
func (b *updateBuilder) buildMapField(
	upd *document.PartialDocument, name string, m map[string]any,
) error {
	if len(m) == 0 {
		b.clearStoredMap(upd, name)
		return nil
	}

	for _, key := range sortedFieldNames(m) {
		num, isInt, ok := document.AsNumber(m[key])
		if !ok {
			return domain.NewDocumentError(upd.ID,
				fmt.Sprintf("map field %s contains non-numeric value for key %s", name, key))
		}
		flat := name + "." + key
		if isInt {
			upd.Fields[document.MapEntryKey(document.WireFieldIntFields, flat)] = document.AssignStatement(num)
			setFieldType(upd, flat, document.TypeIntMap)
		} else {
			upd.Fields[document.MapEntryKey(document.WireFieldFloatFields, flat)] = document.AssignStatement(num)
			setFieldType(upd, flat, document.TypeFloatMap)
		}
	}
	return nil
}

// clearStoredMap emits remove statements for every stored flattened entry of
// the field, using the snapshot fetched for map-bearing documents. The type
// metadata of cleared entries is removed alongside the values.
func (b *updateBuilder) clearStoredMap(upd *document.PartialDocument, name string) {
	snap, ok := b.snapshots[upd.ID]
	if !ok {
		return
	}
	prefix := name + "."
	for _, wireField := range []string{document.WireFieldIntFields, document.WireFieldFloatFields} {
		stored, ok := snap.Fields[wireField].(map[string]any)
		if !ok {
			continue
		}
		for key := range stored {
			if strings.HasPrefix(key, prefix) {
				upd.Fields[document.MapEntryKey(wireField, key)] = document.RemoveStatement()
				upd.Fields[document.MapEntryKey(document.WireFieldTypes, key)] = document.RemoveStatement()
			}
		}
	}
}

// setFieldType records the update's type for a field twice: in FieldTypes for
// the store's conditional-write precondition, and as a statement against the
// stored field_types map so the metadata stays current for later updates.
func setFieldType(upd *document.PartialDocument, name string, t document.FieldType) {
	upd.FieldTypes[name] = string(t)
	upd.Fields[document.MapEntryKey(document.WireFieldTypes, name)] = document.AssignStatement(string(t))
}
