package document

import "github.com/lexivec/lexivec/internal/domain/index"

// Fixed internal field names in the wire document layout. Dynamically typed
// values are grouped into per-type maps so a semi-structured schema can store
// any field without a declared column.
const (
	WireFieldID              = index.ReservedPrefix + "id"
	WireFieldIntFields       = index.ReservedPrefix + "int_fields"
	WireFieldFloatFields     = index.ReservedPrefix + "float_fields"
	WireFieldBoolFields      = index.ReservedPrefix + "bool_fields"
	WireFieldShortStrings    = index.ReservedPrefix + "short_string_fields"
	WireFieldStringArray     = index.ReservedPrefix + "string_array"
	WireFieldTypes           = index.ReservedPrefix + "field_types"
	WireFieldCreateTimestamp = index.ReservedPrefix + "create_timestamp"
)

// WireDocument is the backing-store representation of one document.
// Immutable after construction.
type WireDocument struct {
	ID              string
	Fields          map[string]any
	FieldTypes      map[string]string
	CreateTimestamp float64
}

// UpdateStatement is one wire-level partial-update operation on a field.
// Exactly one of Assign / Remove is set. The field key may address a whole
// internal field ("lexivec__lexical_title") or a single entry of a map field
// ("lexivec__int_fields{price.min}").
type UpdateStatement struct {
	Assign any
	Remove bool
}

// AssignStatement creates an assign update statement.
func AssignStatement(v any) UpdateStatement { return UpdateStatement{Assign: v} }

// RemoveStatement creates a remove update statement.
func RemoveStatement() UpdateStatement { return UpdateStatement{Remove: true} }

// MapEntryKey builds the update-statement key addressing one entry of an
// internal map field.
func MapEntryKey(field, entry string) string {
	return field + "{" + entry + "}"
}

// PartialDocument is the wire-level partial update for one document.
type PartialDocument struct {
	ID     string
	Fields map[string]UpdateStatement
	// FieldTypes carries the updated type metadata for every touched user
	// field. The store uses it as the conditional-write precondition: a
	// stored type that differs for the same field fails the item.
	FieldTypes map[string]string
	// CreateTimestamp preserves the stored creation time, when known.
	CreateTimestamp float64
}
