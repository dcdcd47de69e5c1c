// Package document holds the caller-facing input document helpers and the
// wire representation handed to the backing document store.
package document

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lexivec/lexivec/internal/domain/index"
)

// IDField is the reserved key carrying the caller-supplied identifier.
const IDField = "_id"

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)

// FieldType disambiguates dynamically typed storage in semi-structured
// indexes. Stored per field in the wire document's field-type metadata.
type FieldType string

// Field type metadata values.
const (
	TypeString      FieldType = "string"
	TypeBool        FieldType = "bool"
	TypeInt         FieldType = "int"
	TypeFloat       FieldType = "float"
	TypeIntMap      FieldType = "int_map_entry"
	TypeFloatMap    FieldType = "float_map_entry"
	TypeStringArray FieldType = "string_array"
	TypeTensor      FieldType = "tensor"
)

// ValidateID checks a caller-supplied document identifier.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("document ID cannot be empty")
	}
	if len(id) > 256 {
		return fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("document ID %q must be alphanumeric with underscores, hyphens and dots", id)
	}
	return nil
}

// ExtractID pulls the identifier out of a raw input document.
// Returns present=false when the document has no _id key at all.
func ExtractID(doc map[string]any) (id string, present bool, err error) {
	raw, ok := doc[IDField]
	if !ok {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", true, fmt.Errorf("document ID must be a string, got %T", raw)
	}
	if err := ValidateID(s); err != nil {
		return "", true, err
	}
	return s, true, nil
}

// ValidateFieldName checks a user-facing field name.
func ValidateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if strings.HasPrefix(name, index.ReservedPrefix) {
		return fmt.Errorf("field name %q uses the reserved prefix %q", name, index.ReservedPrefix)
	}
	return nil
}

// AsStringArray reports whether v is a list whose elements are all strings,
// returning the converted slice. An empty list counts as a string array.
func AsStringArray(v any) ([]string, bool) {
	list, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss, true
		}
		return nil, false
	}
	out := make([]string, len(list))
	for n, elem := range list {
		s, ok := elem.(string)
		if !ok {
			return nil, false
		}
		out[n] = s
	}
	return out, true
}

// AsNumber reports whether v is a numeric value, returning it as float64 and
// whether it carries an integral type. JSON-decoded numbers arrive as
// float64; integral float64 values are still treated as floats, matching the
// wire decoder's typing.
func AsNumber(v any) (val float64, isInt bool, ok bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true, true
	case int32:
		return float64(n), true, true
	case int64:
		return float64(n), true, true
	case float32:
		return float64(n), false, true
	case float64:
		return n, false, true
	default:
		return 0, false, false
	}
}
