// Package index holds the index schema aggregate: the per-index field
// collections, their derived internal names and the cached lookup views.
package index

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Type distinguishes index schema variants.
type Type string

const (
	// TypeStructured has a fixed field set defined at creation.
	TypeStructured Type = "structured"
	// TypeSemiStructured starts empty and grows append-only as fields are observed.
	TypeSemiStructured Type = "semiStructured"
	// TypeUnstructured is schema-less at the API level, backed by a semi-structured schema.
	TypeUnstructured Type = "unstructured"
)

// IsValid checks if the index type is supported.
func (t Type) IsValid() bool {
	return t == TypeStructured || t == TypeSemiStructured || t == TypeUnstructured
}

// PartialUpdateSupportVersion is the compatibility version that introduced
// partial updates and on-the-fly string-array field growth.
const PartialUpdateSupportVersion = "2.16.0"

// Index is the schema of a single index. It is a mutable builder scoped to
// one batch: field collections grow append-only and the derived lookup maps
// are rebuilt lazily after each growth. Concurrent batches must not share an
// Index instance.
type Index struct {
	name          string
	indexType     Type
	compatVersion string
	version       int

	lexicalFields     []Field
	tensorFields      []TensorField
	stringArrayFields []StringArrayField

	// Derived views, built lazily and dropped on every mutation.
	fieldMap            map[string]Field
	tensorFieldMap      map[string]TensorField
	stringArrayFieldMap map[string]StringArrayField
}

// New validates and creates an empty Index.
func New(name string, t Type, compatVersion string) (*Index, error) {
	if name == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if !nameRegex.MatchString(name) {
		return nil, fmt.Errorf("index name must be alphanumeric with underscores and hyphens")
	}
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid index type: %q", t)
	}
	if _, err := parseVersion(compatVersion); err != nil {
		return nil, err
	}
	return &Index{name: name, indexType: t, compatVersion: compatVersion, version: 1}, nil
}

// Reconstruct creates an Index from persisted state without validation.
func Reconstruct(
	name string, t Type, compatVersion string, version int,
	lexical []Field, tensor []TensorField, stringArray []StringArrayField,
) *Index {
	return &Index{
		name:              name,
		indexType:         t,
		compatVersion:     compatVersion,
		version:           version,
		lexicalFields:     lexical,
		tensorFields:      tensor,
		stringArrayFields: stringArray,
	}
}

// Clone returns an independent copy. Each batch works on its own instance,
// so cached schemas must be cloned before being handed out.
func (i *Index) Clone() *Index {
	return Reconstruct(
		i.name, i.indexType, i.compatVersion, i.version,
		append([]Field(nil), i.lexicalFields...),
		append([]TensorField(nil), i.tensorFields...),
		append([]StringArrayField(nil), i.stringArrayFields...),
	)
}

// Name returns the index name.
func (i *Index) Name() string { return i.name }

// Type returns the index schema variant.
func (i *Index) Type() Type { return i.indexType }

// SchemaName returns the backing-store collection name for this index.
func (i *Index) SchemaName() string { return i.name }

// CompatVersion returns the recorded compatibility version.
func (i *Index) CompatVersion() string { return i.compatVersion }

// Version returns the monotonically increasing schema version tag.
func (i *Index) Version() int { return i.version }

// BumpVersion increments the schema version tag.
func (i *Index) BumpVersion() { i.version++ }

// SupportsPartialUpdates reports whether the index compatibility version is
// at or above the version that introduced partial-update support.
func (i *Index) SupportsPartialUpdates() bool {
	return CompareVersions(i.compatVersion, PartialUpdateSupportVersion) >= 0
}

// LexicalFields returns the lexical field collection in registration order.
func (i *Index) LexicalFields() []Field { return i.lexicalFields }

// TensorFields returns the tensor field collection in registration order.
func (i *Index) TensorFields() []TensorField { return i.tensorFields }

// StringArrayFields returns the string-array field collection in registration order.
func (i *Index) StringArrayFields() []StringArrayField { return i.stringArrayFields }

// FieldMap returns the name → lexical field view, building it on first use.
func (i *Index) FieldMap() map[string]Field {
	if i.fieldMap == nil {
		i.fieldMap = make(map[string]Field, len(i.lexicalFields))
		for _, f := range i.lexicalFields {
			i.fieldMap[f.Name()] = f
		}
	}
	return i.fieldMap
}

// TensorFieldMap returns the name → tensor field view, building it on first use.
func (i *Index) TensorFieldMap() map[string]TensorField {
	if i.tensorFieldMap == nil {
		i.tensorFieldMap = make(map[string]TensorField, len(i.tensorFields))
		for _, f := range i.tensorFields {
			i.tensorFieldMap[f.Name()] = f
		}
	}
	return i.tensorFieldMap
}

// StringArrayFieldMap returns the name → string-array field view, building it on first use.
func (i *Index) StringArrayFieldMap() map[string]StringArrayField {
	if i.stringArrayFieldMap == nil {
		i.stringArrayFieldMap = make(map[string]StringArrayField, len(i.stringArrayFields))
		for _, f := range i.stringArrayFields {
			i.stringArrayFieldMap[f.Name()] = f
		}
	}
	return i.stringArrayFieldMap
}

// ClearCache drops all derived lookup views. Must be called after every
// field registration so later documents in the same batch see the growth.
func (i *Index) ClearCache() {
	i.fieldMap = nil
	i.tensorFieldMap = nil
	i.stringArrayFieldMap = nil
}

// AppendLexicalField appends a lexical field and invalidates derived views.
// Growth is append-only; callers check for presence first.
func (i *Index) AppendLexicalField(f Field) {
	i.lexicalFields = append(i.lexicalFields, f)
	i.ClearCache()
}

// AppendTensorField appends a tensor field and invalidates derived views.
func (i *Index) AppendTensorField(f TensorField) {
	i.tensorFields = append(i.tensorFields, f)
	i.ClearCache()
}

// AppendStringArrayField appends a string-array field and invalidates derived views.
func (i *Index) AppendStringArrayField(f StringArrayField) {
	i.stringArrayFields = append(i.stringArrayFields, f)
	i.ClearCache()
}

// CompareVersions compares two major.minor.patch version strings.
// Returns -1, 0 or 1. Unparseable segments compare as zero.
func CompareVersions(a, b string) int {
	av := mustParseVersion(a)
	bv := mustParseVersion(b)
	for n := 0; n < 3; n++ {
		if av[n] != bv[n] {
			if av[n] < bv[n] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func parseVersion(v string) ([3]int, error) {
	var out [3]int
	parts := strings.SplitN(v, ".", 3)
	if len(parts) == 0 || parts[0] == "" {
		return out, fmt.Errorf("invalid version %q", v)
	}
	for n, p := range parts {
		num, err := strconv.Atoi(p)
		if err != nil {
			return out, fmt.Errorf("invalid version %q: %w", v, err)
		}
		out[n] = num
	}
	return out, nil
}

func mustParseVersion(v string) [3]int {
	out, err := parseVersion(v)
	if err != nil {
		return [3]int{}
	}
	return out
}
