package index

// Internal field name prefixes used in the backing store schema. Every
// derived name is deterministic: prefix + the user-facing field name.
const (
	// ReservedPrefix marks internal field names; user fields must not start with it.
	ReservedPrefix = "lexivec__"

	LexicalFieldPrefix     = ReservedPrefix + "lexical_"
	ChunksFieldPrefix      = ReservedPrefix + "chunks_"
	EmbeddingsFieldPrefix  = ReservedPrefix + "embeddings_"
	StringArrayFieldPrefix = ReservedPrefix + "string_array_"
)

// Field is a lexical (keyword-searchable text) field.
type Field struct {
	name        string
	lexicalName string
}

// NewLexicalField creates a lexical field with its derived internal name.
func NewLexicalField(name string) Field {
	return Field{name: name, lexicalName: LexicalFieldPrefix + name}
}

// ReconstructLexicalField creates a Field from stored internal names.
func ReconstructLexicalField(name, lexicalName string) Field {
	return Field{name: name, lexicalName: lexicalName}
}

// Name returns the user-facing field name.
func (f Field) Name() string { return f.name }

// LexicalName returns the internal lexical index field name.
func (f Field) LexicalName() string { return f.lexicalName }

// TensorField is a field whose content is chunked and embedded.
type TensorField struct {
	name           string
	chunksName     string
	embeddingsName string
}

// NewTensorField creates a tensor field with derived chunk and embedding names.
func NewTensorField(name string) TensorField {
	return TensorField{
		name:           name,
		chunksName:     ChunksFieldPrefix + name,
		embeddingsName: EmbeddingsFieldPrefix + name,
	}
}

// ReconstructTensorField creates a TensorField from stored internal names.
func ReconstructTensorField(name, chunksName, embeddingsName string) TensorField {
	return TensorField{name: name, chunksName: chunksName, embeddingsName: embeddingsName}
}

// Name returns the user-facing field name.
func (f TensorField) Name() string { return f.name }

// ChunksName returns the internal name of the chunk storage field.
func (f TensorField) ChunksName() string { return f.chunksName }

// EmbeddingsName returns the internal name of the embedding storage field.
func (f TensorField) EmbeddingsName() string { return f.embeddingsName }

// StringArrayField is a filterable list-of-strings field.
type StringArrayField struct {
	name      string
	arrayName string
}

// NewStringArrayField creates a string-array field with its derived internal name.
func NewStringArrayField(name string) StringArrayField {
	return StringArrayField{name: name, arrayName: StringArrayFieldPrefix + name}
}

// ReconstructStringArrayField creates a StringArrayField from stored internal names.
func ReconstructStringArrayField(name, arrayName string) StringArrayField {
	return StringArrayField{name: name, arrayName: arrayName}
}

// Name returns the user-facing field name.
func (f StringArrayField) Name() string { return f.name }

// ArrayName returns the internal array storage field name.
func (f StringArrayField) ArrayName() string { return f.arrayName }
