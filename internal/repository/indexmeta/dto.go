package indexmeta

import (
	"encoding/json"
	"fmt"

	"github.com/lexivec/lexivec/internal/domain/index"
)

type lexicalRow struct {
	Name        string `json:"name"`
	LexicalName string `json:"lexical_name"`
}

type tensorRow struct {
	Name           string `json:"name"`
	ChunksName     string `json:"chunks_name"`
	EmbeddingsName string `json:"embeddings_name"`
}

type stringArrayRow struct {
	Name      string `json:"name"`
	ArrayName string `json:"array_name"`
}

// indexRow is the JSON-serializable representation of an index schema.
type indexRow struct {
	Name              string           `json:"name"`
	Type              string           `json:"type"`
	CompatVersion     string           `json:"compat_version"`
	Version           int              `json:"version"`
	LexicalFields     []lexicalRow     `json:"lexical_fields"`
	TensorFields      []tensorRow      `json:"tensor_fields"`
	StringArrayFields []stringArrayRow `json:"string_array_fields"`
}

// indexToJSON serializes an index schema for KV storage.
func indexToJSON(idx *index.Index) ([]byte, error) {
	row := indexRow{
		Name:          idx.Name(),
		Type:          string(idx.Type()),
		CompatVersion: idx.CompatVersion(),
		Version:       idx.Version(),
	}
	for _, f := range idx.LexicalFields() {
		row.LexicalFields = append(row.LexicalFields, lexicalRow{Name: f.Name(), LexicalName: f.LexicalName()})
	}
	for _, f := range idx.TensorFields() {
		row.TensorFields = append(row.TensorFields, tensorRow{
			Name: f.Name(), ChunksName: f.ChunksName(), EmbeddingsName: f.EmbeddingsName(),
		})
	}
	for _, f := range idx.StringArrayFields() {
		row.StringArrayFields = append(row.StringArrayFields, stringArrayRow{Name: f.Name(), ArrayName: f.ArrayName()})
	}

	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("marshal index %s: %w", idx.Name(), err)
	}
	return data, nil
}

// indexFromJSON hydrates an index schema from stored bytes.
func indexFromJSON(data []byte) (*index.Index, error) {
	var row indexRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("unmarshal index: %w", err)
	}

	lexical := make([]index.Field, len(row.LexicalFields))
	for n, r := range row.LexicalFields {
		lexical[n] = index.ReconstructLexicalField(r.Name, r.LexicalName)
	}
	tensor := make([]index.TensorField, len(row.TensorFields))
	for n, r := range row.TensorFields {
		tensor[n] = index.ReconstructTensorField(r.Name, r.ChunksName, r.EmbeddingsName)
	}
	stringArray := make([]index.StringArrayField, len(row.StringArrayFields))
	for n, r := range row.StringArrayFields {
		stringArray[n] = index.ReconstructStringArrayField(r.Name, r.ArrayName)
	}

	version := row.Version
	if version == 0 {
		version = 1
	}
	return index.Reconstruct(
		row.Name, index.Type(row.Type), row.CompatVersion, version, lexical, tensor, stringArray,
	), nil
}
