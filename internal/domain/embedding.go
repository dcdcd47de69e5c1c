package domain

import "context"

// Modality classifies content handed to the embedding capability.
type Modality string

// Supported content modalities.
const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
	ModalityVideo Modality = "video"
)

// IsBatchable reports whether chunks of this modality may be stacked into a
// single embedding call. Audio and video clips have heterogeneous internal
// shapes and must be submitted one call per chunk.
func (m Modality) IsBatchable() bool {
	return m == ModalityText || m == ModalityImage
}

// Embedder is the embedding capability consumed by the ingestion pipeline.
// It computes one vector per content item; output order matches input order.
type Embedder interface {
	Embed(ctx context.Context, content []string, modality Modality) ([][]float32, error)
}
