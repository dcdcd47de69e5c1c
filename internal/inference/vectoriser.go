package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lexivec/lexivec/internal/domain"
)

// Vectoriser turns a slice of content chunks into one vector per chunk.
type Vectoriser interface {
	Vectorise(ctx context.Context, content []string, modality domain.Modality) ([][]float32, error)
}

// SingleVectoriser calls the model once per batch for batchable modalities
// (text, image) and once per chunk otherwise (audio, video), since those
// models reject multi-input requests.
type SingleVectoriser struct {
	embedder domain.Embedder
}

// NewSingleVectoriser wraps a model client.
func NewSingleVectoriser(embedder domain.Embedder) *SingleVectoriser {
	return &SingleVectoriser{embedder: embedder}
}

// Vectorise embeds content. Model failures are terminal for the whole batch
// and surface as a ModelError.
func (v *SingleVectoriser) Vectorise(
	ctx context.Context, content []string, modality domain.Modality,
) ([][]float32, error) {
	if len(content) == 0 {
		return nil, nil
	}

	if modality.IsBatchable() {
		vecs, err := v.embedder.Embed(ctx, content, modality)
		if err != nil {
			return nil, &domain.ModelError{Reason: err}
		}
		if len(vecs) != len(content) {
			return nil, &domain.ModelError{
				Reason: fmt.Errorf("model returned %d vectors for %d inputs", len(vecs), len(content)),
			}
		}
		return vecs, nil
	}

	vecs := make([][]float32, 0, len(content))
	for _, chunk := range content {
		out, err := v.embedder.Embed(ctx, []string{chunk}, modality)
		if err != nil {
			return nil, &domain.ModelError{Reason: err}
		}
		if len(out) != 1 {
			return nil, &domain.ModelError{
				Reason: fmt.Errorf("model returned %d vectors for 1 input", len(out)),
			}
		}
		vecs = append(vecs, out[0])
	}
	return vecs, nil
}

// BatchCachingVectoriser reuses vectors across calls by content: a later call
// over any subset of already-embedded chunks is served from the cache, and
// repeated chunks reach the model only once. Keys are content-addressed under
// a namespace prefix.
type BatchCachingVectoriser struct {
	inner      Vectoriser
	keyPrefix  string
	cache      map[string][]float32
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// NewBatchCachingVectoriser creates the caching decorator. seed holds vectors
// recovered from existing documents, keyed with CacheKey; cacheTotal is a
// counter vec with label "result" ("hit"/"miss"), passed explicitly.
func NewBatchCachingVectoriser(
	inner Vectoriser,
	keyPrefix string,
	seed map[string][]float32,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *BatchCachingVectoriser {
	cache := make(map[string][]float32, len(seed))
	for k, v := range seed {
		cache[k] = v
	}
	return &BatchCachingVectoriser{
		inner:      inner,
		keyPrefix:  keyPrefix,
		cache:      cache,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// CacheKey builds the content-addressed cache key.
func CacheKey(prefix, content string) string {
	sum := sha256.Sum256([]byte(content))
	return prefix + "_" + hex.EncodeToString(sum[:])
}

// Vectorise returns cached vectors where present and embeds the distinct
// remainder in one inner call, preserving input order. Chunks repeated within
// the call share a single embedding.
func (v *BatchCachingVectoriser) Vectorise(
	ctx context.Context, content []string, modality domain.Modality,
) ([][]float32, error) {
	if len(content) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(content))
	var missing []string
	missingPos := make(map[string][]int)

	for n, chunk := range content {
		key := CacheKey(v.keyPrefix, chunk)
		if vec, ok := v.cache[key]; ok {
			results[n] = vec
			v.incCache("hit")
			continue
		}
		v.incCache("miss")
		if len(missingPos[key]) == 0 {
			missing = append(missing, chunk)
		}
		missingPos[key] = append(missingPos[key], n)
	}

	if len(missing) == 0 {
		return results, nil
	}

	vecs, err := v.inner.Vectorise(ctx, missing, modality)
	if err != nil {
		return nil, err
	}
	for i, chunk := range missing {
		key := CacheKey(v.keyPrefix, chunk)
		v.cache[key] = vecs[i]
		for _, n := range missingPos[key] {
			results[n] = vecs[i]
		}
	}
	return results, nil
}

func (v *BatchCachingVectoriser) incCache(result string) {
	if v.cacheTotal != nil {
		v.cacheTotal.WithLabelValues(result).Inc()
	}
}
