package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion Prometheus metrics.
var (
	DocumentsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexivec",
			Name:      "documents_processed_total",
			Help:      "Total documents processed per batch operation outcome",
		},
		[]string{"index", "operation", "outcome"}, // operation: "add" / "update" / "delete_all"
	)

	SchemaFieldsAddedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexivec",
			Name:      "schema_fields_added_total",
			Help:      "Total fields registered through schema growth",
		},
		[]string{"index", "category"}, // category: "lexical" / "tensor" / "string_array"
	)

	SchemaFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexivec",
			Name:      "schema_flushes_total",
			Help:      "Total schema flushes per result",
		},
		[]string{"index", "result"}, // "ok" / "error" / "noop"
	)

	VectoriseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexivec",
			Name:      "vectorise_cache_total",
			Help:      "Vectorisation cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	VectoriseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexivec",
			Name:      "vectorise_duration_seconds",
			Help:      "Time spent vectorising one document's tensor fields",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"modality"},
	)
)

var ingestionMetricsRegistered bool

// RegisterIngestionMetrics registers Prometheus ingestion metrics. Must be called once from main.
func RegisterIngestionMetrics() {
	if ingestionMetricsRegistered {
		return
	}
	prometheus.MustRegister(DocumentsProcessedTotal)
	prometheus.MustRegister(SchemaFieldsAddedTotal)
	prometheus.MustRegister(SchemaFlushesTotal)
	prometheus.MustRegister(VectoriseCacheTotal)
	prometheus.MustRegister(VectoriseDuration)
	ingestionMetricsRegistered = true
}
