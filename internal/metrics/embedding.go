package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding provider Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexivec",
			Name:      "embedding_requests_total",
			Help:      "Total embedding API requests",
		},
		[]string{"provider", "model", "status"}, // status: "success" / "error"
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexivec",
			Name:      "embedding_errors_total",
			Help:      "Total embedding API errors by type",
		},
		[]string{"provider", "model", "error_type"}, // "api_error" / "empty_response" / "count_mismatch"
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexivec",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding API request duration",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexivec",
			Name:      "embedding_tokens_total",
			Help:      "Total tokens consumed by embedding requests",
		},
		[]string{"provider", "model", "type"}, // type: "prompt" / "total"
	)
)

var embeddingMetricsRegistered bool

// RegisterEmbeddingMetrics registers Prometheus embedding metrics. Must be called once from main.
func RegisterEmbeddingMetrics() {
	if embeddingMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingErrorsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingTokensTotal)
	embeddingMetricsRegistered = true
}
