package metrics

import "github.com/prometheus/client_golang/prometheus"

// Matching Prometheus metrics.
var (
	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tendermatch",
			Name:      "recommendations_total",
			Help:      "Recommendation requests served",
		},
		[]string{"status"},
	)

	RecommendationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tendermatch",
			Name:      "recommendation_duration_seconds",
			Help:      "End-to-end recommendation latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	RecommendationPoolSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tendermatch",
			Name:      "recommendation_pool_size",
			Help:      "Candidate pool size after the vector search stage",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	ExplanationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tendermatch",
			Name:      "explanations_total",
			Help:      "Reasoning-gateway explanation calls",
		},
		[]string{"status"}, // "ok" / "error" / "skipped"
	)
)

var matchMetricsRegistered bool

// RegisterMatchMetrics registers matching metrics. Must be called once from main.
func RegisterMatchMetrics() {
	if matchMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecommendationsTotal)
	prometheus.MustRegister(RecommendationDuration)
	prometheus.MustRegister(RecommendationPoolSize)
	prometheus.MustRegister(ExplanationsTotal)
	matchMetricsRegistered = true
}
