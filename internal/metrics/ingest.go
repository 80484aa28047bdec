package metrics

import "github.com/prometheus/client_golang/prometheus"

// Crawl and ingestion Prometheus metrics.
var (
	CrawlRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tendermatch",
			Name:      "crawl_records_total",
			Help:      "Tender records produced by crawlers",
		},
		[]string{"source", "provenance"},
	)

	CrawlDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tendermatch",
			Name:      "crawl_dropped_total",
			Help:      "Upstream records dropped during normalization",
		},
		[]string{"source"},
	)

	CrawlFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tendermatch",
			Name:      "crawl_fallbacks_total",
			Help:      "Crawls that fell back to synthetic generation",
		},
		[]string{"source"},
	)

	CrawlDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tendermatch",
			Name:      "crawl_duration_seconds",
			Help:      "Crawl duration per source in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	IngestUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tendermatch",
			Name:      "ingest_upserts_total",
			Help:      "Tender records written to the vector store",
		},
		[]string{"source", "status"}, // status: "ok" / "skipped"
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers crawl and ingestion metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(CrawlRecordsTotal)
	prometheus.MustRegister(CrawlDroppedTotal)
	prometheus.MustRegister(CrawlFallbacksTotal)
	prometheus.MustRegister(CrawlDuration)
	prometheus.MustRegister(IngestUpsertsTotal)
	ingestMetricsRegistered = true
}
