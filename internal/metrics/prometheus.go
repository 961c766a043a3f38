package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Snapshot refresh metrics
	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionscache_refresh_total",
			Help: "Total number of snapshot refresh attempts per collection",
		},
		[]string{"collection", "status"}, // status: success|error
	)

	RefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optionscache_refresh_duration_seconds",
			Help:    "Duration of a full snapshot refresh in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	SnapshotRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "optionscache_snapshot_rows",
			Help: "Number of rows in the published snapshot",
		},
		[]string{"collection"},
	)

	SnapshotVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "optionscache_snapshot_version",
			Help: "Version of the published snapshot",
		},
	)

	DuplicateRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionscache_duplicate_rows_total",
			Help: "Rows dropped at refresh because their identity was already loaded",
		},
		[]string{"collection"},
	)

	// Reference price metrics
	PriceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionscache_price_fetch_total",
			Help: "Live reference-price lookups",
		},
		[]string{"source", "status"}, // status: success|error|fallback
	)

	PriceFetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optionscache_price_fetch_latency_seconds",
			Help:    "Live reference-price lookup latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"source"},
	)

	// Ingestion event metrics
	IngestionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionscache_ingestion_events_total",
			Help: "Ingestion events consumed from Kafka",
		},
		[]string{"status"}, // status: refreshed|ignored|error
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RefreshTotal)
		prometheus.MustRegister(RefreshDuration)
		prometheus.MustRegister(SnapshotRows)
		prometheus.MustRegister(SnapshotVersion)
		prometheus.MustRegister(DuplicateRows)
		prometheus.MustRegister(PriceFetches)
		prometheus.MustRegister(PriceFetchLatency)
		prometheus.MustRegister(IngestionEvents)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRefresh records the outcome of loading one collection.
func RecordRefresh(collection string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RefreshTotal.WithLabelValues(collection, status).Inc()
}

// RecordPriceFetch records a live-price lookup. fallback marks a lookup whose
// result was replaced by the fixed fallback price.
func RecordPriceFetch(source string, latency time.Duration, err error, fallback bool) {
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case fallback:
		status = "fallback"
	}

	PriceFetches.WithLabelValues(source, status).Inc()
	PriceFetchLatency.WithLabelValues(source).Observe(latency.Seconds())
}
