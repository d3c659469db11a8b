// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Subscription metrics
	SignaturesObserved prometheus.Counter
	WSReconnects       prometheus.Counter

	// Extraction metrics
	BuysExtracted     prometheus.Counter
	EventsSuppressed  *prometheus.CounterVec
	ExtractionLatency prometheus.Histogram

	// Alert metrics
	AlertsSent   prometheus.Counter
	AlertsFailed prometheus.Counter

	// Enrichment metrics
	EnrichmentCacheHits   prometheus.Counter
	EnrichmentCacheMisses prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "buy_watcher"
	}

	return &Metrics{
		SignaturesObserved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "signatures_observed_total",
			Help:      "Total number of log notifications received for the tracked mint",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),

		BuysExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "buys_extracted_total",
			Help:      "Total number of buy events extracted from transactions",
		}),
		EventsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "events_suppressed_total",
			Help:      "Total number of events suppressed by reason",
		}, []string{"reason"}),
		ExtractionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "latency_seconds",
			Help:      "Time from log notification to extraction result in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		AlertsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "alerts_sent_total",
			Help:      "Total number of alerts delivered to the channel",
		}),
		AlertsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "alerts_failed_total",
			Help:      "Total number of alert delivery failures",
		}),

		EnrichmentCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "cache_hits_total",
			Help:      "Total number of enrichment requests served from cache",
		}),
		EnrichmentCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "cache_misses_total",
			Help:      "Total number of enrichment requests requiring a provider fetch",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSignatureObserved increments the signatures observed counter.
func RecordSignatureObserved() {
	DefaultMetrics.SignaturesObserved.Inc()
}

// RecordReconnect increments the WebSocket reconnect counter.
func RecordReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordBuyExtracted increments the buys extracted counter.
func RecordBuyExtracted() {
	DefaultMetrics.BuysExtracted.Inc()
}

// RecordSuppressed records a suppressed event by reason.
func RecordSuppressed(reason string) {
	DefaultMetrics.EventsSuppressed.WithLabelValues(reason).Inc()
}

// RecordExtractionLatency records the notification-to-extraction latency.
func RecordExtractionLatency(seconds float64) {
	DefaultMetrics.ExtractionLatency.Observe(seconds)
}

// RecordAlertSent increments the alerts sent counter.
func RecordAlertSent() {
	DefaultMetrics.AlertsSent.Inc()
}

// RecordAlertFailed increments the alerts failed counter.
func RecordAlertFailed() {
	DefaultMetrics.AlertsFailed.Inc()
}

// RecordEnrichmentCache records a cache hit or miss.
func RecordEnrichmentCache(hit bool) {
	if hit {
		DefaultMetrics.EnrichmentCacheHits.Inc()
	} else {
		DefaultMetrics.EnrichmentCacheMisses.Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
