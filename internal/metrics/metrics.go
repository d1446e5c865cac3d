// Package metrics provides Prometheus metrics for the Topical service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CatalogOperationsTotal tracks catalog operations by resource and status
	CatalogOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "topical",
			Subsystem: "catalog",
			Name:      "operations_total",
			Help:      "Total number of catalog operations by resource, operation and status",
		},
		[]string{"resource", "operation", "status"},
	)

	// CatalogOperationDuration tracks catalog operation duration in seconds
	CatalogOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "topical",
			Subsystem: "catalog",
			Name:      "operation_duration_seconds",
			Help:      "Duration of catalog operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"resource", "operation"},
	)

	// DocumentWritesTotal tracks document store writes by status
	DocumentWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "topical",
			Subsystem: "documents",
			Name:      "writes_total",
			Help:      "Total number of document store writes by status",
		},
		[]string{"status"},
	)

	// CleanupsTotal tracks collection cleanups by outcome
	CleanupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "topical",
			Subsystem: "lifecycle",
			Name:      "cleanups_total",
			Help:      "Total number of collection cleanups by outcome",
		},
		[]string{"kind", "outcome"},
	)

	// CleanupRetries tracks cleanup retry attempts
	CleanupRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "topical",
			Subsystem: "lifecycle",
			Name:      "cleanup_retries_total",
			Help:      "Total number of cleanup retry attempts",
		},
	)

	// JournalRecordsPending tracks records awaiting replay
	JournalRecordsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "topical",
			Subsystem: "lifecycle",
			Name:      "journal_records_pending",
			Help:      "Number of journaled cleanup records awaiting replay",
		},
	)

	// OrphansReclaimed tracks orphaned collections dropped by the reconciler
	OrphansReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "topical",
			Subsystem: "lifecycle",
			Name:      "orphans_reclaimed_total",
			Help:      "Total number of orphaned collections dropped by the reconciler",
		},
	)

	// HTTPRequestsTotal tracks inbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "topical",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	// HTTPRequestDuration tracks inbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "topical",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of inbound HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "path"},
	)
)

// RecordCatalogOperation records a catalog operation metric
func RecordCatalogOperation(resource, operation, status string, durationSeconds float64) {
	CatalogOperationsTotal.WithLabelValues(resource, operation, status).Inc()
	CatalogOperationDuration.WithLabelValues(resource, operation).Observe(durationSeconds)
}

// RecordDocumentWrite records a document store write
func RecordDocumentWrite(status string) {
	DocumentWritesTotal.WithLabelValues(status).Inc()
}

// RecordCleanup records a collection cleanup outcome
func RecordCleanup(kind, outcome string) {
	CleanupsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordHTTPRequest records an inbound HTTP request metric
func RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}
