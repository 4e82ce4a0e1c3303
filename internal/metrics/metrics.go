// Package metrics exposes Prometheus collectors for the diary service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts handled requests by method, route template and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diary_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "diary_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path", "status"},
	)
)

// Diary metrics
var (
	EntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "diary_entries",
			Help: "Number of diary entries currently stored",
		},
	)

	// EntryOperationsTotal counts entry operations by kind and outcome.
	EntryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diary_entry_operations_total",
			Help: "Total number of diary entry operations",
		},
		[]string{"operation", "result"},
	)

	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diary_backups_total",
			Help: "Total number of snapshot backups attempted",
		},
		[]string{"trigger", "result"},
	)
)

// Result labels
const (
	ResultSuccess  = "success"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// RecordEntryOperation counts one entry operation with its outcome label.
func RecordEntryOperation(operation, result string) {
	EntryOperationsTotal.WithLabelValues(operation, result).Inc()
}

// SetEntriesTotal sets the stored entry gauge, typically from a count query.
func SetEntriesTotal(n int64) {
	EntriesTotal.Set(float64(n))
}

func RecordBackup(trigger string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	BackupsTotal.WithLabelValues(trigger, result).Inc()
}
