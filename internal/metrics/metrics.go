// Package metrics defines the Prometheus collectors of the service and the
// helpers the other layers use to record into them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store operation outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeAbsent = "absent"
	OutcomeError  = "error"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "users_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "users_api_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "users_api_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	// Store metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "users_api_store_operation_duration_seconds",
			Help:    "Duration of record store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	DatabaseConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "users_api_database_connected",
			Help: "1 when the connection manager holds a database handle, 0 otherwise",
		},
	)

	// Cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "users_api_cache_lookups_total",
			Help: "User cache lookups by result",
		},
		[]string{"result"},
	)

	// Rate limiting metrics
	RateLimitRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "users_api_rate_limit_rejects_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
	)
)

// ObserveStoreOperation records how long a store operation took.
func ObserveStoreOperation(operation, outcome string, start time.Time) {
	StoreOperationDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

// SetDatabaseConnected updates the connection gauge.
func SetDatabaseConnected(connected bool) {
	if connected {
		DatabaseConnected.Set(1)
		return
	}
	DatabaseConnected.Set(0)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
