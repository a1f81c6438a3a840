// Package metrics exposes the Prometheus collectors of a tagpages run.
// All metrics are defined in their respective packages (client, progress,
// status) via promauto to avoid circular dependencies.
//
// This package provides the HTTP handler and documentation for all of them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by tagpages.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back everything registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// NewMux returns a mux serving /metrics and /health.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - tagpages_requests_total{status} (Counter): Page requests by HTTP status ("network_error" when no response arrived)
//   - tagpages_request_duration_seconds (Histogram): Page request duration
//   - tagpages_errors_total{kind} (Counter): Fetch errors by kind (transport, deserialization, empty)
//
// Retry Metrics (pkg/client):
//   - tagpages_retries_total{kind} (Counter): Retries by error kind
//   - tagpages_retry_exhausted_total{kind} (Counter): Pages that failed their single retry
//
// Progress Metrics (pkg/progress):
//   - tagpages_pages_total{outcome} (Counter): Pages by outcome (succeeded, failed, skipped)
//
// Status Metrics (pkg/status):
//   - tagpages_status_publish_errors_total (Counter): Failed status publishes to Redis
//
// Example Prometheus Queries:
//
//   # Pages per second
//   rate(tagpages_pages_total{outcome="succeeded"}[1m])
//
//   # Failure ratio
//   sum(rate(tagpages_pages_total{outcome="failed"}[5m])) /
//   sum(rate(tagpages_pages_total{outcome!="skipped"}[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(tagpages_request_duration_seconds_bucket[5m]))
