// Package metrics exposes the Prometheus registry shared by the cache client,
// the store backends and the reference cache server.
// All metrics are defined in their respective packages (cacheapi, store,
// server) to maintain modularity and avoid circular dependencies.
//
// This package provides the /metrics handler and a reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Client Metrics (pkg/cacheapi):
//   - zato_cache_client_requests_total{command, status} (Counter): Requests by command and HTTP status
//   - zato_cache_client_request_duration_seconds{command} (Histogram): Request duration by command
//   - zato_cache_client_errors_total{class} (Counter): Errors by class (client, server, network, parse)
//   - zato_cache_client_retries_total{error_class} (Counter): Retry attempts by error class
//   - zato_cache_client_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - zato_cache_client_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Store Metrics (pkg/store):
//   - zato_cache_store_hits_total{backend} (Counter): Reads that found a live value
//   - zato_cache_store_misses_total{backend} (Counter): Reads of missing or expired keys
//   - zato_cache_store_errors_total{backend, operation} (Counter): Backend failures
//
// Server Metrics (pkg/server):
//   - zato_cache_server_requests_total{method, status} (Counter): Requests served
//   - zato_cache_server_request_duration_seconds{method} (Histogram): Handling duration
//
// Example Prometheus Queries:
//
//   # Store Hit Rate
//   sum(rate(zato_cache_store_hits_total[5m])) /
//   (sum(rate(zato_cache_store_hits_total[5m])) + sum(rate(zato_cache_store_misses_total[5m])))
//
//   # Client Error Rate
//   rate(zato_cache_client_errors_total[5m])
//
//   # P95 Server Latency
//   histogram_quantile(0.95, rate(zato_cache_server_request_duration_seconds_bucket[5m]))
