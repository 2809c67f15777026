// Package metrics provides the Prometheus registry and HTTP exposition for the VK client.
// All metrics are defined in their respective packages (client, cache, pagination)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the VK client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the counterpart of Registry used for exposition.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every metric registered in Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - vk_requests_total{method, status} (Counter): Calls by method and HTTP status,
//     or one of cached, api_error, decode_error, network_error
//   - vk_request_duration_seconds{method} (Histogram): Round-trip duration by method
//   - vk_errors_total{class} (Counter): Errors by class (client, server, api, network, decode)
//
// Cache Metrics (pkg/cache):
//   - vk_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - vk_cache_misses_total (Counter): Cache misses
//   - vk_cache_size_bytes{layer="redis"} (Gauge): Bytes written to the cache
//   - vk_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pagination Metrics (pkg/pagination):
//   - vk_pagination_pages_total{method} (Counter): Pages fetched
//   - vk_pagination_items_total{method} (Counter): Items merged into results
//   - vk_pagination_duration_seconds{method} (Histogram): Duration of complete paginated calls
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(vk_cache_hits_total[5m])) /
//   (sum(rate(vk_cache_hits_total[5m])) + sum(rate(vk_cache_misses_total[5m])))
//
//   # API Error Rate
//   rate(vk_errors_total{class="api"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(vk_request_duration_seconds_bucket[5m]))
//
//   # Average Pages per Paginated Call
//   rate(vk_pagination_pages_total[5m]) / rate(vk_pagination_duration_seconds_count[5m])
