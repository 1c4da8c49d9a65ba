// Package metrics provides the Prometheus registry and handler for the case
// desk. All metrics are defined in their respective packages (client, cache,
// pagination, coordinator, token) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the case desk.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - casedesk_requests_total{endpoint, status} (Counter): Backend requests by endpoint and HTTP status
//   - casedesk_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - casedesk_errors_total{class} (Counter): Errors by class (auth, client, server, network)
//   - casedesk_assignments_total{outcome} (Counter): Assigned cases by outcome (succeeded, failed, error)
//
// Retry Metrics (pkg/client):
//   - casedesk_retries_total{error_class} (Counter): Retry attempts by error class
//   - casedesk_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - casedesk_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - casedesk_cache_hits_total{layer} (Counter): Cache hits by layer (memory, redis)
//   - casedesk_cache_misses_total{layer} (Counter): Cache misses by layer
//   - casedesk_cache_evictions_total{reason} (Counter): Entries dropped by capacity or expiry
//   - casedesk_cache_entries{layer} (Gauge): Current number of cached result sets
//   - casedesk_cache_errors_total{operation} (Counter): Shared cache operation errors
//
// Fetch Metrics (pkg/pagination, pkg/coordinator):
//   - casedesk_pages_fetched_total{endpoint} (Counter): Pages fetched by endpoint
//   - casedesk_fetch_duration_seconds{endpoint} (Histogram): Duration of complete multi-page fetches
//   - casedesk_fetch_aborted_total{endpoint} (Counter): Multi-page fetches stopped by the caller
//   - casedesk_inflight_fetches (Gauge): Distinct fetches currently running
//   - casedesk_dedup_joins_total (Counter): Requests that joined an identical running fetch
//
// Token Metrics (pkg/token):
//   - casedesk_token_saves_total (Counter): SSO tokens saved
//   - casedesk_token_invalidations_total (Counter): SSO tokens rejected by the backend
//
// Example Prometheus Queries:
//
//   # Memory cache hit rate
//   sum(rate(casedesk_cache_hits_total{layer="memory"}[5m])) /
//   (sum(rate(casedesk_cache_hits_total{layer="memory"}[5m])) + sum(rate(casedesk_cache_misses_total{layer="memory"}[5m])))
//
//   # Share of list requests served by joining a running fetch
//   rate(casedesk_dedup_joins_total[5m])
//
//   # Expired tokens
//   increase(casedesk_token_invalidations_total[1h]) > 0
//
