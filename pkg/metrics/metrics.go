// Package metrics documents the Prometheus metrics exported by etagger.
// All metrics are defined in their respective packages (etag, store) via
// promauto to keep packages independent of each other.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer the etagger packages register with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the Prometheus gatherer serving Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns an http.Handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// ETag Metrics (pkg/etag):
//   - etag_decisions_total{action} (Counter): Decisions by action (etag, not_modified, skip)
//   - etag_skips_total{reason} (Counter): Responses passed through without an ETag, by rule
//     (error, disabled, method, status, absent, unsupported)
//   - etag_serialization_errors_total (Counter): Structured payloads that failed canonical serialization
//   - etag_fingerprint_duration_seconds{algorithm} (Histogram): Serialization plus hashing time
//
// Store Metrics (pkg/store):
//   - etag_store_operations_total{operation, result} (Counter): Document store operations
//     (get, put, delete / ok, miss, error)
//
// Example Prometheus Queries:
//
//   # 304 Rate
//   sum(rate(etag_decisions_total{action="not_modified"}[5m])) /
//   sum(rate(etag_decisions_total{action!="skip"}[5m]))
//
//   # Skipped responses by rule
//   sum by (reason) (rate(etag_skips_total[5m]))
//
//   # P95 Fingerprint Latency
//   histogram_quantile(0.95, rate(etag_fingerprint_duration_seconds_bucket[5m]))
//
//   # Store Miss Rate
//   rate(etag_store_operations_total{operation="get", result="miss"}[5m])
