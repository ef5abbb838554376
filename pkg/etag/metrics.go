package etag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Decisions tracks hook decisions by action ("skip", "etag", "not_modified")
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etag_decisions_total",
			Help: "Total number of ETag hook decisions by action",
		},
		[]string{"action"},
	)

	// Skips tracks responses left untouched, by the filter rule that excluded them
	Skips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etag_skips_total",
			Help: "Total number of responses skipped by the eligibility filter",
		},
		[]string{"reason"},
	)

	// SerializationErrors tracks structured payloads that could not be canonicalized
	SerializationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etag_serialization_errors_total",
			Help: "Total number of structured payloads that failed to serialize",
		},
	)

	// FingerprintDuration tracks time spent computing fingerprints
	FingerprintDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etag_fingerprint_duration_seconds",
			Help:    "Time spent computing ETag fingerprints in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		},
		[]string{"algorithm"},
	)
)
