// Package metrics provides Prometheus metrics for the derivative service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generate outcomes.
const (
	OutcomeCreated = "created"
	OutcomeRaced   = "raced"
	OutcomeInvalid = "invalid_source"
	OutcomeMkdir   = "mkdir_error"
	OutcomeWrite   = "write_error"
	OutcomeApply   = "transform_error"
)

var (
	// GenerateTotal counts derivative generations by outcome.
	GenerateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "derivatives",
			Name:      "generate_total",
			Help:      "Total number of derivative generations",
		},
		[]string{"outcome"},
	)

	// GenerateDuration measures transform plus write time.
	GenerateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "derivatives",
			Name:      "generate_duration_seconds",
			Help:      "Duration of derivative generations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	// TokensTotal counts token operations.
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "derivatives",
			Name:      "tokens_total",
			Help:      "Total number of token encodes and decodes",
		},
		[]string{"operation", "status"},
	)

	// ServedTotal counts derivative requests by whether the file already existed.
	ServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "derivatives",
			Name:      "served_total",
			Help:      "Total number of derivative requests served",
		},
		[]string{"cache"},
	)
)

// RecordGenerate records one Generate call.
func RecordGenerate(outcome, format string, seconds float64) {
	GenerateTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeCreated || outcome == OutcomeRaced {
		GenerateDuration.WithLabelValues(format).Observe(seconds)
	}
}

// RecordToken records a token encode or decode.
func RecordToken(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	TokensTotal.WithLabelValues(operation, status).Inc()
}

// RecordServed records whether a request hit an existing derivative.
func RecordServed(hit bool) {
	cache := "miss"
	if hit {
		cache = "hit"
	}
	ServedTotal.WithLabelValues(cache).Inc()
}
