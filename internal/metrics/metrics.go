// Package metrics registers the dispatch-core Prometheus series and
// implements dispatcher.Recorder so the dispatcher can emit counters and
// histograms without importing prometheus directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsTotal counts Transport invocations per endpoint and outcome.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_attempts_total",
			Help: "Transport invocations per endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	// RetriesTotal counts dispatch retries per endpoint that triggered one.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_retries_total",
			Help: "Retries triggered per endpoint",
		},
		[]string{"endpoint"},
	)

	// AttemptLatency tracks per-endpoint attempt latency.
	AttemptLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_attempt_duration_seconds",
			Help:    "Per-attempt latency by endpoint",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// EndpointHealthy exposes the Health Registry's current verdict.
	EndpointHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_endpoint_healthy",
			Help: "1 if the endpoint currently passes the freshness check, else 0",
		},
		[]string{"endpoint"},
	)
)

// Recorder adapts the package-level series to dispatcher.Recorder.
type Recorder struct{}

// ObserveAttempt records one Transport outcome.
func (Recorder) ObserveAttempt(endpoint string, success bool, elapsed time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	AttemptsTotal.WithLabelValues(endpoint, outcome).Inc()
	if success {
		AttemptLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	}
}

// ObserveRetry records one retry decision for endpoint.
func (Recorder) ObserveRetry(endpoint string) {
	RetriesTotal.WithLabelValues(endpoint).Inc()
}

// SetHealthy updates the health gauge for endpoint.
func (Recorder) SetHealthy(endpoint string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	EndpointHealthy.WithLabelValues(endpoint).Set(v)
}
