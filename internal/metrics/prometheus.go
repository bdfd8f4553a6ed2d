package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncDuration observes whole sync runs.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "portalsync_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// SyncRuns counts finished runs by outcome (success, failed, aborted).
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portalsync_sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"outcome"},
	)

	// SyncRecords counts reconciled records by kind and outcome (inserted, updated, failed).
	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portalsync_records_total",
			Help: "Total number of records reconciled by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// SyncLastSuccess is the unix time of the last fully successful run.
	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portalsync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful sync run",
		},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "portalsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerTransitions counts breaker state changes.
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portalsync_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordSyncRun records the outcome of a finished run.
func RecordSyncRun(duration time.Duration, success, aborted bool) {
	SyncDuration.Observe(duration.Seconds())
	switch {
	case aborted:
		SyncRuns.WithLabelValues("aborted").Inc()
	case success:
		SyncRuns.WithLabelValues("success").Inc()
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	default:
		SyncRuns.WithLabelValues("failed").Inc()
	}
}

// RecordBreakerTransition mirrors a circuit breaker state change.
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

func breakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
