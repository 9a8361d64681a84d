// Package metrics registers the Prometheus instrumentation the
// orchestrator records alongside its business logic: batch outcomes,
// applied deltas, ack failures, dropped watcher events, backoff retries,
// and apply latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter/gauge/histogram the pipeline records. Zero
// value is not usable; construct with New.
type Metrics struct {
	BatchesByOutcome     *prometheus.CounterVec
	DeltasApplied        prometheus.Counter
	AckFailures          prometheus.Counter
	DroppedWatcherEvents prometheus.Counter
	BackoffRetries       prometheus.Counter
	ApplyLatency         prometheus.Histogram
}

// New constructs a Metrics instance and registers every collector on reg.
// reg must not be nil; callers that don't want metrics should not
// construct a Metrics at all rather than passing prometheus.NewRegistry()
// and discarding it.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		BatchesByOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotreload",
			Name:      "batches_total",
			Help:      "Number of update batches classified by outcome.",
		}, []string{"outcome"}),
		DeltasApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hotreload",
			Name:      "deltas_applied_total",
			Help:      "Number of individual module deltas successfully applied.",
		}),
		AckFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hotreload",
			Name:      "ack_failures_total",
			Help:      "Number of batches that failed to receive a successful ack.",
		}),
		DroppedWatcherEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hotreload",
			Name:      "dropped_watcher_events_total",
			Help:      "Number of file-change events dropped by the caller before reaching the orchestrator.",
		}),
		BackoffRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hotreload",
			Name:      "file_read_backoff_retries_total",
			Help:      "Number of file-read retry attempts due to a locked or not-yet-flushed file.",
		}),
		ApplyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hotreload",
			Name:      "apply_latency_seconds",
			Help:      "Latency of Applier.Apply calls, from write to ack.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.BatchesByOutcome, m.DeltasApplied, m.AckFailures, m.DroppedWatcherEvents, m.BackoffRetries, m.ApplyLatency)
	return m
}

// ObserveBatch records a classified batch outcome.
func (m *Metrics) ObserveBatch(outcome string, deltaCount int) {
	m.BatchesByOutcome.WithLabelValues(outcome).Inc()
	if deltaCount > 0 {
		m.DeltasApplied.Add(float64(deltaCount))
	}
}

// ObserveApplyLatency records how long an Apply call took.
func (m *Metrics) ObserveApplyLatency(d time.Duration) {
	m.ApplyLatency.Observe(d.Seconds())
}

// ObserveAckFailure records a batch that did not receive a successful ack
// within the applier's deadline.
func (m *Metrics) ObserveAckFailure() {
	m.AckFailures.Inc()
}

// ObserveDroppedWatcherEvents records watcher-originated file-change events
// dropped before the orchestrator ever saw them.
func (m *Metrics) ObserveDroppedWatcherEvents(count int64) {
	if count > 0 {
		m.DroppedWatcherEvents.Add(float64(count))
	}
}

// ObserveBackoffRetry records a single fsread retry attempt.
func (m *Metrics) ObserveBackoffRetry() {
	m.BackoffRetries.Inc()
}
