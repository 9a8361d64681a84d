package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &dto.Metric{}
	require.NoError(t, (<-ch).Write(m))
	return m.GetCounter().GetValue()
}

func TestObserveBatchIncrementsCountersByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBatch("ready", 3)
	m.ObserveBatch("blocked", 0)

	assert.Equal(t, float64(3), counterValue(t, m.DeltasApplied))

	ready, err := m.BatchesByOutcome.GetMetricWithLabelValues("ready")
	require.NoError(t, err)
	assert.Equal(t, float64(1), counterValue(t, ready))
}

func TestObserveApplyLatencyRecordsWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	assert.NotPanics(t, func() {
		m.ObserveApplyLatency(50 * time.Millisecond)
	})
}

func TestObserveAckFailureIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAckFailure()
	m.ObserveAckFailure()

	assert.Equal(t, float64(2), counterValue(t, m.AckFailures))
}

func TestObserveDroppedWatcherEventsAddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveDroppedWatcherEvents(5)
	m.ObserveDroppedWatcherEvents(0)

	assert.Equal(t, float64(5), counterValue(t, m.DroppedWatcherEvents))
}

func TestObserveBackoffRetryIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBackoffRetry()

	assert.Equal(t, float64(1), counterValue(t, m.BackoffRetries))
}
