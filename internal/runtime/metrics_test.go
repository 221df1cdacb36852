package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalMetricsMeterTheSubscriptionPoint(t *testing.T) {
	reg := NewRegistry()
	m := NewSignalMetrics(prometheus.NewRegistry(), "")
	require.NoError(t, m.Register())
	reg.OnLastOperator(m.Hook(nil))

	values := collectValues(t, reg.Just(1, 2, 3).Map(identity))
	assert.Equal(t, []any{1, 2, 3}, values)

	snap := m.GetSnapshot()
	assert.Equal(t, uint64(1), snap.TotalSubscriptions)
	assert.Equal(t, uint64(4), snap.TotalSignals, "three next signals plus the completion")
	assert.False(t, snap.CollectedAt.IsZero())

	counts := snap.OperatorCounts["map"]
	require.NotNil(t, counts, "the terminal stage carries the meter")
	assert.Equal(t, uint64(1), counts.Subscriptions)
	assert.Equal(t, uint64(3), counts.NextSignals)
	assert.Equal(t, uint64(1), counts.CompleteSignals)
	assert.Equal(t, uint64(0), counts.ErrorSignals)
	assert.False(t, counts.LastSignalAt.IsZero())
}

func TestSignalMetricsCountErrors(t *testing.T) {
	reg := NewRegistry()
	m := NewSignalMetrics(prometheus.NewRegistry(), "")
	reg.OnLastOperator(m.Hook(nil))

	_, err := reg.Error(errors.New("boom")).Collect(context.Background())
	require.Error(t, err)

	counts := m.GetSnapshot().OperatorCounts["error"]
	require.NotNil(t, counts)
	assert.Equal(t, uint64(1), counts.ErrorSignals)
	assert.Equal(t, uint64(0), counts.CompleteSignals)
}

func TestSignalMetricsTagGatedHook(t *testing.T) {
	reg := NewRegistry()
	m := NewSignalMetrics(prometheus.NewRegistry(), "")
	reg.OnEachOperator(m.Hook(HasTag("metric", "counted")))

	collectValues(t, reg.Just(1, 2).Tag("metric", "counted").Map(identity))

	snap := m.GetSnapshot()
	counts := snap.OperatorCounts["tag"]
	require.NotNil(t, counts)
	assert.Equal(t, uint64(2), counts.NextSignals)
	assert.Nil(t, snap.OperatorCounts["map"], "untagged stages stay unmetered")
	assert.Equal(t, uint64(1), snap.TotalSubscriptions)
}

func TestSignalMetricsExportNames(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSignalMetrics(registry, "flowtap")
	require.NoError(t, m.Register())

	reg := NewRegistry()
	reg.OnLastOperator(m.Hook(nil))
	collectValues(t, reg.Just(1))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "flowtap_signals_total")
	assert.Contains(t, names, "flowtap_signals_subscriptions_total")
	assert.Contains(t, names, "flowtap_signals_subscription_duration_seconds")
}

func TestSignalMetricsRegisterIsIdempotent(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSignalMetrics(registry, "")
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	second := NewSignalMetrics(registry, "")
	assert.NoError(t, second.Register(), "equal collectors already present are tolerated")
}

func TestSignalMetricsReset(t *testing.T) {
	m := NewSignalMetrics(prometheus.NewRegistry(), "")
	m.RecordSubscription("map")
	m.RecordSignal("map", signalNext)
	require.NotEmpty(t, m.GetSnapshot().OperatorCounts)

	m.Reset()

	snap := m.GetSnapshot()
	assert.Empty(t, snap.OperatorCounts)
	assert.Zero(t, snap.TotalSignals)
	assert.Zero(t, snap.TotalSubscriptions)
}

func TestDropMetricsConsumeDispatchedDrops(t *testing.T) {
	reg := NewRegistry()
	m := NewDropMetrics(prometheus.NewRegistry(), "")
	m.Install(reg)

	assert.NoError(t, reg.DispatchNextDropped("late"))
	assert.NoError(t, reg.DispatchErrorDropped(errors.New("late boom")))

	snap := m.GetSnapshot()
	assert.Equal(t, uint64(1), snap.DroppedValues)
	assert.Equal(t, uint64(1), snap.DroppedErrors)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestDropMetricsCountPipelineDrops(t *testing.T) {
	reg := NewRegistry()
	m := NewDropMetrics(prometheus.NewRegistry(), "")
	m.Install(reg)

	flow := reg.Create("drops", func(ctx context.Context, em Emitter) {
		em.Next("kept")
		em.Complete()
		em.Next("late")
	})
	values := collectValues(t, flow)

	assert.Equal(t, []any{"kept"}, values)
	assert.Equal(t, uint64(1), m.GetSnapshot().DroppedValues)
}

func TestDropMetricsRegisterAndReset(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewDropMetrics(registry, "")
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	m.recordValueDrop()
	m.recordErrorDrop()
	m.Reset()

	snap := m.GetSnapshot()
	assert.Zero(t, snap.DroppedValues)
	assert.Zero(t, snap.DroppedErrors)
}
