package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowtap/flowtap/internal/runtime/config"
)

func TestConfigureZeroValueInstallsNothing(t *testing.T) {
	reg := NewRegistry()

	inst, err := reg.Configure(config.Config{})
	require.NoError(t, err)
	require.NotNil(t, inst)

	assert.Nil(t, inst.Signals)
	assert.Nil(t, inst.Drops)
	assert.False(t, reg.DebugEnabled())
	assert.Nil(t, reg.EachOperatorHook())
	assert.Nil(t, reg.LastOperatorHook())
}

func TestConfigureDebugSwitch(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Configure(config.Config{Debug: true})
	require.NoError(t, err)
	assert.True(t, reg.DebugEnabled())

	_, err = reg.Configure(config.Config{})
	require.NoError(t, err)
	assert.False(t, reg.DebugEnabled())
}

func TestConfigureMetrics(t *testing.T) {
	reg := NewRegistry()

	inst, err := reg.Configure(config.Config{
		MetricsEnabled:   true,
		MetricsNamespace: "configure_test",
	})
	require.NoError(t, err)
	require.NotNil(t, inst.Signals)

	collectValues(t, reg.Just(1, 2).Map(identity))

	snap := inst.Signals.GetSnapshot()
	assert.Equal(t, uint64(1), snap.TotalSubscriptions)
	require.NotNil(t, snap.OperatorCounts["map"])
	assert.Equal(t, uint64(2), snap.OperatorCounts["map"].NextSignals)
}

func TestConfigureDropCounters(t *testing.T) {
	reg := NewRegistry()

	inst, err := reg.Configure(config.Config{
		DropCountersEnabled: true,
		MetricsNamespace:    "configure_test",
	})
	require.NoError(t, err)
	require.NotNil(t, inst.Drops)

	assert.NoError(t, reg.DispatchNextDropped("late"), "counted drops are consumed")
	assert.Equal(t, uint64(1), inst.Drops.GetSnapshot().DroppedValues)
}

func TestConfigureTracing(t *testing.T) {
	exporter := installTestTracerProvider(t)

	reg := NewRegistry()
	_, err := reg.Configure(config.Config{TracingEnabled: true})
	require.NoError(t, err)

	collectValues(t, reg.Just(1))
	assert.Len(t, exporter.GetSpans(), 1)
}

func TestConfigureSignalLogging(t *testing.T) {
	reg := NewRegistry()
	rec := &recordingLogger{}
	reg.SetLogger(rec)

	_, err := reg.Configure(config.Config{SignalLogging: true})
	require.NoError(t, err)

	collectValues(t, reg.Just(1))
	assert.Equal(t, []string{"onSubscribe", "onNext", "onComplete"}, rec.messages())
}

func TestConfigureKeepsExistingHooks(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.OnEachOperator(func(f *Flow) *Flow { calls++; return f })

	_, err := reg.Configure(config.Config{})
	require.NoError(t, err)

	reg.Just(1)
	assert.Equal(t, 1, calls)
}
