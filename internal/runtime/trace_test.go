package runtime

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemblyTraceWalksTheUpstreamChain(t *testing.T) {
	reg := NewRegistry()
	reg.EnableOperatorDebug()
	errBoom := errors.New("boom")

	flow := reg.Just(1).
		Map(identity).
		Filter(acceptAll).
		Map(func(any) (any, error) { return nil, errBoom }).
		DoOnNext(discard).
		Filter(acceptAll)

	_, err := flow.Collect(context.Background())
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, "flowtap: operator error on value [1]: boom", err.Error(),
		"the trace must never leak into the primary message")

	trace, ok := AssemblyTrace(err)
	require.True(t, ok)

	lines := strings.Split(trace, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Assembly trace from operator [map]:", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "|_\tFlow.map("), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "\t|_\tFlow.filter("), lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "\t\t|_\tFlow.map("), lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "\t\t\t|_\tFlow.just("), lines[4])
	for _, line := range lines[1:] {
		assert.Contains(t, line, "trace_test.go:")
		assert.True(t, strings.HasSuffix(line, ")"), line)
	}
	assert.NotContains(t, trace, "Flow.doOnNext",
		"stages downstream of the failure do not belong in the trace")
}

func TestAssemblyTraceRequiresACapturedSnapshot(t *testing.T) {
	reg := NewRegistry()
	errBoom := errors.New("boom")

	_, err := reg.Just(1).
		Map(func(any) (any, error) { return nil, errBoom }).
		Collect(context.Background())
	require.ErrorIs(t, err, errBoom)

	trace, ok := AssemblyTrace(err)
	assert.False(t, ok)
	assert.Empty(t, trace)
}

func TestErrorSourceCarriesItsConstructionSite(t *testing.T) {
	reg := NewRegistry()
	reg.EnableOperatorDebug()
	errBoom := errors.New("boom")

	_, err := reg.Error(errBoom).Collect(context.Background())
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, "boom", err.Error())

	trace, ok := AssemblyTrace(err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(trace, "Assembly trace from operator [error]:"), trace)
	assert.Contains(t, trace, "|_\tFlow.error(")
}

func TestCheckpointStampsErrorsWithoutDebug(t *testing.T) {
	reg := NewRegistry()
	errBoom := errors.New("boom")

	flow := reg.Error(errBoom).Checkpoint("after enrich")
	_, err := flow.Collect(context.Background())
	require.ErrorIs(t, err, errBoom)

	trace, ok := AssemblyTrace(err)
	require.True(t, ok)
	lines := strings.Split(trace, "\n")
	require.Len(t, lines, 2, "only the checkpoint captured a snapshot")
	assert.Equal(t, "Assembly trace from operator [checkpoint]:", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "|_\tafter enrich("), lines[1])
	assert.Contains(t, lines[1], "trace_test.go:")
}

func TestCheckpointDefaultLabel(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Error(errors.New("boom")).Checkpoint("").Collect(context.Background())

	trace, ok := AssemblyTrace(err)
	require.True(t, ok)
	assert.Contains(t, trace, "|_\tFlow.checkpoint(")
}

func TestTracesNeverStack(t *testing.T) {
	reg := NewRegistry()
	reg.EnableOperatorDebug()
	errBoom := errors.New("boom")

	flow := reg.Just(1).
		Map(func(any) (any, error) { return nil, errBoom }).
		Checkpoint("late checkpoint")

	_, err := flow.Collect(context.Background())
	require.ErrorIs(t, err, errBoom)

	trace, ok := AssemblyTrace(err)
	require.True(t, ok)
	assert.Equal(t, "Assembly trace from operator [map]:", strings.Split(trace, "\n")[0],
		"the attachment from the failing stage wins")
	assert.NotContains(t, trace, "late checkpoint")

	var traced *TracedError
	require.ErrorAs(t, err, &traced)
	_, nested := AssemblyTrace(traced.Cause)
	assert.False(t, nested)
}

func TestNamedStagesRenderTheirRole(t *testing.T) {
	reg := NewRegistry()
	reg.EnableOperatorDebug()
	errBoom := errors.New("boom")

	flow := reg.Just(1).
		Named("ingest").
		Map(func(any) (any, error) { return nil, errBoom })
	_, err := flow.Collect(context.Background())
	require.ErrorIs(t, err, errBoom)

	trace, _ := AssemblyTrace(err)
	assert.Contains(t, trace, "|_\tFlow.ingest(")
}

func TestRenderAssemblyTraceFanIn(t *testing.T) {
	reg := NewRegistry()
	reg.EnableOperatorDebug()

	base := reg.Just(1)
	merged := reg.Merge(base.Map(identity), base.Filter(acceptAll))

	trace, ok := renderAssemblyTrace(merged)
	require.True(t, ok)

	lines := strings.Split(trace, "\n")
	require.Len(t, lines, 5, "the shared root renders once")
	assert.True(t, strings.HasPrefix(lines[1], "|_\tFlow.merge("), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "\t|_\tFlow.map("), lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "\t\t|_\tFlow.just("), lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "\t|_\tFlow.filter("), lines[4])
	assert.Equal(t, 1, strings.Count(trace, "Flow.just"))
}

func TestRenderAssemblyTraceContainsPanics(t *testing.T) {
	trace, ok := renderAssemblyTrace(explodingStage{})
	assert.False(t, ok)
	assert.Empty(t, trace)
}

func TestDispatchSurvivesBrokenGraphs(t *testing.T) {
	reg := NewRegistry()
	errBoom := errors.New("boom")

	err := reg.DispatchOperatorError(explodingStage{}, errBoom, nil)

	assert.Same(t, errBoom, err)
}

func TestTracedErrorDelegatesToCause(t *testing.T) {
	cause := errors.New("boom")
	traced := &TracedError{Cause: cause, Trace: "Assembly trace from operator [x]:"}

	assert.Equal(t, "boom", traced.Error())
	assert.Same(t, cause, errors.Unwrap(traced))
	assert.ErrorIs(t, traced, cause)
}

func TestAssemblyTraceFoundThroughWrapping(t *testing.T) {
	traced := &TracedError{Cause: errors.New("boom"), Trace: "Assembly trace from operator [x]:"}
	wrapped := fmt.Errorf("publishing failed: %w", traced)

	trace, ok := AssemblyTrace(wrapped)
	require.True(t, ok)
	assert.Equal(t, traced.Trace, trace)

	_, ok = AssemblyTrace(errors.New("plain"))
	assert.False(t, ok)
	_, ok = AssemblyTrace(nil)
	assert.False(t, ok)
}

// explodingStage is a Stage whose parent walk panics, for exercising the
// renderer's containment.
type explodingStage struct{}

func (explodingStage) Name() string { return "exploding" }

func (explodingStage) Tags() iter.Seq2[string, string] {
	return func(func(string, string) bool) {}
}

func (explodingStage) Parents() iter.Seq[Stage] {
	return func(func(Stage) bool) { panic("graph walk exploded") }
}
