package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liberrors "github.com/flowtap/flowtap/internal/runtime/errors"
)

func TestLiftNilWrapPanics(t *testing.T) {
	assert.PanicsWithValue(t, liberrors.ErrNilWrap, func() {
		LiftWith(nil, nil)
	})
}

func TestEachOperatorLiftWrapsEveryStage(t *testing.T) {
	reg := NewRegistry()
	reg.OnEachOperator(Lift(plusOneWrap))

	// Three stages, three wraps: every value gains three.
	values := collectValues(t, reg.Just(1, 2, 3).Map(identity).Map(identity))

	assert.Equal(t, []any{4, 5, 6}, values)
}

func TestLastOperatorLiftWrapsOnce(t *testing.T) {
	reg := NewRegistry()
	reg.OnLastOperator(Lift(plusOneWrap))

	values := collectValues(t, reg.Just(1, 2, 3).Map(identity).Map(identity))

	assert.Equal(t, []any{2, 3, 4}, values)
}

func TestTagGatedLiftWrapsOnlyTheTaggedStage(t *testing.T) {
	reg := NewRegistry()
	reg.OnEachOperator(LiftWith(HasTag("metric", "counted"), plusOneWrap))

	tagged := collectValues(t, reg.Just(1, 2, 3).Map(identity).Tag("metric", "counted").Map(identity))
	assert.Equal(t, []any{2, 3, 4}, tagged)

	untagged := collectValues(t, reg.Just(1, 2, 3).Map(identity).Map(identity))
	assert.Equal(t, []any{1, 2, 3}, untagged)
}

func TestLiftPredicateEvaluatedOncePerVisitedStage(t *testing.T) {
	reg := NewRegistry()
	evaluations := 0
	reg.OnEachOperator(LiftWith(func(s Stage) bool {
		evaluations++
		return false
	}, plusOneWrap))

	flow := reg.Just(1, 2, 3).Map(identity).Map(identity)
	require.Equal(t, 3, evaluations, "one evaluation per constructed stage")

	collectValues(t, flow)
	collectValues(t, flow)
	assert.Equal(t, 3, evaluations, "subscribing and delivering values must not re-evaluate")
}

func TestLastOperatorLiftPredicateEvaluatedPerSubscribe(t *testing.T) {
	reg := NewRegistry()
	evaluations := 0
	reg.OnLastOperator(LiftWith(func(s Stage) bool {
		evaluations++
		return false
	}, plusOneWrap))

	flow := reg.Just(1)
	require.Equal(t, 0, evaluations)

	collectValues(t, flow)
	collectValues(t, flow)
	assert.Equal(t, 2, evaluations, "the subscription point is visited once per subscribe")
}

func TestLiftedStageKeepsItsIdentity(t *testing.T) {
	reg := NewRegistry()
	reg.OnEachOperator(LiftWith(HasTag("metric", "counted"), plusOneWrap))

	flow := reg.Just(1).Tag("metric", "counted")

	assert.Equal(t, "tag", flow.Name())
	assert.True(t, HasTag("metric", "counted")(flow))
	require.Equal(t, 1, ParentCount(flow))
}

func TestLiftWrapReceivesTheVisitedStage(t *testing.T) {
	reg := NewRegistry()
	var visited []string
	reg.OnEachOperator(Lift(func(stage Stage, actual Subscriber) Subscriber {
		visited = append(visited, stage.Name())
		return actual
	}))

	collectValues(t, reg.Just(1).Map(identity))

	// Connection order: subscribing walks downstream to upstream.
	assert.Equal(t, []string{"map", "just"}, visited)
}

// plusOneWrap adds one to every value passing the wrapped stage.
func plusOneWrap(stage Stage, actual Subscriber) Subscriber {
	return &addingSubscriber{actual: actual}
}

type addingSubscriber struct {
	actual Subscriber
}

func (a *addingSubscriber) OnSubscribe(s Subscription) { a.actual.OnSubscribe(s) }

func (a *addingSubscriber) OnNext(v any) {
	if n, ok := v.(int); ok {
		a.actual.OnNext(n + 1)
		return
	}
	a.actual.OnNext(v)
}

func (a *addingSubscriber) OnError(err error) { a.actual.OnError(err) }

func (a *addingSubscriber) OnComplete() { a.actual.OnComplete() }
