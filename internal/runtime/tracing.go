package runtime

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowtap/flowtap/internal/runtime/config"
	"github.com/flowtap/flowtap/internal/runtime/ids"
)

// SubscriptionTracing returns an operator hook that wraps each subscription
// the hook visits in an OpenTelemetry span. Register it with OnLastOperator
// for one span per subscription, or gate it with a lift predicate through
// SubscriptionTracingFor.
func SubscriptionTracing(tracerName string) OperatorHook {
	return SubscriptionTracingFor(tracerName, nil)
}

// SubscriptionTracingFor is SubscriptionTracing restricted to stages pred
// accepts.
func SubscriptionTracingFor(tracerName string, pred LiftPredicate) OperatorHook {
	if tracerName == "" {
		tracerName = config.DefaultTracerName
	}
	return LiftWith(pred, func(stage Stage, actual Subscriber) Subscriber {
		tracer := otel.Tracer(tracerName)
		_, span := tracer.Start(
			context.Background(),
			"Subscribe",
		)

		span.SetAttributes(
			attribute.String("flowtap.operator", stage.Name()),
			attribute.String("flowtap.subscription_id", ids.NewID()),
		)
		for k, v := range stage.Tags() {
			span.SetAttributes(attribute.String("flowtap.tag."+k, v))
		}

		return &tracedSubscriber{span: &spanState{span: span}, actual: actual}
	})
}

// spanState guards the span against double End when both cancellation and a
// terminal signal race to close it.
type spanState struct {
	span  trace.Span
	ended atomic.Bool
}

func (s *spanState) end() {
	if s.ended.CompareAndSwap(false, true) {
		s.span.End()
	}
}

type tracedSubscriber struct {
	span   *spanState
	actual Subscriber
	values atomic.Int64
}

func (ts *tracedSubscriber) OnSubscribe(s Subscription) {
	ts.actual.OnSubscribe(&tracedSubscription{actual: s, span: ts.span})
}

func (ts *tracedSubscriber) OnNext(v any) {
	ts.values.Add(1)
	ts.actual.OnNext(v)
}

func (ts *tracedSubscriber) OnError(err error) {
	ts.span.span.SetAttributes(attribute.Int64("flowtap.values_delivered", ts.values.Load()))
	ts.span.span.RecordError(err)
	ts.span.span.SetStatus(codes.Error, err.Error())
	ts.span.end()
	ts.actual.OnError(err)
}

func (ts *tracedSubscriber) OnComplete() {
	ts.span.span.SetAttributes(attribute.Int64("flowtap.values_delivered", ts.values.Load()))
	ts.span.end()
	ts.actual.OnComplete()
}

type tracedSubscription struct {
	actual Subscription
	span   *spanState
}

func (s *tracedSubscription) Cancel() {
	s.span.span.AddEvent("cancelled")
	s.span.end()
	s.actual.Cancel()
}
