package runtime

import (
	liberrors "github.com/flowtap/flowtap/internal/runtime/errors"
)

// LiftPredicate gates a lift by stage metadata. It is evaluated exactly
// once per visited stage, at interception time, never per signal.
type LiftPredicate func(s Stage) bool

// LiftWrap builds the replacement subscriber for a lifted stage. It runs
// once per subscription and must return the subscriber the stage will feed;
// returning actual unchanged makes the lift a no-op for that subscription.
type LiftWrap func(stage Stage, actual Subscriber) Subscriber

// Lift returns an operator hook that wraps the subscriber of every stage it
// visits. Register it with OnEachOperator to decorate each stage, or with
// OnLastOperator to decorate only the subscription point.
func Lift(wrap LiftWrap) OperatorHook {
	return LiftWith(nil, wrap)
}

// LiftWith is Lift gated by pred; stages the predicate rejects pass through
// untouched. A nil pred accepts every stage.
func LiftWith(pred LiftPredicate, wrap LiftWrap) OperatorHook {
	if wrap == nil {
		panic(liberrors.ErrNilWrap)
	}
	return func(f *Flow) *Flow {
		if pred != nil && !pred(f) {
			return f
		}
		source := f
		lifted := *f
		lifted.connect = func(s Subscriber) {
			source.connect(wrap(source, s))
		}
		return &lifted
	}
}
