package runtime

import (
	"fmt"
	"slices"

	"github.com/flowtap/flowtap/internal/runtime/ids"
	"github.com/flowtap/flowtap/internal/runtime/logging"
)

// Map transforms each value through fn. A non-nil error or a panic in fn
// cancels the upstream and terminates downstream with the funnelled error.
func (f *Flow) Map(fn func(v any) (any, error)) *Flow {
	return f.transformed("map", func(v any, emit func(any)) error {
		out, err := fn(v)
		if err != nil {
			return err
		}
		emit(out)
		return nil
	})
}

// Filter forwards only values pred accepts. Errors funnel like Map's.
func (f *Flow) Filter(pred func(v any) (bool, error)) *Flow {
	return f.transformed("filter", func(v any, emit func(any)) error {
		keep, err := pred(v)
		if err != nil {
			return err
		}
		if keep {
			emit(v)
		}
		return nil
	})
}

// DoOnNext runs fn for each value as a side effect and forwards the value
// unchanged. Errors funnel like Map's.
func (f *Flow) DoOnNext(fn func(v any) error) *Flow {
	return f.transformed("doOnNext", func(v any, emit func(any)) error {
		if err := fn(v); err != nil {
			return err
		}
		emit(v)
		return nil
	})
}

// transformed assembles a stage whose per-value behaviour is the given
// transform. emit may be called zero or more times per input value.
func (f *Flow) transformed(name string, transform func(v any, emit func(any)) error) *Flow {
	return f.reg.operator(name, []*Flow{f}, func(self *Flow) func(Subscriber) {
		return func(s Subscriber) {
			f.connect(&valueSubscriber{node: self, actual: s, transform: transform})
		}
	})
}

// valueSubscriber applies one stage's transform between upstream and
// downstream. The first transform failure cancels upstream, routes the
// error and offending value through the operator-error funnel, and
// terminates downstream; signals arriving after that are dropped.
type valueSubscriber struct {
	node      *Flow
	actual    Subscriber
	transform func(v any, emit func(any)) error
	sub       Subscription
	done      bool
}

func (vs *valueSubscriber) OnSubscribe(s Subscription) {
	vs.sub = s
	vs.actual.OnSubscribe(s)
}

func (vs *valueSubscriber) OnNext(v any) {
	if vs.done {
		vs.node.reg.reportDropped(vs.node.name, vs.node.reg.DispatchNextDropped(v))
		return
	}
	err := vs.applyTransform(v)
	if err == nil {
		return
	}
	vs.done = true
	if vs.sub != nil {
		vs.sub.Cancel()
	}
	vs.actual.OnError(vs.node.reg.DispatchOperatorError(vs.node, err, v))
}

func (vs *valueSubscriber) OnError(err error) {
	if vs.done {
		vs.node.reg.reportDropped(vs.node.name, vs.node.reg.DispatchErrorDropped(err))
		return
	}
	vs.done = true
	vs.actual.OnError(err)
}

func (vs *valueSubscriber) OnComplete() {
	if vs.done {
		return
	}
	vs.done = true
	vs.actual.OnComplete()
}

// applyTransform runs the transform with a panic net so a misbehaving
// callback degrades into an operator error instead of unwinding the
// subscription.
func (vs *valueSubscriber) applyTransform(v any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("flowtap: %s operator panicked: %v", vs.node.name, rec)
		}
	}()
	return vs.transform(v, func(out any) {
		vs.actual.OnNext(out)
	})
}

// OnErrorReturn replaces a terminal error with fallback followed by
// completion. The swallowed error is not funnelled; it was handled.
func (f *Flow) OnErrorReturn(fallback any) *Flow {
	return f.reg.operator("onErrorReturn", []*Flow{f}, func(self *Flow) func(Subscriber) {
		return func(s Subscriber) {
			f.connect(&errorReturnSubscriber{actual: s, fallback: fallback})
		}
	})
}

type errorReturnSubscriber struct {
	actual   Subscriber
	fallback any
	done     bool
}

func (es *errorReturnSubscriber) OnSubscribe(s Subscription) {
	es.actual.OnSubscribe(s)
}

func (es *errorReturnSubscriber) OnNext(v any) {
	if es.done {
		return
	}
	es.actual.OnNext(v)
}

func (es *errorReturnSubscriber) OnError(error) {
	if es.done {
		return
	}
	es.done = true
	es.actual.OnNext(es.fallback)
	es.actual.OnComplete()
}

func (es *errorReturnSubscriber) OnComplete() {
	if es.done {
		return
	}
	es.done = true
	es.actual.OnComplete()
}

// Log forwards every signal unchanged while logging it. A nil logger uses
// the registry's; each subscription gets its own id so interleaved
// subscriptions stay distinguishable.
func (f *Flow) Log(logger logging.ServiceLogger) *Flow {
	return f.reg.operator("log", []*Flow{f}, func(self *Flow) func(Subscriber) {
		return func(s Subscriber) {
			log := logger
			if log == nil {
				log = f.reg.Logger()
			}
			log = log.With(logging.LogFields{
				"source":          f.name,
				"subscription_id": ids.NewID(),
			})
			f.connect(&logSubscriber{actual: s, log: log})
		}
	})
}

type logSubscriber struct {
	actual Subscriber
	log    logging.ServiceLogger
}

func (ls *logSubscriber) OnSubscribe(s Subscription) {
	ls.log.Debug("onSubscribe", nil)
	ls.actual.OnSubscribe(s)
}

func (ls *logSubscriber) OnNext(v any) {
	ls.log.Debug("onNext", logging.LogFields{"value": v})
	ls.actual.OnNext(v)
}

func (ls *logSubscriber) OnError(err error) {
	ls.log.Error("onError", err, nil)
	ls.actual.OnError(err)
}

func (ls *logSubscriber) OnComplete() {
	ls.log.Debug("onComplete", nil)
	ls.actual.OnComplete()
}

// Tag attaches a key/value label for lift predicates and graph exports.
// Consecutive Tag calls collapse into one metadata stage carrying the
// accumulated set, so multi-tag predicates can match a single node.
func (f *Flow) Tag(key, value string) *Flow {
	if f.name == "tag" && len(f.parents) == 1 {
		merged := append(slices.Clone(f.tags), Tag{Key: key, Value: value})
		return f.reg.metadata("tag", f.parents[0], merged)
	}
	return f.reg.metadata("tag", f, []Tag{{Key: key, Value: value}})
}

// Named wraps the flow in a metadata stage whose role label is name, which
// is what traces and graph exports then show.
func (f *Flow) Named(name string) *Flow {
	return f.reg.metadata(name, f, nil)
}

// Checkpoint marks this point of the pipeline with a snapshot regardless of
// the debug switch. Errors flowing through it from upstream pick up the
// trace rendered here if they do not already carry one, so even a
// non-debug pipeline yields at least this line. A non-empty description
// replaces the trace label.
func (f *Flow) Checkpoint(description string) *Flow {
	label := description
	if label == "" {
		label = operatorLabel("checkpoint")
	}
	node := &Flow{reg: f.reg, name: "checkpoint", parents: []*Flow{f}}
	node.snap = captureSnapshot(label)
	node.connect = func(s Subscriber) {
		f.connect(&checkpointSubscriber{node: node, actual: s})
	}
	return f.reg.applyEachOperator(node)
}

// checkpointSubscriber forwards every signal unchanged except that terminal
// errors are stamped with the checkpoint's assembly trace.
type checkpointSubscriber struct {
	node   *Flow
	actual Subscriber
}

func (cs *checkpointSubscriber) OnSubscribe(s Subscription) {
	cs.actual.OnSubscribe(s)
}

func (cs *checkpointSubscriber) OnNext(v any) {
	cs.actual.OnNext(v)
}

func (cs *checkpointSubscriber) OnError(err error) {
	cs.actual.OnError(attachAssemblyTrace(cs.node, err))
}

func (cs *checkpointSubscriber) OnComplete() {
	cs.actual.OnComplete()
}
