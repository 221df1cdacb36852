package runtime

import (
	"context"
	"sync"

	liberrors "github.com/flowtap/flowtap/internal/runtime/errors"
)

// Just emits the given values in order and completes.
func (r *Registry) Just(values ...any) *Flow {
	return r.operator("just", nil, func(self *Flow) func(Subscriber) {
		return func(s Subscriber) {
			c := &cancellation{}
			s.OnSubscribe(c)
			for _, v := range values {
				if c.cancelled() {
					return
				}
				s.OnNext(v)
			}
			if !c.cancelled() {
				s.OnComplete()
			}
		}
	})
}

// Range emits count consecutive ints starting at start, then completes.
func (r *Registry) Range(start, count int) *Flow {
	return r.operator("range", nil, func(self *Flow) func(Subscriber) {
		return func(s Subscriber) {
			c := &cancellation{}
			s.OnSubscribe(c)
			for i := 0; i < count; i++ {
				if c.cancelled() {
					return
				}
				s.OnNext(start + i)
			}
			if !c.cancelled() {
				s.OnComplete()
			}
		}
	})
}

// Empty completes immediately without emitting.
func (r *Registry) Empty() *Flow {
	return r.operator("empty", nil, func(self *Flow) func(Subscriber) {
		return func(s Subscriber) {
			c := &cancellation{}
			s.OnSubscribe(c)
			if !c.cancelled() {
				s.OnComplete()
			}
		}
	})
}

// Error terminates every subscription with err. The error reaches the
// subscriber as handed in, carrying this stage's assembly trace when debug
// capture recorded one.
func (r *Registry) Error(err error) *Flow {
	return r.operator("error", nil, func(self *Flow) func(Subscriber) {
		return func(s Subscriber) {
			c := &cancellation{}
			s.OnSubscribe(c)
			if !c.cancelled() {
				s.OnError(attachAssemblyTrace(self, err))
			}
		}
	})
}

// Defer postpones assembly of the upstream until subscribe time; every
// subscriber gets a freshly built pipeline from builder. Hook state in
// effect at subscribe time therefore applies to the deferred stages.
func (r *Registry) Defer(builder func() *Flow) *Flow {
	return r.operator("defer", nil, func(self *Flow) func(Subscriber) {
		return func(s Subscriber) {
			inner := builder()
			if inner == nil {
				s.OnSubscribe(&cancellation{})
				s.OnError(attachAssemblyTrace(self, liberrors.ErrNilFlow))
				return
			}
			inner.connect(s)
		}
	})
}

// Emitter pushes signals from a producer into one subscription. Calls are
// serialised internally, so producers may emit from several goroutines.
// After a terminal signal or cancellation, Next reports false and dropped
// signals go to the funnel.
type Emitter interface {
	// Next delivers v downstream; false means the subscription no longer
	// accepts values.
	Next(v any) bool
	// Error terminates the subscription with err.
	Error(err error)
	// Complete terminates the subscription normally.
	Complete()
	// Cancelled reports whether the subscriber cancelled.
	Cancelled() bool
}

// Create builds a push-style source from a producer callback. The producer
// runs synchronously on Subscribe and may hand the emitter to other
// goroutines; the context is cancelled when the subscriber cancels or the
// emitter terminates.
func (r *Registry) Create(name string, producer func(ctx context.Context, em Emitter)) *Flow {
	if name == "" {
		name = "create"
	}
	return r.operator(name, nil, func(self *Flow) func(Subscriber) {
		return func(s Subscriber) {
			ctx, cancel := context.WithCancel(context.Background())
			c := &cancellation{stop: cancel}
			s.OnSubscribe(c)
			producer(ctx, &emitter{node: self, actual: s, c: c, cancel: cancel})
		}
	})
}

// emitter implements Emitter for Create sources. The mutex serialises
// delivery; drop dispatch runs outside it so drop hooks cannot deadlock
// against a concurrent emit.
type emitter struct {
	mu     sync.Mutex
	node   *Flow
	actual Subscriber
	c      *cancellation
	cancel context.CancelFunc
	done   bool
}

func (e *emitter) Next(v any) bool {
	e.mu.Lock()
	if e.done || e.c.cancelled() {
		e.mu.Unlock()
		e.node.reg.reportDropped(e.node.name, e.node.reg.DispatchNextDropped(v))
		return false
	}
	e.actual.OnNext(v)
	e.mu.Unlock()
	return true
}

func (e *emitter) Error(err error) {
	e.mu.Lock()
	if e.done || e.c.cancelled() {
		e.mu.Unlock()
		e.node.reg.reportDropped(e.node.name, e.node.reg.DispatchErrorDropped(err))
		return
	}
	e.done = true
	e.actual.OnError(attachAssemblyTrace(e.node, err))
	e.mu.Unlock()
	e.cancel()
}

func (e *emitter) Complete() {
	e.mu.Lock()
	if e.done || e.c.cancelled() {
		e.mu.Unlock()
		return
	}
	e.done = true
	e.actual.OnComplete()
	e.mu.Unlock()
	e.cancel()
}

func (e *emitter) Cancelled() bool {
	return e.c.cancelled()
}
