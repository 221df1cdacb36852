package runtime

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	liberrors "github.com/flowtap/flowtap/internal/runtime/errors"
)

// Subscriber receives the signals of one subscription. OnSubscribe arrives
// first; after one terminal signal (OnError or OnComplete) delivery stops
// and stragglers are routed to the drop funnel.
type Subscriber interface {
	OnSubscribe(s Subscription)
	OnNext(v any)
	OnError(err error)
	OnComplete()
}

// Subscription controls an active subscription. Cancel is idempotent and
// stops signal delivery promptly, not necessarily immediately.
type Subscription interface {
	Cancel()
}

// Flow is one stage of an assembled pipeline. Construction funnels through
// the owning registry, which is where interception happens; after that a
// Flow is immutable and satisfies Stage for introspection.
type Flow struct {
	reg     *Registry
	name    string
	tags    []Tag
	parents []*Flow
	snap    *snapshot
	connect func(s Subscriber)
}

// Name returns the stage's role label.
func (f *Flow) Name() string {
	return f.name
}

// Tags yields the stage's own labels in attachment order.
func (f *Flow) Tags() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, t := range f.tags {
			if !yield(t.Key, t.Value) {
				return
			}
		}
	}
}

// Parents yields the immediate upstream stages in connection order.
func (f *Flow) Parents() iter.Seq[Stage] {
	return func(yield func(Stage) bool) {
		for _, p := range f.parents {
			if !yield(p) {
				return
			}
		}
	}
}

// Registry returns the registry this flow was assembled against.
func (f *Flow) Registry() *Registry {
	return f.reg
}

// operator assembles one stage: build the node, capture its snapshot when
// debug capture is on, wire its subscribe behaviour, then pass it through
// the each-operator composition. The hook's return value is what upstream
// callers and downstream stages see.
func (r *Registry) operator(name string, parents []*Flow, build func(self *Flow) func(Subscriber)) *Flow {
	f := &Flow{reg: r, name: name, parents: parents}
	if r.DebugEnabled() {
		f.snap = captureSnapshot(operatorLabel(name))
	}
	f.connect = build(f)
	return r.applyEachOperator(f)
}

// metadata assembles a pass-through stage that carries labels but elides
// itself from the signal path.
func (r *Registry) metadata(name string, parent *Flow, tags []Tag) *Flow {
	f := &Flow{reg: r, name: name, tags: tags, parents: []*Flow{parent}}
	if r.DebugEnabled() {
		f.snap = captureSnapshot(operatorLabel(name))
	}
	f.connect = func(s Subscriber) {
		parent.connect(s)
	}
	return r.applyEachOperator(f)
}

func (r *Registry) applyEachOperator(f *Flow) *Flow {
	if hook := r.EachOperatorHook(); hook != nil {
		return hook(f)
	}
	return f
}

// Subscribe connects s to the pipeline. The last-operator composition is
// applied to the terminal stage exactly once per call, and s is shielded
// behind a guard that enforces the at-most-one-terminal contract.
func (f *Flow) Subscribe(s Subscriber) {
	if s == nil {
		panic(liberrors.ErrNilSubscriber)
	}
	target := f
	if hook := f.reg.LastOperatorHook(); hook != nil {
		target = hook(f)
	}
	target.connect(&terminalGuard{flow: f, actual: s})
}

// terminalGuard sits between the pipeline and the user subscriber. It lets
// exactly one terminal signal through; anything after that goes to the drop
// funnel and, having no caller to return to, is logged.
type terminalGuard struct {
	flow       *Flow
	actual     Subscriber
	subscribed bool
	done       atomic.Bool
}

func (g *terminalGuard) OnSubscribe(s Subscription) {
	if g.subscribed {
		return
	}
	g.subscribed = true
	g.actual.OnSubscribe(s)
}

func (g *terminalGuard) OnNext(v any) {
	if g.done.Load() {
		g.flow.reg.reportDropped(g.flow.name, g.flow.reg.DispatchNextDropped(v))
		return
	}
	g.actual.OnNext(v)
}

func (g *terminalGuard) OnError(err error) {
	if !g.done.CompareAndSwap(false, true) {
		g.flow.reg.reportDropped(g.flow.name, g.flow.reg.DispatchErrorDropped(err))
		return
	}
	g.actual.OnError(err)
}

func (g *terminalGuard) OnComplete() {
	if !g.done.CompareAndSwap(false, true) {
		return
	}
	g.actual.OnComplete()
}

// cancellation is the Subscription handed out by built-in sources. stop, if
// set, runs once on the first Cancel.
type cancellation struct {
	flag atomic.Bool
	stop func()
}

func (c *cancellation) Cancel() {
	if c.flag.CompareAndSwap(false, true) && c.stop != nil {
		c.stop()
	}
}

func (c *cancellation) cancelled() bool {
	return c.flag.Load()
}

// Collect subscribes, gathers every value, and returns them once the flow
// terminates. Context cancellation cancels the subscription and returns
// ctx.Err().
func (f *Flow) Collect(ctx context.Context) ([]any, error) {
	col := &collectSubscriber{done: make(chan struct{})}
	f.Subscribe(col)
	select {
	case <-col.done:
		return col.result()
	case <-ctx.Done():
		col.cancelSubscription()
		return nil, ctx.Err()
	}
}

// ForEach subscribes with fn applied to every value and blocks until the
// flow terminates. A non-nil return from fn cancels the subscription and
// becomes ForEach's result; otherwise the flow's terminal error is.
func (f *Flow) ForEach(ctx context.Context, fn func(v any) error) error {
	fe := &forEachSubscriber{fn: fn, done: make(chan struct{})}
	f.Subscribe(fe)
	select {
	case <-fe.done:
		return fe.err
	case <-ctx.Done():
		fe.cancelSubscription()
		return ctx.Err()
	}
}

type collectSubscriber struct {
	mu     sync.Mutex
	sub    Subscription
	values []any
	err    error
	done   chan struct{}
}

func (c *collectSubscriber) OnSubscribe(s Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sub = s
}

func (c *collectSubscriber) OnNext(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
}

func (c *collectSubscriber) OnError(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	close(c.done)
}

func (c *collectSubscriber) OnComplete() {
	close(c.done)
}

func (c *collectSubscriber) result() ([]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values, c.err
}

func (c *collectSubscriber) cancelSubscription() {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

type forEachSubscriber struct {
	mu         sync.Mutex
	fn         func(v any) error
	sub        Subscription
	err        error
	terminated bool
	done       chan struct{}
}

func (e *forEachSubscriber) OnSubscribe(s Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sub = s
}

func (e *forEachSubscriber) OnNext(v any) {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return
	}
	err := e.fn(v)
	if err == nil {
		e.mu.Unlock()
		return
	}
	e.err = err
	e.terminated = true
	sub := e.sub
	e.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
	close(e.done)
}

func (e *forEachSubscriber) OnError(err error) {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return
	}
	e.err = err
	e.terminated = true
	e.mu.Unlock()
	close(e.done)
}

func (e *forEachSubscriber) OnComplete() {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return
	}
	e.terminated = true
	e.mu.Unlock()
	close(e.done)
}

func (e *forEachSubscriber) cancelSubscription() {
	e.mu.Lock()
	sub := e.sub
	e.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}
