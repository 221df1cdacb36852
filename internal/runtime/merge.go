package runtime

import (
	"slices"
	"sync"
)

// Merge subscribes to every source and relays their signals into one
// downstream, serialising delivery. The first terminal error wins and
// cancels the remaining sources; later errors and values are routed to the
// drop funnel. Completion happens once every source completed.
func (r *Registry) Merge(sources ...*Flow) *Flow {
	parents := slices.Clone(sources)
	return r.operator("merge", parents, func(self *Flow) func(Subscriber) {
		return func(s Subscriber) {
			comp := &compositeSubscription{}
			s.OnSubscribe(comp)
			if len(parents) == 0 {
				s.OnComplete()
				return
			}
			coord := &mergeCoordinator{node: self, actual: s, comp: comp, remaining: len(parents)}
			for _, src := range parents {
				src.connect(&mergeInner{coord: coord})
			}
		}
	})
}

// mergeCoordinator owns the downstream of one merge subscription. All
// delivery happens under its mutex; drop dispatch happens outside it.
type mergeCoordinator struct {
	mu        sync.Mutex
	node      *Flow
	actual    Subscriber
	comp      *compositeSubscription
	remaining int
	done      bool
}

func (m *mergeCoordinator) next(v any) {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		m.node.reg.reportDropped(m.node.name, m.node.reg.DispatchNextDropped(v))
		return
	}
	m.actual.OnNext(v)
	m.mu.Unlock()
}

func (m *mergeCoordinator) error(err error) {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		m.node.reg.reportDropped(m.node.name, m.node.reg.DispatchErrorDropped(err))
		return
	}
	m.done = true
	m.actual.OnError(err)
	m.mu.Unlock()
	m.comp.Cancel()
}

func (m *mergeCoordinator) complete() {
	m.mu.Lock()
	m.remaining--
	if m.done || m.remaining > 0 {
		m.mu.Unlock()
		return
	}
	m.done = true
	m.actual.OnComplete()
	m.mu.Unlock()
}

// mergeInner is the subscriber attached to each source. It only forwards
// into the coordinator, which does the serialising.
type mergeInner struct {
	coord *mergeCoordinator
}

func (mi *mergeInner) OnSubscribe(s Subscription) {
	mi.coord.comp.add(s)
}

func (mi *mergeInner) OnNext(v any) {
	mi.coord.next(v)
}

func (mi *mergeInner) OnError(err error) {
	mi.coord.error(err)
}

func (mi *mergeInner) OnComplete() {
	mi.coord.complete()
}

// compositeSubscription fans Cancel out to every source subscription,
// including ones added after the cancel.
type compositeSubscription struct {
	mu        sync.Mutex
	subs      []Subscription
	cancelled bool
}

func (c *compositeSubscription) add(s Subscription) {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		s.Cancel()
		return
	}
	c.subs = append(c.subs, s)
	c.mu.Unlock()
}

func (c *compositeSubscription) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		s.Cancel()
	}
}
