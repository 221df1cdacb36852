package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Signal label values used by SignalMetrics.
const (
	signalNext     = "next"
	signalError    = "error"
	signalComplete = "complete"
)

// SignalMetrics tracks per-operator signal statistics. Attach it through
// Hook so only the stages you care about are metered.
type SignalMetrics struct {
	mu sync.RWMutex

	// Per-operator counts
	operatorCounts map[string]*OperatorSignalCounts

	// Prometheus collectors
	signalsTotal        *prometheus.CounterVec
	subscriptionsTotal  *prometheus.CounterVec
	subscriptionSeconds *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// OperatorSignalCounts holds the counters for a single operator label.
type OperatorSignalCounts struct {
	Subscriptions   uint64    `json:"subscriptions"`
	NextSignals     uint64    `json:"next_signals"`
	ErrorSignals    uint64    `json:"error_signals"`
	CompleteSignals uint64    `json:"complete_signals"`
	LastSignalAt    time.Time `json:"last_signal_at"`
}

// SignalMetricsSnapshot provides a point-in-time view of signal metrics.
type SignalMetricsSnapshot struct {
	TotalSubscriptions uint64                           `json:"total_subscriptions"`
	TotalSignals       uint64                           `json:"total_signals"`
	OperatorCounts     map[string]*OperatorSignalCounts `json:"operator_counts"`
	CollectedAt        time.Time                        `json:"collected_at"`
}

// newSignalCounterVec creates a counter vec under namespace/signals.
func newSignalCounterVec(namespace, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// newSignalHistogramVec creates a histogram vec under namespace/signals.
func newSignalHistogramVec(namespace, name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewSignalMetrics creates a signal metrics collector. An empty namespace
// falls back to "flowtap".
func NewSignalMetrics(registerer prometheus.Registerer, namespace string) *SignalMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "flowtap"
	}

	return &SignalMetrics{
		operatorCounts:      make(map[string]*OperatorSignalCounts),
		registerer:          registerer,
		signalsTotal:        newSignalCounterVec(namespace, "total", "Total number of signals delivered, by operator and signal kind", []string{"operator", "signal"}),
		subscriptionsTotal:  newSignalCounterVec(namespace, "subscriptions_total", "Total number of subscriptions opened, by operator", []string{"operator"}),
		subscriptionSeconds: newSignalHistogramVec(namespace, "subscription_duration_seconds", "Time between subscribe and terminal signal", []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30, 300}, []string{"operator"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *SignalMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.signalsTotal,
		m.subscriptionsTotal,
		m.subscriptionSeconds,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Hook returns an operator hook that meters every stage pred accepts. A nil
// pred meters everything the hook visits; registered with OnLastOperator
// that is one meter per subscription, with OnEachOperator one per stage.
func (m *SignalMetrics) Hook(pred LiftPredicate) OperatorHook {
	return LiftWith(pred, func(stage Stage, actual Subscriber) Subscriber {
		return &meteredSubscriber{metrics: m, operator: stage.Name(), actual: actual}
	})
}

// RecordSubscription records a subscription opening on an operator.
func (m *SignalMetrics) RecordSubscription(operator string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := m.getOrCreateOperatorCounts(operator)
	counts.Subscriptions++
	counts.LastSignalAt = time.Now()

	m.subscriptionsTotal.WithLabelValues(operator).Inc()
}

// RecordSignal records one delivered signal on an operator.
func (m *SignalMetrics) RecordSignal(operator, signal string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := m.getOrCreateOperatorCounts(operator)
	switch signal {
	case signalNext:
		counts.NextSignals++
	case signalError:
		counts.ErrorSignals++
	case signalComplete:
		counts.CompleteSignals++
	}
	counts.LastSignalAt = time.Now()

	m.signalsTotal.WithLabelValues(operator, signal).Inc()
}

// RecordSubscriptionDuration records the time a subscription stayed open.
func (m *SignalMetrics) RecordSubscriptionDuration(operator string, d time.Duration) {
	m.subscriptionSeconds.WithLabelValues(operator).Observe(d.Seconds())
}

// GetSnapshot returns a point-in-time snapshot of all signal metrics.
func (m *SignalMetrics) GetSnapshot() SignalMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := SignalMetricsSnapshot{
		OperatorCounts: make(map[string]*OperatorSignalCounts),
		CollectedAt:    time.Now(),
	}

	for operator, counts := range m.operatorCounts {
		countsCopy := &OperatorSignalCounts{
			Subscriptions:   counts.Subscriptions,
			NextSignals:     counts.NextSignals,
			ErrorSignals:    counts.ErrorSignals,
			CompleteSignals: counts.CompleteSignals,
			LastSignalAt:    counts.LastSignalAt,
		}
		snapshot.OperatorCounts[operator] = countsCopy
		snapshot.TotalSubscriptions += counts.Subscriptions
		snapshot.TotalSignals += counts.NextSignals + counts.ErrorSignals + counts.CompleteSignals
	}

	return snapshot
}

func (m *SignalMetrics) getOrCreateOperatorCounts(operator string) *OperatorSignalCounts {
	if counts, ok := m.operatorCounts[operator]; ok {
		return counts
	}
	counts := &OperatorSignalCounts{}
	m.operatorCounts[operator] = counts
	return counts
}

// Reset resets all metrics (useful for testing).
func (m *SignalMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.operatorCounts = make(map[string]*OperatorSignalCounts)
	m.signalsTotal.Reset()
	m.subscriptionsTotal.Reset()
	m.subscriptionSeconds.Reset()
}

// meteredSubscriber counts the signals of one subscription against its
// operator label.
type meteredSubscriber struct {
	metrics  *SignalMetrics
	operator string
	actual   Subscriber
	start    time.Time
}

func (ms *meteredSubscriber) OnSubscribe(s Subscription) {
	ms.start = time.Now()
	ms.metrics.RecordSubscription(ms.operator)
	ms.actual.OnSubscribe(s)
}

func (ms *meteredSubscriber) OnNext(v any) {
	ms.metrics.RecordSignal(ms.operator, signalNext)
	ms.actual.OnNext(v)
}

func (ms *meteredSubscriber) OnError(err error) {
	ms.metrics.RecordSignal(ms.operator, signalError)
	ms.observeDuration()
	ms.actual.OnError(err)
}

func (ms *meteredSubscriber) OnComplete() {
	ms.metrics.RecordSignal(ms.operator, signalComplete)
	ms.observeDuration()
	ms.actual.OnComplete()
}

func (ms *meteredSubscriber) observeDuration() {
	if ms.start.IsZero() {
		return
	}
	ms.metrics.RecordSubscriptionDuration(ms.operator, time.Since(ms.start))
}

// DropMetrics counts the signals the drop funnel discards, split by kind.
type DropMetrics struct {
	mu sync.RWMutex

	droppedValues uint64
	droppedErrors uint64

	valuesTotal prometheus.Counter
	errorsTotal prometheus.Counter

	registerer prometheus.Registerer
	registered bool
}

// DropMetricsSnapshot provides a point-in-time view of drop metrics.
type DropMetricsSnapshot struct {
	DroppedValues uint64    `json:"dropped_values"`
	DroppedErrors uint64    `json:"dropped_errors"`
	CollectedAt   time.Time `json:"collected_at"`
}

// NewDropMetrics creates a drop metrics collector. An empty namespace falls
// back to "flowtap".
func NewDropMetrics(registerer prometheus.Registerer, namespace string) *DropMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "flowtap"
	}

	return &DropMetrics{
		registerer: registerer,
		valuesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "drops",
			Name:      "values_total",
			Help:      "Total number of values dropped after their subscription terminated",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "drops",
			Name:      "errors_total",
			Help:      "Total number of terminal errors dropped after another terminal signal won",
		}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *DropMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	for _, c := range []prometheus.Collector{m.valuesTotal, m.errorsTotal} {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Install registers counting drop hooks on r. Counted drops are consumed:
// drop sites see a nil result instead of the loud default.
func (m *DropMetrics) Install(r *Registry) {
	r.OnNextDropped(func(v any) error {
		m.recordValueDrop()
		return nil
	})
	r.OnErrorDropped(func(err error) error {
		m.recordErrorDrop()
		return nil
	})
}

func (m *DropMetrics) recordValueDrop() {
	m.mu.Lock()
	m.droppedValues++
	m.mu.Unlock()
	m.valuesTotal.Inc()
}

func (m *DropMetrics) recordErrorDrop() {
	m.mu.Lock()
	m.droppedErrors++
	m.mu.Unlock()
	m.errorsTotal.Inc()
}

// GetSnapshot returns a point-in-time snapshot of drop metrics.
func (m *DropMetrics) GetSnapshot() DropMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return DropMetricsSnapshot{
		DroppedValues: m.droppedValues,
		DroppedErrors: m.droppedErrors,
		CollectedAt:   time.Now(),
	}
}

// Reset clears the internal counts (useful for testing). The Prometheus
// counters are monotonic and keep their totals.
func (m *DropMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.droppedValues = 0
	m.droppedErrors = 0
}
