package flowtap

import (
	"context"

	bridgepkg "github.com/flowtap/flowtap/bridge"
	runtimepkg "github.com/flowtap/flowtap/internal/runtime"
	configpkg "github.com/flowtap/flowtap/internal/runtime/config"
	errspkg "github.com/flowtap/flowtap/internal/runtime/errors"
	idspkg "github.com/flowtap/flowtap/internal/runtime/ids"
	jsoncodec "github.com/flowtap/flowtap/internal/runtime/jsoncodec"
	loggingpkg "github.com/flowtap/flowtap/internal/runtime/logging"
)

type (
	Config   = configpkg.Config
	Registry = runtimepkg.Registry

	Flow         = runtimepkg.Flow
	Stage        = runtimepkg.Stage
	Tag          = runtimepkg.Tag
	Subscriber   = runtimepkg.Subscriber
	Subscription = runtimepkg.Subscription
	Emitter      = runtimepkg.Emitter

	// Hook slots
	OperatorHook  = runtimepkg.OperatorHook
	ErrorHook     = runtimepkg.ErrorHook
	DropHook      = runtimepkg.DropHook
	ErrorDropHook = runtimepkg.ErrorDropHook

	// Lift engine
	LiftPredicate = runtimepkg.LiftPredicate
	LiftWrap      = runtimepkg.LiftWrap

	// Diagnostics
	TracedError       = runtimepkg.TracedError
	NextDroppedError  = runtimepkg.NextDroppedError
	ErrorDroppedError = runtimepkg.ErrorDroppedError
	StageDescription  = runtimepkg.StageDescription

	// Instrumentation
	Instruments           = runtimepkg.Instruments
	SignalMetrics         = runtimepkg.SignalMetrics
	OperatorSignalCounts  = runtimepkg.OperatorSignalCounts
	SignalMetricsSnapshot = runtimepkg.SignalMetricsSnapshot
	DropMetrics           = runtimepkg.DropMetrics
	DropMetricsSnapshot   = runtimepkg.DropMetricsSnapshot

	// Watermill bridge
	Sink       = bridgepkg.Sink
	SinkConfig = bridgepkg.SinkConfig

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	ConfigValidationError = errspkg.ConfigValidationError
)

var (
	NewRegistry = runtimepkg.NewRegistry
	Default     = runtimepkg.Default

	ValidateConfig = configpkg.ValidateConfig

	// Hook slots on the default registry
	OnEachOperator       = runtimepkg.OnEachOperator
	OnLastOperator       = runtimepkg.OnLastOperator
	OnOperatorError      = runtimepkg.OnOperatorError
	OnNextDropped        = runtimepkg.OnNextDropped
	OnErrorDropped       = runtimepkg.OnErrorDropped
	ResetOnEachOperator  = runtimepkg.ResetOnEachOperator
	ResetOnLastOperator  = runtimepkg.ResetOnLastOperator
	ResetOnOperatorError = runtimepkg.ResetOnOperatorError
	ResetOnNextDropped   = runtimepkg.ResetOnNextDropped
	ResetOnErrorDropped  = runtimepkg.ResetOnErrorDropped
	ResetAll             = runtimepkg.ResetAll
	EnableOperatorDebug  = runtimepkg.EnableOperatorDebug
	DisableOperatorDebug = runtimepkg.DisableOperatorDebug
	DebugEnabled         = runtimepkg.DebugEnabled

	// Dispatch funnel on the default registry
	DispatchOperatorError = runtimepkg.DispatchOperatorError
	DispatchNextDropped   = runtimepkg.DispatchNextDropped
	DispatchErrorDropped  = runtimepkg.DispatchErrorDropped

	// Lift engine
	Lift     = runtimepkg.Lift
	LiftWith = runtimepkg.LiftWith
	HasTag   = runtimepkg.HasTag

	// Introspection and traces
	Describe      = runtimepkg.Describe
	GraphJSON     = runtimepkg.GraphJSON
	ParentCount   = runtimepkg.ParentCount
	AssemblyTrace = runtimepkg.AssemblyTrace

	// Instrumentation
	NewSignalMetrics       = runtimepkg.NewSignalMetrics
	NewDropMetrics         = runtimepkg.NewDropMetrics
	SubscriptionTracing    = runtimepkg.SubscriptionTracing
	SubscriptionTracingFor = runtimepkg.SubscriptionTracingFor

	// Watermill bridge
	Source      = bridgepkg.Source
	NewSink     = bridgepkg.NewSink
	ConnectSink = bridgepkg.Connect

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrNilHook                  = errspkg.ErrNilHook
	ErrNilWrap                  = errspkg.ErrNilWrap
	ErrNilSubscriber            = errspkg.ErrNilSubscriber
	ErrNilFlow                  = errspkg.ErrNilFlow
	ErrSignalDropped            = errspkg.ErrSignalDropped
	ErrPublisherRequired        = errspkg.ErrPublisherRequired
	ErrSubscriberRequired       = errspkg.ErrSubscriberRequired
	ErrTopicRequired            = errspkg.ErrTopicRequired
	ErrTracerNameRequired       = errspkg.ErrTracerNameRequired
	ErrMetricsNamespaceRequired = errspkg.ErrMetricsNamespaceRequired

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter

	NewID = idspkg.NewID
)

// Defaults used by Config.WithDefaults.
const (
	DefaultMetricsNamespace = configpkg.DefaultMetricsNamespace
	DefaultTracerName       = configpkg.DefaultTracerName
)

// Just assembles a flow on the default registry that emits the given values
// and completes.
func Just(values ...any) *Flow {
	return runtimepkg.Default().Just(values...)
}

// Range assembles a flow on the default registry that emits count
// consecutive integers starting at start.
func Range(start, count int) *Flow {
	return runtimepkg.Default().Range(start, count)
}

// Empty assembles a flow on the default registry that completes without
// emitting.
func Empty() *Flow {
	return runtimepkg.Default().Empty()
}

// Error assembles a flow on the default registry that terminates with err.
func Error(err error) *Flow {
	return runtimepkg.Default().Error(err)
}

// Defer assembles a flow on the default registry that builds a fresh
// upstream per subscriber.
func Defer(builder func() *Flow) *Flow {
	return runtimepkg.Default().Defer(builder)
}

// Create assembles a producer-driven flow on the default registry.
func Create(name string, producer func(ctx context.Context, em Emitter)) *Flow {
	return runtimepkg.Default().Create(name, producer)
}

// Merge assembles a flow on the default registry that relays the signals of
// all sources.
func Merge(sources ...*Flow) *Flow {
	return runtimepkg.Default().Merge(sources...)
}

// Configure applies cfg to the default registry.
func Configure(cfg Config) (*Instruments, error) {
	return runtimepkg.Default().Configure(cfg)
}

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
