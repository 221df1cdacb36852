package runtime

import (
	"log/slog"
	"sync"
	"sync/atomic"

	liberrors "github.com/flowtap/flowtap/internal/runtime/errors"
	"github.com/flowtap/flowtap/internal/runtime/logging"
)

// OperatorHook rewrites one pipeline stage at interception time. It must
// return a non-nil flow; returning its argument means "leave unchanged".
type OperatorHook func(f *Flow) *Flow

// ErrorHook maps a failure and the value being processed when it happened
// (nil when unknown) to the error that continues downstream.
type ErrorHook func(err error, ctx any) error

// DropHook consumes a value that could not be delivered. A non-nil return
// propagates to whoever triggered the drop.
type DropHook func(v any) error

// ErrorDropHook consumes a terminal error that could not be delivered.
type ErrorDropHook func(err error) error

// Registry holds the interception state consulted by every flow built
// against it: the five hook slots and the debug-capture switch. Hot-path
// readers take one atomic load per slot; registration serialises behind a
// mutex that is never held while user hooks run.
type Registry struct {
	mu sync.Mutex

	eachOperator  atomic.Pointer[OperatorHook]
	lastOperator  atomic.Pointer[OperatorHook]
	operatorError atomic.Pointer[ErrorHook]
	nextDropped   atomic.Pointer[DropHook]
	errorDropped  atomic.Pointer[ErrorDropHook]

	debug  atomic.Bool
	logger atomic.Pointer[logging.ServiceLogger]
}

// NewRegistry returns an empty registry: no hooks installed, debug capture
// off. Flows built on it behave exactly like flows built with no
// interception at all.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry backing the package-level
// constructors and hook functions.
func Default() *Registry {
	return defaultRegistry
}

// OnEachOperator appends hook to the each-operator composition. Hooks run in
// registration order; each receives the stage returned by the one before it.
func (r *Registry) OnEachOperator(hook OperatorHook) {
	if hook == nil {
		panic(liberrors.ErrNilHook)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chained := chainOperatorHooks(r.eachOperator.Load(), hook)
	r.eachOperator.Store(&chained)
}

// OnLastOperator appends hook to the last-operator composition, applied once
// per Subscribe to the terminal stage.
func (r *Registry) OnLastOperator(hook OperatorHook) {
	if hook == nil {
		panic(liberrors.ErrNilHook)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chained := chainOperatorHooks(r.lastOperator.Load(), hook)
	r.lastOperator.Store(&chained)
}

// OnOperatorError appends hook to the operator-error composition. Each hook
// receives the error produced by the previous one together with the original
// contextual value.
func (r *Registry) OnOperatorError(hook ErrorHook) {
	if hook == nil {
		panic(liberrors.ErrNilHook)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chained := chainErrorHooks(r.operatorError.Load(), hook)
	r.operatorError.Store(&chained)
}

// OnNextDropped appends hook to the dropped-value composition. Hooks run in
// registration order; the first failure stops the chain and propagates.
func (r *Registry) OnNextDropped(hook DropHook) {
	if hook == nil {
		panic(liberrors.ErrNilHook)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chained := chainDropHooks(r.nextDropped.Load(), hook)
	r.nextDropped.Store(&chained)
}

// OnErrorDropped appends hook to the dropped-error composition.
func (r *Registry) OnErrorDropped(hook ErrorDropHook) {
	if hook == nil {
		panic(liberrors.ErrNilHook)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chained := chainErrorDropHooks(r.errorDropped.Load(), hook)
	r.errorDropped.Store(&chained)
}

// ResetOnEachOperator discards the whole each-operator composition,
// including sub-hooks registered through other call sites.
func (r *Registry) ResetOnEachOperator() {
	r.eachOperator.Store(nil)
}

// ResetOnLastOperator discards the whole last-operator composition.
func (r *Registry) ResetOnLastOperator() {
	r.lastOperator.Store(nil)
}

// ResetOnOperatorError restores the default operator-error mapping.
func (r *Registry) ResetOnOperatorError() {
	r.operatorError.Store(nil)
}

// ResetOnNextDropped restores the loud default for dropped values.
func (r *Registry) ResetOnNextDropped() {
	r.nextDropped.Store(nil)
}

// ResetOnErrorDropped restores the loud default for dropped errors.
func (r *Registry) ResetOnErrorDropped() {
	r.errorDropped.Store(nil)
}

// ResetAll clears every hook slot and switches debug capture off. The
// registry's logger is configuration rather than interception state and is
// left in place.
func (r *Registry) ResetAll() {
	r.ResetOnEachOperator()
	r.ResetOnLastOperator()
	r.ResetOnOperatorError()
	r.ResetOnNextDropped()
	r.ResetOnErrorDropped()
	r.debug.Store(false)
}

// EnableOperatorDebug switches assembly-snapshot capture on for stages built
// afterwards. Stages built before keep whatever they captured.
func (r *Registry) EnableOperatorDebug() {
	r.debug.Store(true)
}

// DisableOperatorDebug switches assembly-snapshot capture off.
func (r *Registry) DisableOperatorDebug() {
	r.debug.Store(false)
}

// DebugEnabled reports whether stages built now capture assembly snapshots.
func (r *Registry) DebugEnabled() bool {
	return r.debug.Load()
}

// EachOperatorHook returns the current each-operator composition, or nil
// when none is installed. The returned value is a consistent snapshot;
// later registrations do not affect it.
func (r *Registry) EachOperatorHook() OperatorHook {
	if p := r.eachOperator.Load(); p != nil {
		return *p
	}
	return nil
}

// LastOperatorHook returns the current last-operator composition, or nil.
func (r *Registry) LastOperatorHook() OperatorHook {
	if p := r.lastOperator.Load(); p != nil {
		return *p
	}
	return nil
}

func (r *Registry) operatorErrorHook() ErrorHook {
	if p := r.operatorError.Load(); p != nil {
		return *p
	}
	return nil
}

func (r *Registry) nextDroppedHook() DropHook {
	if p := r.nextDropped.Load(); p != nil {
		return *p
	}
	return nil
}

func (r *Registry) errorDroppedHook() ErrorDropHook {
	if p := r.errorDropped.Load(); p != nil {
		return *p
	}
	return nil
}

// SetLogger replaces the logger used for drop reports and the Log operator
// fallback. Passing nil restores the slog default.
func (r *Registry) SetLogger(logger logging.ServiceLogger) {
	if logger == nil {
		r.logger.Store(nil)
		return
	}
	r.logger.Store(&logger)
}

// Logger returns the registry's logger, falling back to a slog-backed one.
func (r *Registry) Logger() logging.ServiceLogger {
	if p := r.logger.Load(); p != nil {
		return *p
	}
	fallbackLoggerOnce.Do(func() {
		fallbackLogger = logging.NewSlogServiceLogger(slog.Default())
	})
	return fallbackLogger
}

var (
	fallbackLoggerOnce sync.Once
	fallbackLogger     logging.ServiceLogger
)

func chainOperatorHooks(prev *OperatorHook, next OperatorHook) OperatorHook {
	if prev == nil {
		return next
	}
	first := *prev
	return func(f *Flow) *Flow {
		return next(first(f))
	}
}

func chainErrorHooks(prev *ErrorHook, next ErrorHook) ErrorHook {
	if prev == nil {
		return next
	}
	first := *prev
	return func(err error, ctx any) error {
		return next(first(err, ctx), ctx)
	}
}

func chainDropHooks(prev *DropHook, next DropHook) DropHook {
	if prev == nil {
		return next
	}
	first := *prev
	return func(v any) error {
		if err := first(v); err != nil {
			return err
		}
		return next(v)
	}
}

func chainErrorDropHooks(prev *ErrorDropHook, next ErrorDropHook) ErrorDropHook {
	if prev == nil {
		return next
	}
	first := *prev
	return func(err error) error {
		if hookErr := first(err); hookErr != nil {
			return hookErr
		}
		return next(err)
	}
}

// OnEachOperator registers hook on the default registry.
func OnEachOperator(hook OperatorHook) { defaultRegistry.OnEachOperator(hook) }

// OnLastOperator registers hook on the default registry.
func OnLastOperator(hook OperatorHook) { defaultRegistry.OnLastOperator(hook) }

// OnOperatorError registers hook on the default registry.
func OnOperatorError(hook ErrorHook) { defaultRegistry.OnOperatorError(hook) }

// OnNextDropped registers hook on the default registry.
func OnNextDropped(hook DropHook) { defaultRegistry.OnNextDropped(hook) }

// OnErrorDropped registers hook on the default registry.
func OnErrorDropped(hook ErrorDropHook) { defaultRegistry.OnErrorDropped(hook) }

// ResetOnEachOperator clears the default registry's each-operator slot.
func ResetOnEachOperator() { defaultRegistry.ResetOnEachOperator() }

// ResetOnLastOperator clears the default registry's last-operator slot.
func ResetOnLastOperator() { defaultRegistry.ResetOnLastOperator() }

// ResetOnOperatorError clears the default registry's operator-error slot.
func ResetOnOperatorError() { defaultRegistry.ResetOnOperatorError() }

// ResetOnNextDropped clears the default registry's dropped-value slot.
func ResetOnNextDropped() { defaultRegistry.ResetOnNextDropped() }

// ResetOnErrorDropped clears the default registry's dropped-error slot.
func ResetOnErrorDropped() { defaultRegistry.ResetOnErrorDropped() }

// ResetAll clears every hook slot on the default registry and disables
// debug capture.
func ResetAll() { defaultRegistry.ResetAll() }

// EnableOperatorDebug enables snapshot capture on the default registry.
func EnableOperatorDebug() { defaultRegistry.EnableOperatorDebug() }

// DisableOperatorDebug disables snapshot capture on the default registry.
func DisableOperatorDebug() { defaultRegistry.DisableOperatorDebug() }

// DebugEnabled reports the default registry's debug-capture state.
func DebugEnabled() bool { return defaultRegistry.DebugEnabled() }
