package runtime

import (
	"fmt"

	liberrors "github.com/flowtap/flowtap/internal/runtime/errors"
	"github.com/flowtap/flowtap/internal/runtime/logging"
)

// NextDroppedError is the default result for a value that arrived after its
// subscription terminated. It matches errors.Is against ErrSignalDropped.
type NextDroppedError struct {
	Value any
}

func (e *NextDroppedError) Error() string {
	return fmt.Sprintf("flowtap: onNext value dropped: %v", e.Value)
}

func (e *NextDroppedError) Is(target error) bool {
	return target == liberrors.ErrSignalDropped
}

// ErrorDroppedError is the default result for a terminal error that arrived
// after another terminal signal already won.
type ErrorDroppedError struct {
	Cause error
}

func (e *ErrorDroppedError) Error() string {
	return fmt.Sprintf("flowtap: onError signal dropped: %v", e.Cause)
}

func (e *ErrorDroppedError) Unwrap() error {
	return e.Cause
}

func (e *ErrorDroppedError) Is(target error) bool {
	return target == liberrors.ErrSignalDropped
}

// DispatchOperatorError maps an operator failure through the registered
// error composition, falling back to the defaults when no hook is
// installed, and attaches source's assembly trace to the result when source
// captured one. ctx carries the value being processed when the failure
// happened, nil when unknown.
func (r *Registry) DispatchOperatorError(source Stage, err error, ctx any) error {
	var out error
	if hook := r.operatorErrorHook(); hook != nil {
		out = hook(err, ctx)
	} else {
		out = defaultOperatorError(err, ctx)
	}
	return attachAssemblyTrace(source, out)
}

// defaultOperatorError is the mapping used when no operator-error hook is
// installed: nil errors are synthesised from the contextual value, errors
// with context are wrapped so the context survives, and bare errors pass
// through untouched.
func defaultOperatorError(err error, ctx any) error {
	if err == nil {
		return fmt.Errorf("flowtap: operator error triggered by %v", ctx)
	}
	if ctx == nil {
		return err
	}
	return fmt.Errorf("flowtap: operator error on value [%v]: %w", ctx, err)
}

// DispatchNextDropped hands a dropped value to the registered drop hooks.
// Without a hook the loud default applies: the caller gets a
// NextDroppedError and decides how to surface it.
func (r *Registry) DispatchNextDropped(v any) error {
	if hook := r.nextDroppedHook(); hook != nil {
		return hook(v)
	}
	return &NextDroppedError{Value: v}
}

// DispatchErrorDropped hands a dropped terminal error to the registered
// drop hooks, defaulting to an ErrorDroppedError around the cause.
func (r *Registry) DispatchErrorDropped(err error) error {
	if hook := r.errorDroppedHook(); hook != nil {
		return hook(err)
	}
	return &ErrorDroppedError{Cause: err}
}

// reportDropped logs a drop result at a site with no caller left to return
// it to. Hook chains that consumed the drop return nil and stay quiet.
func (r *Registry) reportDropped(operator string, err error) {
	if err == nil {
		return
	}
	r.Logger().Error("signal dropped", err, logging.LogFields{"operator": operator})
}

// DispatchOperatorError maps err through the default registry.
func DispatchOperatorError(source Stage, err error, ctx any) error {
	return defaultRegistry.DispatchOperatorError(source, err, ctx)
}

// DispatchNextDropped routes v through the default registry's drop hooks.
func DispatchNextDropped(v any) error {
	return defaultRegistry.DispatchNextDropped(v)
}

// DispatchErrorDropped routes err through the default registry's drop hooks.
func DispatchErrorDropped(err error) error {
	return defaultRegistry.DispatchErrorDropped(err)
}
