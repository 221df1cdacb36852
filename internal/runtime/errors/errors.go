package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrNilHook                  = sterrors.New("flowtap: hook function must not be nil")
	ErrNilWrap                  = sterrors.New("flowtap: lift wrap function must not be nil")
	ErrNilSubscriber            = sterrors.New("flowtap: subscriber must not be nil")
	ErrNilFlow                  = sterrors.New("flowtap: deferred builder returned a nil flow")
	ErrSignalDropped            = sterrors.New("flowtap: signal could not be delivered")
	ErrPublisherRequired        = sterrors.New("flowtap: bridge publisher is required")
	ErrSubscriberRequired       = sterrors.New("flowtap: bridge subscriber is required")
	ErrTopicRequired            = sterrors.New("flowtap: bridge topic is required")
	ErrTracerNameRequired       = sterrors.New("flowtap: tracer name is required when tracing is enabled")
	ErrMetricsNamespaceRequired = sterrors.New("flowtap: metrics namespace is required when metrics are enabled")
)

// ConfigValidationError wraps the reason a Config failed validation.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("flowtap: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil so callers can wrap
// unconditionally.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
