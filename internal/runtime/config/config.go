package config

import (
	"errors"

	liberrors "github.com/flowtap/flowtap/internal/runtime/errors"
)

// Defaults filled in by WithDefaults for enabled subsystems left unnamed.
const (
	DefaultMetricsNamespace = "flowtap"
	DefaultTracerName       = "flowtap-subscription-tracer"
)

// Config groups the interception settings a registry applies in one
// Configure call. Zero value means: no debug capture, no installed hooks.
type Config struct {
	// Debug switches assembly-snapshot capture on for stages built after
	// the configuration is applied.
	Debug bool

	// SignalLogging taps every subscription with a per-signal debug log.
	SignalLogging bool

	// Metrics configuration.
	MetricsEnabled bool
	// MetricsNamespace prefixes the Prometheus metric names.
	MetricsNamespace string

	// DropCountersEnabled installs counting drop hooks. Counted drops are
	// consumed into Prometheus counters instead of surfacing loudly.
	DropCountersEnabled bool

	// Tracing configuration.
	TracingEnabled bool
	// TracerName names the OpenTelemetry tracer used for subscription spans.
	TracerName string
}

// WithDefaults returns a copy of c with empty names filled in.
func (c Config) WithDefaults() Config {
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = DefaultMetricsNamespace
	}
	if c.TracerName == "" {
		c.TracerName = DefaultTracerName
	}
	return c
}

// Validate checks that every enabled subsystem is fully specified. Returns
// an error describing any missing configuration.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateMetrics()...)
	errs = append(errs, c.validateTracing()...)

	return errors.Join(errs...)
}

// validateMetrics checks metrics-specific required fields.
func (c *Config) validateMetrics() []error {
	if c.MetricsEnabled && c.MetricsNamespace == "" {
		return []error{liberrors.ErrMetricsNamespaceRequired}
	}
	return nil
}

// validateTracing checks tracing-specific required fields.
func (c *Config) validateTracing() []error {
	if c.TracingEnabled && c.TracerName == "" {
		return []error{liberrors.ErrTracerNameRequired}
	}
	return nil
}

// ValidateConfig is a convenience function to validate a config pointer.
// Returns nil if the config is valid.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}
