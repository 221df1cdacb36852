package runtime

import (
	"github.com/flowtap/flowtap/internal/runtime/config"
	liberrors "github.com/flowtap/flowtap/internal/runtime/errors"
	"github.com/flowtap/flowtap/internal/runtime/ids"
	"github.com/flowtap/flowtap/internal/runtime/logging"
)

// Instruments bundles the collectors Configure installed, nil for the ones
// the configuration left disabled.
type Instruments struct {
	Signals *SignalMetrics
	Drops   *DropMetrics
}

// Configure applies cfg to the registry in one step: defaults are filled,
// the result validated, then the debug switch is set and the requested
// hooks installed. Hooks registered before Configure stay in place; call
// ResetAll first for a clean slate.
func (r *Registry) Configure(cfg config.Config) (*Instruments, error) {
	cfg = cfg.WithDefaults()
	if err := liberrors.NewConfigValidationError(cfg.Validate()); err != nil {
		return nil, err
	}

	if cfg.Debug {
		r.EnableOperatorDebug()
	} else {
		r.DisableOperatorDebug()
	}

	inst := &Instruments{}

	if cfg.MetricsEnabled {
		inst.Signals = NewSignalMetrics(nil, cfg.MetricsNamespace)
		if err := inst.Signals.Register(); err != nil {
			return nil, err
		}
		r.OnLastOperator(inst.Signals.Hook(nil))
	}

	if cfg.DropCountersEnabled {
		inst.Drops = NewDropMetrics(nil, cfg.MetricsNamespace)
		if err := inst.Drops.Register(); err != nil {
			return nil, err
		}
		inst.Drops.Install(r)
	}

	if cfg.TracingEnabled {
		r.OnLastOperator(SubscriptionTracingFor(cfg.TracerName, nil))
	}

	if cfg.SignalLogging {
		r.OnLastOperator(signalLoggingHook(r))
	}

	return inst, nil
}

// signalLoggingHook taps each subscription with the registry's logger, one
// subscription id per subscribe.
func signalLoggingHook(r *Registry) OperatorHook {
	return Lift(func(stage Stage, actual Subscriber) Subscriber {
		log := r.Logger().With(logging.LogFields{
			"source":          stage.Name(),
			"subscription_id": ids.NewID(),
		})
		return &logSubscriber{actual: actual, log: log}
	})
}
