/*
Package runtime provides the core interception infrastructure for flowtap.

# Architecture Overview

The runtime package implements assembly-time interception for push-based
pipelines. Every stage construction funnels through a Registry, which applies
the registered hook compositions; every dropped or failing signal funnels
through the same registry's dispatch side.

# Package Structure

The runtime package is organized into the following components:

## Hook Registry (registry.go)

The Registry struct holds five composable hook slots plus the debug switch:
  - EachOperator: decorates every assembled stage
  - LastOperator: decorates the terminal stage once per subscribe
  - OperatorError: translates operator failures
  - NextDropped / ErrorDropped: observe signals arriving after a terminal

Slots are swapped atomically; readers take one atomic load and never block
registration. A package-level default registry backs the free functions.

## Lift Engine (lift.go)

Lift and LiftWith turn a subscriber-wrapping function into an OperatorHook,
optionally gated by a predicate over the visited stage's own tags. The
predicate runs exactly once per visited stage, never per signal.

## Assembly Traces (trace.go, stacktrace/)

Stages capture a pruned construction-site snapshot when debug capture is on
(or forced by Checkpoint). On failure the upstream walk is rendered into a
human-readable trace and attached as a secondary diagnostic that never
alters the primary error's type or message.

## Dispatch Funnel (funnel.go)

DispatchOperatorError, DispatchNextDropped and DispatchErrorDropped run the
registered hook chains, falling back to loud defaults when a slot is empty.

## Flow Runtime (flow.go, sources.go, operators.go, merge.go)

A minimal untyped stage set hosting the interception layer: sources (Just,
Range, Empty, Error, Defer, Create, Merge), operators (Map, Filter,
DoOnNext, OnErrorReturn, Log, Tag, Named, Checkpoint) and terminals
(Subscribe, Collect, ForEach). Every stage satisfies Stage for
introspection via Describe and GraphJSON.

## Prebuilt Hooks (metrics.go, tracing.go, configure.go)

Production hooks built on the public Lift surface:
  - SignalMetrics / DropMetrics: Prometheus counters and histograms
  - SubscriptionTracing: one OpenTelemetry span per subscription
  - Configure: one-call setup from a config.Config

# Sub-packages

  - config/: declarative configuration with validation and defaults
  - errors/: sentinel errors and error types
  - ids/: ULID generation for subscription and message IDs
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters
  - stacktrace/: call-stack capture and pruning

# Usage Example

	reg := runtime.NewRegistry()
	reg.EnableOperatorDebug()
	reg.OnLastOperator(runtime.Lift(func(stage runtime.Stage, actual runtime.Subscriber) runtime.Subscriber {
		log.Println("subscribing to", stage.Name())
		return actual
	}))

	values, err := reg.Just(1, 2, 3).
		Map(double).
		Collect(ctx)
*/
package runtime
