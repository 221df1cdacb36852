// Package flowtap is a reactive pipeline runtime whose assembly step is
// fully interceptable. Every stage a pipeline builder constructs funnels
// through a Registry, and the registry's hook slots decide what actually
// ends up in the pipeline: operators can be decorated or replaced at
// assembly time, operator failures are mapped through a configurable error
// funnel, and signals that can no longer be delivered are routed to drop
// hooks instead of vanishing.
//
// Pipelines are assembled from sources (Just, Range, Empty, Error, Defer,
// Create, Merge) and chained operators (Map, Filter, DoOnNext,
// OnErrorReturn, Log, Tag, Named, Checkpoint), then run with Subscribe,
// Collect, or ForEach. Each stage implements Stage, so the finished graph
// can be walked, described, and exported as JSON without running it.
//
// # Hooks
//
// OnEachOperator decorates every stage at construction, OnLastOperator
// decorates the subscription point once per Subscribe. Repeated
// registrations compose in registration order; ResetAll restores the
// defaults. Lift and LiftWith turn a subscriber wrapper into a hook,
// optionally gated by stage tags, which is how the built-in signal metrics
// and OpenTelemetry subscription tracing attach themselves.
//
// # Assembly traces
//
// With EnableOperatorDebug every constructed stage records its construction
// call site. When an operator later fails, the error is decorated with a
// rendered trace of the assembly chain that produced it, as a secondary
// diagnostic that never alters the primary error. Flow.Checkpoint marks a
// single point of interest without enabling capture globally.
//
// # Drops
//
// Values and terminal errors arriving after a subscription terminated are
// handed to OnNextDropped/OnErrorDropped hooks. Without hooks the drop is
// loud: the drop site receives an error matching ErrSignalDropped and logs
// it. DropMetrics installs counting hooks that consume drops quietly.
//
// # Bridge
//
// The bridge package connects pipelines to Watermill: Source subscribes a
// flow to a topic, Sink publishes pipeline values and can forward terminal
// failures, assembly trace included, to a poison topic.
package flowtap
