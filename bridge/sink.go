package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/flowtap/flowtap/internal/runtime"
	liberrors "github.com/flowtap/flowtap/internal/runtime/errors"
	"github.com/flowtap/flowtap/internal/runtime/ids"
	"github.com/flowtap/flowtap/internal/runtime/jsoncodec"
	"github.com/flowtap/flowtap/internal/runtime/logging"
)

// SinkConfig describes where a sink publishes and how it reports failures.
type SinkConfig struct {
	// Publisher receives every value of the subscription.
	Publisher message.Publisher
	// Topic is the destination for pipeline values.
	Topic string
	// PoisonTopic, when set, receives a rendering of the pipeline's
	// terminal error, including its assembly trace if one is attached.
	PoisonTopic string
	// Logger overrides the registry logger for sink reporting.
	Logger logging.ServiceLogger
	// Registry supplies the fallback logger; nil means the default one.
	Registry *runtime.Registry
}

// Sink is a flow subscriber that publishes every value to a Watermill
// topic. Values that already are *message.Message pass through untouched,
// []byte and string become raw payloads, and everything else is JSON
// encoded. Publish failures cancel the subscription.
type Sink struct {
	pub    message.Publisher
	topic  string
	poison string
	log    logging.ServiceLogger

	mu         sync.Mutex
	sub        runtime.Subscription
	err        error
	terminated bool
	done       chan struct{}
}

// NewSink validates cfg and builds a sink ready to subscribe with.
func NewSink(cfg SinkConfig) (*Sink, error) {
	if cfg.Publisher == nil {
		return nil, liberrors.ErrPublisherRequired
	}
	if cfg.Topic == "" {
		return nil, liberrors.ErrTopicRequired
	}

	log := cfg.Logger
	if log == nil {
		reg := cfg.Registry
		if reg == nil {
			reg = runtime.Default()
		}
		log = reg.Logger()
	}

	return &Sink{
		pub:    cfg.Publisher,
		topic:  cfg.Topic,
		poison: cfg.PoisonTopic,
		log:    log.With(logging.LogFields{"topic": cfg.Topic}),
		done:   make(chan struct{}),
	}, nil
}

// Connect builds a sink from cfg and subscribes it to flow.
func Connect(flow *runtime.Flow, cfg SinkConfig) (*Sink, error) {
	s, err := NewSink(cfg)
	if err != nil {
		return nil, err
	}
	flow.Subscribe(s)
	return s, nil
}

// OnSubscribe implements runtime.Subscriber.
func (s *Sink) OnSubscribe(sub runtime.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub = sub
}

// OnNext publishes v to the sink topic. A publish failure terminates the
// sink and cancels the subscription; upstream may never send a terminal
// signal after the cancel, so the sink closes itself here.
func (s *Sink) OnNext(v any) {
	msg, err := toMessage(v)
	if err == nil {
		err = s.pub.Publish(s.topic, msg)
	}
	if err == nil {
		return
	}
	s.log.Error("failed to publish pipeline value", err, nil)
	s.terminate(err, true)
}

// OnError records the terminal error and, when a poison topic is
// configured, publishes its rendering there.
func (s *Sink) OnError(err error) {
	if s.poison != "" {
		s.publishPoison(err)
	}
	s.terminate(err, false)
}

// OnComplete implements runtime.Subscriber.
func (s *Sink) OnComplete() {
	s.terminate(nil, false)
}

func (s *Sink) terminate(err error, cancel bool) {
	s.mu.Lock()
	if err != nil && s.err == nil {
		s.err = err
	}
	sub := s.sub
	already := s.terminated
	s.terminated = true
	s.mu.Unlock()

	if cancel && sub != nil {
		sub.Cancel()
	}
	if !already {
		close(s.done)
	}
}

// Done is closed once the subscription terminated.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal or publish error, nil after clean completion.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the subscription terminates or ctx is done; context
// cancellation cancels the subscription.
func (s *Sink) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		s.mu.Lock()
		sub := s.sub
		s.mu.Unlock()
		if sub != nil {
			sub.Cancel()
		}
		return ctx.Err()
	}
}

func (s *Sink) publishPoison(cause error) {
	payload := map[string]any{"error": cause.Error()}
	if trace, ok := runtime.AssemblyTrace(cause); ok {
		payload["assembly_trace"] = trace
	}

	body, err := jsoncodec.Marshal(payload)
	if err != nil {
		s.log.Error("failed to encode poison payload", err, nil)
		return
	}
	if err := s.pub.Publish(s.poison, message.NewMessage(ids.NewID(), body)); err != nil {
		s.log.Error("failed to publish poison message", err, logging.LogFields{"poison_topic": s.poison})
	}
}

func toMessage(v any) (*message.Message, error) {
	switch payload := v.(type) {
	case *message.Message:
		return payload, nil
	case []byte:
		return message.NewMessage(ids.NewID(), payload), nil
	case string:
		return message.NewMessage(ids.NewID(), []byte(payload)), nil
	default:
		body, err := jsoncodec.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("flowtap: bridge payload encoding failed: %w", err)
		}
		return message.NewMessage(ids.NewID(), body), nil
	}
}
