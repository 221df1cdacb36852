// Package bridge connects flowtap pipelines to Watermill publishers and
// subscribers, so pipelines can drain message topics and feed their results
// back onto them.
package bridge

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/flowtap/flowtap/internal/runtime"
	liberrors "github.com/flowtap/flowtap/internal/runtime/errors"
)

// Source consumes topic from sub and emits each *message.Message into the
// returned flow. Messages are acked once emitted and nacked when the
// subscription no longer accepts them; the flow completes when the
// subscriber closes the stream and errors when subscribing fails. A nil
// registry builds against the default one.
func Source(reg *runtime.Registry, sub message.Subscriber, topic string) (*runtime.Flow, error) {
	if reg == nil {
		reg = runtime.Default()
	}
	if sub == nil {
		return nil, liberrors.ErrSubscriberRequired
	}
	if topic == "" {
		return nil, liberrors.ErrTopicRequired
	}

	flow := reg.Create("bridgeSource", func(ctx context.Context, em runtime.Emitter) {
		messages, err := sub.Subscribe(ctx, topic)
		if err != nil {
			em.Error(fmt.Errorf("flowtap: bridge subscribe on %q failed: %w", topic, err))
			return
		}
		go pump(messages, em)
	})
	return flow.Tag("topic", topic), nil
}

// pump moves messages into the emitter until the subscriber closes the
// stream. Once the emitter stops accepting, remaining messages are nacked
// so the broker can redeliver them elsewhere.
func pump(messages <-chan *message.Message, em runtime.Emitter) {
	for msg := range messages {
		if !em.Next(msg) {
			msg.Nack()
			continue
		}
		msg.Ack()
	}
	em.Complete()
}
