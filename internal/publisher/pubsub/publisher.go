// Package pubsub publishes job events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// Attributer is implemented by payloads that carry message attributes.
type Attributer interface {
	Attributes() map[string]string
}

// Publisher sends JSON payloads to a single topic.
type Publisher struct {
	topic   string
	publish func(ctx context.Context, msg *pubsub.Message) (string, error)
	stop    func()
}

// New creates a Publisher for the topic handle. Stop flushes pending messages.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{
		topic: topic.ID(),
		publish: func(ctx context.Context, msg *pubsub.Message) (string, error) {
			return topic.Publish(ctx, msg).Get(ctx)
		},
		stop: topic.Stop,
	}
}

// Publish marshals the payload to JSON and waits for the server ID. The
// topic argument must match the configured topic when set.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.publish == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	if topic != "" && topic != p.topic {
		return "", fmt.Errorf("publisher bound to topic %q, got %q", p.topic, topic)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := &pubsub.Message{Data: data}
	if a, ok := payload.(Attributer); ok {
		msg.Attributes = a.Attributes()
	}
	id, err := p.publish(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop flushes buffered messages and releases the topic's goroutines.
func (p *Publisher) Stop() {
	if p.stop != nil {
		p.stop()
	}
}
