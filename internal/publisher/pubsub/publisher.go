// Package pubsub implements a Google Cloud Pub/Sub publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// publishFunc sends one message and waits for its server ID.
type publishFunc func(ctx context.Context, msg *pubsub.Message) (string, error)

// Publisher wraps a Pub/Sub topic.
type Publisher struct {
	publish publishFunc
	stop    func()
}

// New creates a Publisher for topic. Stop flushes and releases the topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{
		publish: func(ctx context.Context, msg *pubsub.Message) (string, error) {
			return topic.Publish(ctx, msg).Get(ctx)
		},
		stop: topic.Stop,
	}
}

// Publish marshals the payload to JSON and publishes it with attributes.
func (p *Publisher) Publish(ctx context.Context, attributes map[string]string, payload any) (string, error) {
	if p == nil || p.publish == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: make(map[string]string, len(attributes))}
	for k, v := range attributes {
		msg.Attributes[k] = v
	}
	id, err := p.publish(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop sends any buffered messages and stops the topic's goroutines.
func (p *Publisher) Stop() {
	if p != nil && p.stop != nil {
		p.stop()
	}
}
