package broker

import (
	"context"

	"github.com/pulsefit/checkin-sync/schema"
)

// MessageBroker publishes session events to a message broker.
type MessageBroker interface {
	// Publish sends the event; the event payload carries the session record
	// and the headers carry the propagated trace context.
	Publish(ctx context.Context, event *schema.SessionEvent) error
	// Close cleans up any resources (connections).
	Close() error
}

// NoopBroker discards every event. Used when no broker is configured.
type NoopBroker struct{}

func (NoopBroker) Publish(ctx context.Context, event *schema.SessionEvent) error { return nil }

func (NoopBroker) Close() error { return nil }
