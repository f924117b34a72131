package broker

import (
	"context"
	"fmt"

	"github.com/pulsefit/checkin-sync/pkg/config"
)

// NewBroker builds the message broker selected by configuration. The "none"
// type returns a broker that discards every event.
func NewBroker(ctx context.Context, cfg *config.BrokerSettings) (MessageBroker, error) {
	switch cfg.Type {
	case "none":
		return NoopBroker{}, nil
	case "rabbitmq":
		return NewRabbitMqBroker(ctx, cfg)
	case "gcp-pubsub":
		return NewPubSubClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s", cfg.Type)
	}
}
