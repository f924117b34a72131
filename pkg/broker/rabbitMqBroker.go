package broker

import (
	"fmt"
	"sync"

	"maps"

	"context"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulsefit/checkin-sync/pkg/config"
	"github.com/pulsefit/checkin-sync/schema"
)

type RabbitMQBrokerCreator func(ctx context.Context, settings *config.BrokerSettings) (MessageBroker, error)

var NewRabbitMqBroker RabbitMQBrokerCreator = func(ctx context.Context, settings *config.BrokerSettings) (MessageBroker, error) {
	conn, err := amqp.Dial(settings.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	// Log connection loss; publishes will start failing and the caller
	// treats publish errors as non-fatal anyway.
	notifyClose := make(chan *amqp.Error)
	conn.NotifyClose(notifyClose)
	go func() {
		for err := range notifyClose {
			logrus.WithError(err).Warn("RabbitMQ connection closed")
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// ExchangeDeclare is idempotent and has no effect if the exchange is already in place
	err = ch.ExchangeDeclare(
		settings.Exchange, // name
		"topic",           // type
		true,              // durable
		false,             // auto-deleted
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &rabbitMqBroker{
		connection: conn,
		channel:    ch,
		exchange:   settings.Exchange,
	}, nil
}

type rabbitMqBroker struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	mu         sync.Mutex
}

func (r *rabbitMqBroker) Publish(ctx context.Context, event *schema.SessionEvent) error {
	tracer := otel.Tracer("checkin-sync")
	ctx, span := tracer.Start(ctx, "Publish",
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("rabbitmq"),
			semconv.MessagingDestinationKey.String(r.exchange),
			semconv.MessagingRabbitmqRoutingKeyKey.String(event.Kind),
		),
	)
	defer span.End()

	// Inject the trace context into the message headers
	propagator := otel.GetTextMapPropagator()
	traceHeaders := make(map[string]string)
	propagator.Inject(ctx, propagation.MapCarrier(traceHeaders))
	maps.Copy(event.Headers, traceHeaders)

	amqpHeaders := make(amqp.Table)
	for k, v := range event.Headers {
		amqpHeaders[k] = v
	}

	// amqp channels are not safe for concurrent publishes
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.channel.Publish(
		r.exchange, event.Kind, false, false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   event.ID,
			Timestamp:   event.CreatedAt,
			Body:        event.Payload,
			Headers:     amqpHeaders,
		},
	)
	if err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.Int("messaging.message_payload_size_bytes", len(event.Payload)),
	)

	return nil
}

func (r *rabbitMqBroker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		r.channel.Close()
	}
	if r.connection != nil {
		return r.connection.Close()
	}
	return nil
}
