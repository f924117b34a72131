package config

// BrokerSettings holds configuration for connecting to a message broker.
// Type "none" disables session-event publishing.
type BrokerSettings struct {
	Type      string `mapstructure:"type" validate:"required,oneof=none rabbitmq gcp-pubsub"`
	URL       string `mapstructure:"url"`
	Exchange  string `mapstructure:"exchange"`
	ProjectID string `mapstructure:"projectID"` // Optional for brokers like GCP Pub/Sub
}
