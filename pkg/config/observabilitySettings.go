package config

// Observability configures tracing. TracingURL is the OTLP collector
// endpoint (host:port); leaving it empty disables the exporter.
type Observability struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`
	TracingURL  string `mapstructure:"tracing_url"`
}
