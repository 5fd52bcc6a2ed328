package config

import "time"

const (
	ServiceName    = "bike-sales-counter"
	ServiceVersion = "0.1.0"
)

// TelemetryConfig configures OTLP trace export. Tracing is off when
// Endpoint is empty.
type TelemetryConfig struct {
	Endpoint      string
	URLPath       string
	AuthHeader    string
	Insecure      bool
	ExportTimeout time.Duration
}

func LoadTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Endpoint:      envStr("OTEL_ENDPOINT", ""),
		URLPath:       envStr("OTEL_TRACES_PATH", "/v1/traces"),
		AuthHeader:    envStr("OTEL_AUTH_HEADER", ""),
		Insecure:      envBool("OTEL_INSECURE", false),
		ExportTimeout: envDur("OTEL_EXPORT_TIMEOUT", 30*time.Second),
	}
}
