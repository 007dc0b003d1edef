package config

import (
	"github.com/openjuicer/openjuicer/pkg/telemetry"
)

// TelemetryConfig maps the settings onto the telemetry stack configuration.
func (s *Settings) TelemetryConfig(version string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	if version != "" {
		cfg.ServiceVersion = version
	}

	cfg.Logging.Level = s.Logging.Level
	cfg.Logging.Format = s.Logging.Format

	cfg.Metrics.Enabled = s.Metrics.Enabled
	if s.Metrics.ListenAddress != "" {
		cfg.Metrics.ListenAddress = s.Metrics.ListenAddress
	}
	if s.Metrics.Path != "" {
		cfg.Metrics.Path = s.Metrics.Path
	}

	cfg.Tracing.Enabled = s.Tracing.Enabled
	if s.Tracing.Exporter != "" {
		cfg.Tracing.Exporter = s.Tracing.Exporter
	}
	cfg.Tracing.Endpoint = s.Tracing.Endpoint

	return cfg
}
