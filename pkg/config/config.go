// Package config loads and validates the djx settings file. Settings are
// plain YAML layered over built-in defaults; struct tags drive validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Trace store backends.
const (
	TraceBackendJSONL  = "jsonl"
	TraceBackendSQLite = "sqlite"
)

// Settings is the complete djx configuration.
type Settings struct {
	// BaseDir is the root directory for runs, traces, reports and the
	// operator catalog. Defaults to ~/.djx.
	BaseDir string `yaml:"base_dir" validate:"required"`

	// TraceBackend selects the run trace store implementation.
	TraceBackend string `yaml:"trace_backend" validate:"required,oneof=jsonl sqlite"`

	// RegistryPath points at the installed-operator catalog YAML. Empty
	// means no catalog; operator-name validation then fails open.
	RegistryPath string `yaml:"registry_path"`

	// TemplateDir overrides the embedded workflow templates. Empty means
	// embedded-only.
	TemplateDir string `yaml:"template_dir"`

	// Logging configures the structured logger.
	Logging LoggingSettings `yaml:"logging"`

	// Metrics configures the optional Prometheus endpoint.
	Metrics MetricsSettings `yaml:"metrics"`

	// Tracing configures the optional OpenTelemetry exporter.
	Tracing TracingSettings `yaml:"tracing"`

	// Execution configures the engine subprocess.
	Execution ExecutionSettings `yaml:"execution"`

	// Eval configures the evaluation harness defaults.
	Eval EvalSettings `yaml:"eval"`

	// Planner configures the optional language-model collaborator.
	Planner PlannerSettings `yaml:"planner"`
}

// LoggingSettings configures the structured logger.
type LoggingSettings struct {
	// Level is the minimum log level.
	Level string `yaml:"level" validate:"oneof=trace debug info warn error fatal"`

	// Format is console or json.
	Format string `yaml:"format" validate:"oneof=console json"`
}

// MetricsSettings configures the optional Prometheus endpoint.
type MetricsSettings struct {
	// Enabled turns the metrics endpoint on.
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the metrics HTTP listen address.
	ListenAddress string `yaml:"listen_address"`

	// Path is the metrics HTTP path.
	Path string `yaml:"path"`
}

// TracingSettings configures the optional OpenTelemetry exporter.
type TracingSettings struct {
	// Enabled turns span export on.
	Enabled bool `yaml:"enabled"`

	// Exporter selects the span exporter.
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`

	// Endpoint is the OTLP collector endpoint.
	Endpoint string `yaml:"endpoint"`
}

// ExecutionSettings configures the engine subprocess.
type ExecutionSettings struct {
	// TimeoutSeconds bounds each execution attempt.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"gt=0"`
}

// EvalSettings configures evaluation harness defaults.
type EvalSettings struct {
	// Jobs is the default worker count.
	Jobs int `yaml:"jobs" validate:"gte=1"`

	// Retries is the default number of additional attempts per case.
	Retries int `yaml:"retries" validate:"gte=0"`

	// FailureTopK caps the failure bucket list in summaries.
	FailureTopK int `yaml:"failure_top_k" validate:"gte=1"`
}

// PlannerSettings configures the optional model collaborator. When Enabled
// is false the planner runs in deterministic template mode only.
type PlannerSettings struct {
	// Enabled turns the model collaborator on.
	Enabled bool `yaml:"enabled"`

	// Model is the model name passed to the provider.
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint, e.g. for a local gateway.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// Temperature is the sampling temperature; zero means provider default.
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
}

// Default returns the built-in settings.
func Default() *Settings {
	base := ".djx"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".djx")
	}
	return &Settings{
		BaseDir:      base,
		TraceBackend: TraceBackendJSONL,
		Logging: LoggingSettings{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsSettings{
			Enabled:       false,
			ListenAddress: ":9090",
			Path:          "/metrics",
		},
		Tracing: TracingSettings{
			Enabled:  false,
			Exporter: "none",
		},
		Execution: ExecutionSettings{
			TimeoutSeconds: 300,
		},
		Eval: EvalSettings{
			Jobs:        4,
			Retries:     0,
			FailureTopK: 5,
		},
		Planner: PlannerSettings{
			Enabled:     false,
			Model:       "qwen3-max-2026-01-23",
			APIKeyEnv:   "DJX_API_KEY",
			Temperature: 0.2,
		},
	}
}

// Load reads the settings file at path over the defaults. An empty path
// loads <BaseDir>/config.yaml when it exists and plain defaults otherwise.
func Load(path string) (*Settings, error) {
	s := Default()

	if path == "" {
		candidate := filepath.Join(s.BaseDir, "config.yaml")
		if _, err := os.Stat(candidate); err != nil {
			return s, s.Validate()
		}
		path = candidate
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings against their struct tags.
func (s *Settings) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(s); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RunDir is where recipe artifacts are written.
func (s *Settings) RunDir() string {
	return filepath.Join(s.BaseDir, "runs")
}

// TracePath is the JSONL trace store location.
func (s *Settings) TracePath() string {
	return filepath.Join(s.BaseDir, "traces.jsonl")
}

// SQLitePath is the SQLite trace store location.
func (s *Settings) SQLitePath() string {
	return filepath.Join(s.BaseDir, "traces.db")
}

// ReportDir is where evaluation reports are written.
func (s *Settings) ReportDir() string {
	return filepath.Join(s.BaseDir, "reports")
}

// HistoryPath is the evaluation history log location.
func (s *Settings) HistoryPath() string {
	return filepath.Join(s.BaseDir, "eval_history.jsonl")
}
