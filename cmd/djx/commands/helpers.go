package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/openjuicer/openjuicer/pkg/config"
	"github.com/openjuicer/openjuicer/pkg/plan"
	"github.com/openjuicer/openjuicer/pkg/planner"
	"github.com/openjuicer/openjuicer/pkg/registry"
	"github.com/openjuicer/openjuicer/pkg/telemetry"
	"github.com/openjuicer/openjuicer/pkg/templates"
	"github.com/openjuicer/openjuicer/pkg/trace"
)

func loadSettings() (*config.Settings, error) {
	s, err := config.Load(configPath)
	if err != nil {
		return nil, usageError(err)
	}
	return s, nil
}

// initTelemetry builds the telemetry stack from the settings, installs its
// logger as the process default, and exposes the metrics endpoint when
// enabled.
func initTelemetry(s *config.Settings) (*telemetry.Telemetry, error) {
	tel, err := telemetry.NewTelemetry(s.TelemetryConfig(""))
	if err != nil {
		return nil, err
	}
	log.Logger = tel.Logger.Zerolog()
	if err := tel.StartMetricsServer(); err != nil {
		return nil, err
	}
	return tel, nil
}

// openRegistry builds the operator registry from the configured catalog and
// keeps it fresh for the lifetime of the command. A missing catalog path
// yields an empty static registry, which makes the operator-name check fail
// open.
func openRegistry(ctx context.Context, s *config.Settings) registry.Registry {
	if s.RegistryPath == "" {
		return registry.NewStatic()
	}
	r := registry.NewFile(s.RegistryPath)
	if err := r.Watch(ctx); err != nil {
		log.Debug().Err(err).Str("path", s.RegistryPath).Msg("Operator catalog watch unavailable")
	}
	return r
}

// openStore builds the configured trace store backend.
func openStore(ctx context.Context, s *config.Settings) (trace.Store, error) {
	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	switch s.TraceBackend {
	case config.TraceBackendSQLite:
		return trace.NewSQLiteStore(ctx, s.SQLitePath())
	default:
		return trace.NewJSONLStore(s.TracePath())
	}
}

// newPlanner wires the template library, operator registry and the optional
// model collaborator. Template overrides hot-reload for the lifetime of the
// command.
func newPlanner(ctx context.Context, s *config.Settings, fullPlan bool) (*planner.Planner, error) {
	library, err := templates.NewLibrary(s.TemplateDir)
	if err != nil {
		return nil, err
	}
	if err := library.Watch(ctx); err != nil {
		log.Warn().Err(err).Str("dir", s.TemplateDir).Msg("Template watch unavailable")
	}
	model, err := s.NewModel()
	if err != nil {
		return nil, err
	}
	if fullPlan && model == nil {
		return nil, usageError(fmt.Errorf("--full-plan requires planner.enabled in the configuration"))
	}
	return &planner.Planner{
		Library:     library,
		Registry:    openRegistry(ctx, s),
		Model:       model,
		FullPlan:    fullPlan,
		Temperature: s.Planner.Temperature,
	}, nil
}

// savePlan writes the plan document, defaulting to <base>/plans/<plan_id>.yaml.
func savePlan(s *config.Settings, p *plan.Plan, out string) (string, error) {
	if out == "" {
		out = filepath.Join(s.BaseDir, "plans", p.PlanID+".yaml")
	}
	if err := plan.Save(p, out); err != nil {
		return "", err
	}
	return out, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
