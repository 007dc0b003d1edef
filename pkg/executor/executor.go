// Package executor materializes validated plans into recipe artifacts, runs
// them against the Data-Juicer engine, and classifies the outcome.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/openjuicer/openjuicer/pkg/plan"
	"github.com/openjuicer/openjuicer/pkg/telemetry"
	"github.com/openjuicer/openjuicer/pkg/trace"
)

// exitCodeTimeout is the conventional shell exit code for a timed-out
// command.
const exitCodeTimeout = 124

// defaultPlannerModel and defaultValidatorModel name the generation
// backends recorded in model_info when the caller supplies none.
const (
	defaultPlannerModel   = "qwen3-max-2026-01-23"
	defaultValidatorModel = "qwen3-max-2026-01-23"
)

// Options configures one execution attempt.
type Options struct {
	// RunDir is where recipe artifacts are materialized.
	RunDir string

	// DryRun skips the subprocess entirely and synthesizes a zero-exit
	// result.
	DryRun bool

	// Timeout bounds the subprocess; exceeding it force-terminates the
	// process and maps the outcome to exit code 124.
	Timeout time.Duration

	// CommandOverride replaces the dj-process command line. Used by
	// tests.
	CommandOverride string

	// ModelInfo overrides the recorded generation/validation backends.
	ModelInfo map[string]string

	// RetrievalMode is recorded on the trace; defaults to
	// workflow-first.
	RetrievalMode string

	// Metrics receives execution counters and durations. Nil disables
	// metrics recording.
	Metrics *telemetry.Metrics
}

// Result is the complete outcome of one execution attempt.
type Result struct {
	// Trace is the immutable record of the attempt.
	Trace *trace.Record

	// ExitCode is the engine's exit code (or 124 on timeout).
	ExitCode int

	// Stdout and Stderr are the captured engine streams.
	Stdout string
	Stderr string
}

// recipe is the artifact handed to dj-process. Field order matters only
// for readability of the generated YAML.
type recipe struct {
	ProjectName string           `yaml:"project_name"`
	DatasetPath string           `yaml:"dataset_path"`
	ExportPath  string           `yaml:"export_path"`
	TextKeys    []string         `yaml:"text_keys"`
	ImageKey    string           `yaml:"image_key,omitempty"`
	NP          int              `yaml:"np"`
	SkipOpError bool             `yaml:"skip_op_error"`
	Process     []map[string]any `yaml:"process"`
}

// WriteRecipe materializes the plan's operators and global parameters into
// a YAML recipe keyed by plan id under runDir. Re-executing the same plan
// overwrites the same artifact path.
func WriteRecipe(p *plan.Plan, runDir string) (string, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	process := make([]map[string]any, 0, len(p.Operators))
	for i := range p.Operators {
		op := &p.Operators[i]
		params := op.Params
		if params == nil {
			params = map[string]any{}
		}
		process = append(process, map[string]any{op.Name: params})
	}

	r := recipe{
		ProjectName: p.PlanID,
		DatasetPath: p.DatasetPath,
		ExportPath:  p.ExportPath,
		TextKeys:    p.TextKeys,
		ImageKey:    p.ImageKey,
		NP:          1,
		SkipOpError: false,
		Process:     process,
	}

	data, err := yaml.Marshal(&r)
	if err != nil {
		return "", fmt.Errorf("failed to encode recipe: %w", err)
	}

	recipePath := filepath.Join(runDir, p.PlanID+".yaml")
	if err := os.WriteFile(recipePath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write recipe: %w", err)
	}
	return recipePath, nil
}

// Execute runs one attempt of the plan: recipe materialization, subprocess
// invocation (or dry-run synthesis), outcome classification, and trace
// construction. The trace is returned to the caller for persistence; the
// executor itself never writes to a store.
func Execute(ctx context.Context, p *plan.Plan, opts Options) (*Result, error) {
	tracer := otel.Tracer("openjuicer/executor")
	ctx, span := tracer.Start(ctx, "executor.Execute")
	span.SetAttributes(
		attribute.String("plan_id", p.PlanID),
		attribute.String("workflow", string(p.Workflow)),
		attribute.Bool("dry_run", opts.DryRun),
	)
	defer span.End()

	recipePath, err := WriteRecipe(p, opts.RunDir)
	if err != nil {
		return nil, err
	}

	if opts.Metrics != nil {
		opts.Metrics.ExecutionStarted()
	}

	command := opts.CommandOverride
	if command == "" {
		command = fmt.Sprintf("dj-process --config %s", recipePath)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	start := time.Now().UTC()

	var (
		exitCode int
		stdout   string
		stderr   string
	)
	if opts.DryRun {
		stdout = "dry-run: command not executed"
	} else {
		exitCode, stdout, stderr = runCommand(ctx, command, timeout)
	}

	end := time.Now().UTC()
	duration := end.Sub(start)

	status := trace.RunStatusFailed
	if exitCode == 0 {
		status = trace.RunStatusSuccess
	}
	classified := Classify(exitCode, stderr)

	errorMessage := ""
	if exitCode != 0 {
		errorMessage = strings.TrimSpace(stderr)
	}

	rec := &trace.Record{
		RunID:               trace.NewRunID(),
		PlanID:              p.PlanID,
		StartTime:           start.Format(time.RFC3339Nano),
		EndTime:             end.Format(time.RFC3339Nano),
		DurationSeconds:     duration.Seconds(),
		ModelInfo:           modelInfo(opts.ModelInfo),
		RetrievalMode:       retrievalMode(opts.RetrievalMode),
		SelectedWorkflow:    string(p.Workflow),
		GeneratedRecipePath: recipePath,
		Command:             command,
		Status:              status,
		Artifacts:           map[string]any{"export_path": p.ExportPath},
		ErrorType:           classified.ErrorType,
		ErrorMessage:        errorMessage,
		RetryLevel:          classified.RetryLevel,
		NextActions:         classified.NextActions,
	}

	if opts.Metrics != nil {
		opts.Metrics.RecordExecutionCompleted(
			string(p.Workflow), string(status), string(classified.ErrorType), duration)
	}

	log.Debug().
		Str("run_id", rec.RunID).
		Str("plan_id", p.PlanID).
		Int("exit_code", exitCode).
		Str("status", string(status)).
		Dur("duration", duration).
		Msg("Plan execution finished")

	return &Result{Trace: rec, ExitCode: exitCode, Stdout: stdout, Stderr: stderr}, nil
}

// runCommand spawns the engine through the shell and enforces the timeout.
// On timeout the process group is force-terminated and the outcome maps to
// exit code 124 with a Timeout marker appended to stderr.
func runCommand(ctx context.Context, command string, timeout time.Duration) (int, string, string) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "/bin/sh", "-c", command)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	stdout := outBuf.String()
	stderr := errBuf.String()

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		stderr += fmt.Sprintf("\nTimeout after %ds", int(timeout.Seconds()))
		return exitCodeTimeout, stdout, stderr
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), stdout, stderr
		}
		// The command never started (e.g. shell missing); synthesize a
		// classifiable failure.
		if stderr == "" {
			stderr = err.Error()
		}
		return 127, stdout, stderr
	}
	return 0, stdout, stderr
}

func modelInfo(override map[string]string) map[string]string {
	if len(override) > 0 {
		return override
	}
	planner := os.Getenv("DJX_PLANNER_MODEL")
	if planner == "" {
		planner = defaultPlannerModel
	}
	validator := os.Getenv("DJX_VALIDATOR_MODEL")
	if validator == "" {
		validator = defaultValidatorModel
	}
	return map[string]string{
		"planner":   planner,
		"validator": validator,
		"executor":  "deterministic-cli",
	}
}

func retrievalMode(mode string) string {
	if mode == "" {
		return "workflow-first"
	}
	return mode
}
