package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openjuicer/openjuicer/pkg/plan"
	"github.com/openjuicer/openjuicer/pkg/trace"
)

func testPlan() *plan.Plan {
	return &plan.Plan{
		PlanID:      "plan_test123",
		UserIntent:  "clean the corpus",
		Workflow:    plan.WorkflowTextCleaning,
		DatasetPath: "data.jsonl",
		ExportPath:  "./output/result.jsonl",
		Modality:    plan.ModalityText,
		TextKeys:    []string{"text"},
		Operators: []plan.OperatorStep{
			{Name: "text_length_filter", Params: map[string]any{"min_len": 10}},
			{Name: "whitespace_normalization_mapper", Params: nil},
		},
		Revision: 1,
	}
}

func TestWriteRecipe(t *testing.T) {
	runDir := t.TempDir()
	p := testPlan()

	path, err := WriteRecipe(p, runDir)
	if err != nil {
		t.Fatalf("write recipe failed: %v", err)
	}
	if path != filepath.Join(runDir, "plan_test123.yaml") {
		t.Errorf("unexpected recipe path: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var r map[string]any
	if err := yaml.Unmarshal(data, &r); err != nil {
		t.Fatalf("recipe is not valid YAML: %v", err)
	}
	if r["project_name"] != "plan_test123" {
		t.Errorf("unexpected project_name: %v", r["project_name"])
	}
	process, ok := r["process"].([]any)
	if !ok || len(process) != 2 {
		t.Fatalf("unexpected process list: %v", r["process"])
	}
	// Nil params must serialize as an empty mapping, not null.
	second := process[1].(map[string]any)
	if params, ok := second["whitespace_normalization_mapper"].(map[string]any); !ok || len(params) != 0 {
		t.Errorf("expected empty params mapping, got %v", second)
	}

	// Re-executing the same plan overwrites the same artifact path.
	again, err := WriteRecipe(p, runDir)
	if err != nil {
		t.Fatal(err)
	}
	if again != path {
		t.Errorf("recipe path must be stable, got %s and %s", path, again)
	}
}

func TestExecute_DryRun(t *testing.T) {
	res, err := Execute(context.Background(), testPlan(), Options{
		RunDir: t.TempDir(),
		DryRun: true,
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("dry run must exit 0, got %d", res.ExitCode)
	}
	if res.Stdout != "dry-run: command not executed" {
		t.Errorf("unexpected stdout: %q", res.Stdout)
	}

	rec := res.Trace
	if rec.Status != trace.RunStatusSuccess {
		t.Errorf("expected success status, got %s", rec.Status)
	}
	if rec.ErrorType != trace.ErrorTypeNone {
		t.Errorf("expected error type none, got %s", rec.ErrorType)
	}
	if !strings.HasPrefix(rec.RunID, "run_") {
		t.Errorf("unexpected run id: %s", rec.RunID)
	}
	if rec.PlanID != "plan_test123" {
		t.Errorf("unexpected plan id: %s", rec.PlanID)
	}
	if !strings.Contains(rec.Command, "dj-process --config ") {
		t.Errorf("unexpected command: %s", rec.Command)
	}
	if rec.Artifacts["export_path"] != "./output/result.jsonl" {
		t.Errorf("unexpected artifacts: %v", rec.Artifacts)
	}
	if rec.DurationSeconds < 0 {
		t.Errorf("negative duration: %f", rec.DurationSeconds)
	}
	if _, err := time.Parse(time.RFC3339Nano, rec.StartTime); err != nil {
		t.Errorf("start_time not RFC3339: %v", err)
	}
}

func TestExecute_PropagatesExitCode(t *testing.T) {
	res, err := Execute(context.Background(), testPlan(), Options{
		RunDir:          t.TempDir(),
		CommandOverride: "echo boom >&2; exit 3",
		Timeout:         5 * time.Second,
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit 3, got %d", res.ExitCode)
	}
	if res.Trace.Status != trace.RunStatusFailed {
		t.Errorf("expected failed status, got %s", res.Trace.Status)
	}
	if res.Trace.ErrorType != trace.ErrorTypeCommandFailed {
		t.Errorf("expected command_failed, got %s", res.Trace.ErrorType)
	}
	if res.Trace.ErrorMessage != "boom" {
		t.Errorf("unexpected error message: %q", res.Trace.ErrorMessage)
	}
}

func TestExecute_Timeout(t *testing.T) {
	res, err := Execute(context.Background(), testPlan(), Options{
		RunDir:          t.TempDir(),
		CommandOverride: "sleep 5",
		Timeout:         100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.ExitCode != 124 {
		t.Errorf("timeout must map to exit 124, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "Timeout after 0s") {
		t.Errorf("expected timeout marker in stderr, got %q", res.Stderr)
	}
	if res.Trace.ErrorType != trace.ErrorTypeTimeout {
		t.Errorf("expected timeout classification, got %s", res.Trace.ErrorType)
	}
	if res.Trace.RetryLevel != trace.RetryLevelMedium {
		t.Errorf("expected medium retry level, got %s", res.Trace.RetryLevel)
	}
}

func TestExecute_MissingCommand(t *testing.T) {
	res, err := Execute(context.Background(), testPlan(), Options{
		RunDir:          t.TempDir(),
		CommandOverride: "echo 'sh: dj-process: command not found' >&2; exit 127",
		Timeout:         5 * time.Second,
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.ExitCode == 0 {
		t.Fatal("expected non-zero exit")
	}
	if res.Trace.ErrorType != trace.ErrorTypeMissingCommand {
		t.Errorf("expected missing_command, got %s (stderr %q)", res.Trace.ErrorType, res.Stderr)
	}
}

func TestModelInfo_Defaults(t *testing.T) {
	info := modelInfo(nil)
	if info["planner"] == "" || info["validator"] == "" {
		t.Errorf("expected default model names, got %v", info)
	}
	if info["executor"] != "deterministic-cli" {
		t.Errorf("unexpected executor entry: %v", info)
	}

	override := map[string]string{"planner": "custom"}
	if got := modelInfo(override)["planner"]; got != "custom" {
		t.Errorf("override ignored: %v", got)
	}
}
