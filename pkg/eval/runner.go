package eval

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openjuicer/openjuicer/pkg/executor"
	"github.com/openjuicer/openjuicer/pkg/plan"
	"github.com/openjuicer/openjuicer/pkg/planner"
	"github.com/openjuicer/openjuicer/pkg/telemetry"
	"github.com/openjuicer/openjuicer/pkg/trace"
)

// Execution modes for a batch.
const (
	ModeNone   = "none"
	ModeDryRun = "dry-run"
	ModeRun    = "run"
)

// Case statuses.
const (
	StatusPlannerError = "planner_error"
	StatusPlanInvalid  = "plan_invalid"
	StatusPlanValid    = "plan_valid"
)

// Execution statuses.
const (
	ExecSkipped = "skipped"
	ExecSuccess = "success"
	ExecFailed  = "failed"
)

// Generator is the plan-generation capability the harness depends on.
// *planner.Planner satisfies it.
type Generator interface {
	Generate(ctx context.Context, req planner.Request) (*plan.Plan, planner.Meta, error)
}

// ExecuteFunc runs one execution attempt. Tests substitute it to avoid
// spawning subprocesses.
type ExecuteFunc func(ctx context.Context, p *plan.Plan, opts executor.Options) (*executor.Result, error)

// Options configures one evaluation batch.
type Options struct {
	// Mode is none, dry-run or run.
	Mode string

	// Timeout bounds each execution attempt.
	Timeout time.Duration

	// Retries is the number of additional sequential attempts after a
	// failed execution. Zero means single-attempt.
	Retries int

	// Jobs is the worker count; cases are processed concurrently but each
	// case's attempts stay sequential.
	Jobs int

	// FailureTopK caps the failure bucket list in the summary.
	FailureTopK int

	// RunDir is where recipe artifacts are materialized.
	RunDir string

	// FullPlanMode relaxes task-success scoring to modality equivalence,
	// since full plans always carry the custom workflow.
	FullPlanMode bool

	// Strict keeps operator-name validation on with an empty catalog.
	Strict bool
}

// CaseResult is the complete outcome of one case, addressed by its input
// index so concurrent completion never reorders reports.
type CaseResult struct {
	Index            int      `json:"index"`
	Intent           string   `json:"intent"`
	ExpectedWorkflow string   `json:"expected_workflow,omitempty"`
	Status           string   `json:"status"`
	Errors           []string `json:"errors,omitempty"`
	PlanID           string   `json:"plan_id,omitempty"`
	Workflow         string   `json:"workflow,omitempty"`
	Modality         string   `json:"modality,omitempty"`
	PlanMode         string   `json:"plan_mode,omitempty"`
	ExecutionStatus  string   `json:"execution_status"`
	Attempts         int      `json:"attempts,omitempty"`
	RunID            string   `json:"run_id,omitempty"`
	ErrorType        string   `json:"error_type,omitempty"`
	RetryLevel       string   `json:"retry_level,omitempty"`
	TaskSuccess      *bool    `json:"task_success,omitempty"`
	DurationSeconds  float64  `json:"duration_seconds"`
}

// Runner executes evaluation batches.
type Runner struct {
	// Generator produces a plan per case.
	Generator Generator

	// Catalog supplies operator names for validation. Nil skips the check.
	Catalog plan.OperatorCatalog

	// Store receives every execution trace. Nil disables persistence.
	Store trace.Store

	// Execute overrides the execution function; nil means executor.Execute.
	Execute ExecuteFunc

	// Metrics receives per-case and per-batch observations. Nil disables
	// metrics recording.
	Metrics *telemetry.Metrics
}

// Run processes every case through a fixed-size worker pool and aggregates
// the results. Results are index-addressed, so output order always matches
// input order regardless of scheduling.
func (r *Runner) Run(ctx context.Context, cases []Case, opts Options) (*Report, error) {
	if opts.Mode == "" {
		opts.Mode = ModeDryRun
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if opts.Jobs > len(cases) {
		opts.Jobs = len(cases)
	}
	if opts.FailureTopK < 1 {
		opts.FailureTopK = 5
	}

	started := time.Now()
	results := make([]*CaseResult, len(cases))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < opts.Jobs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = r.runCase(ctx, idx, cases[idx], opts)
				if r.Metrics != nil {
					r.Metrics.RecordEvalCase(results[idx].Status)
				}
			}
		}()
	}

	for idx := range cases {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	if r.Metrics != nil {
		r.Metrics.RecordEvalBatch(time.Since(started))
	}

	report := &Report{
		Summary: summarize(results, opts),
		Results: results,
	}
	return report, nil
}

// runCase takes one case through generate, validate, and the retry loop.
// Attempts within a case are strictly sequential and stop at the first
// success.
func (r *Runner) runCase(ctx context.Context, idx int, c Case, opts Options) *CaseResult {
	start := time.Now()
	result := &CaseResult{
		Index:            idx,
		Intent:           c.Intent,
		ExpectedWorkflow: c.ExpectedWorkflow,
		ExecutionStatus:  ExecSkipped,
	}
	defer func() {
		result.DurationSeconds = time.Since(start).Seconds()
	}()

	p, meta, err := r.Generator.Generate(ctx, planner.Request{
		Intent:      c.Intent,
		DatasetPath: c.DatasetPath,
		ExportPath:  c.ExportPath,
		TextKeys:    c.TextKeys,
		ImageKey:    c.ImageKey,
	})
	if err != nil {
		result.Status = StatusPlannerError
		result.Errors = []string{err.Error()}
		return result
	}

	result.PlanID = p.PlanID
	result.Workflow = string(p.Workflow)
	result.Modality = string(p.Modality)
	result.PlanMode = meta.PlanMode

	if errs := plan.ValidateForExecution(p, plan.ValidateOptions{Catalog: r.Catalog, Strict: opts.Strict}); len(errs) > 0 {
		result.Status = StatusPlanInvalid
		result.Errors = errs
		return result
	}
	result.Status = StatusPlanValid

	match := workflowMatch(c.ExpectedWorkflow, p.Workflow, p.Modality, opts.FullPlanMode)
	result.TaskSuccess = &match

	if opts.Mode == ModeNone {
		return result
	}

	execute := r.Execute
	if execute == nil {
		execute = executor.Execute
	}
	execOpts := executor.Options{
		RunDir:  opts.RunDir,
		DryRun:  opts.Mode == ModeDryRun,
		Timeout: opts.Timeout,
		Metrics: r.Metrics,
	}

	maxAttempts := opts.Retries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := execute(ctx, p, execOpts)
		if err != nil {
			result.ExecutionStatus = ExecFailed
			result.Errors = append(result.Errors, err.Error())
			return result
		}

		res.Trace.Attempt = attempt
		if r.Store != nil {
			if err := r.Store.Save(res.Trace); err != nil {
				log.Warn().Err(err).Str("run_id", res.Trace.RunID).Msg("Failed to persist eval trace")
			}
		}

		result.Attempts = attempt
		result.RunID = res.Trace.RunID
		result.ErrorType = string(res.Trace.ErrorType)
		result.RetryLevel = string(res.Trace.RetryLevel)

		if res.ExitCode == 0 {
			result.ExecutionStatus = ExecSuccess
			return result
		}
		result.ExecutionStatus = ExecFailed
	}
	return result
}

// workflowMatch scores routing. Without an expectation every case passes. In
// full-plan mode the generated workflow is always custom, so the two template
// expectations are matched against the plan's modality instead; any other
// expectation still requires an exact workflow match.
func workflowMatch(expected string, workflow plan.Workflow, modality plan.Modality, fullPlanMode bool) bool {
	if expected == "" {
		return true
	}
	if !fullPlanMode {
		return expected == string(workflow)
	}
	switch plan.Workflow(expected) {
	case plan.WorkflowTextCleaning:
		return modality == plan.ModalityText
	case plan.WorkflowMultimodalDedup:
		return modality == plan.ModalityMultimodal || modality == plan.ModalityImage
	default:
		return expected == string(workflow)
	}
}
