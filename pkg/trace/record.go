// Package trace provides the append-only run trace store and its derived
// statistics. Records are immutable: once written they are never edited or
// removed.
package trace

import (
	"fmt"

	"github.com/google/uuid"
)

// RunStatus is the terminal outcome of one execution attempt.
type RunStatus string

const (
	// RunStatusSuccess means the engine exited with code 0.
	RunStatusSuccess RunStatus = "success"

	// RunStatusFailed means the engine exited non-zero or timed out.
	RunStatusFailed RunStatus = "failed"
)

// ErrorType classifies an execution failure. The classifier in pkg/executor
// is the only producer.
type ErrorType string

const (
	ErrorTypeNone                ErrorType = "none"
	ErrorTypeMissingCommand      ErrorType = "missing_command"
	ErrorTypeMissingPath         ErrorType = "missing_path"
	ErrorTypePermissionDenied    ErrorType = "permission_denied"
	ErrorTypeUnsupportedOperator ErrorType = "unsupported_operator"
	ErrorTypeTimeout             ErrorType = "timeout"
	ErrorTypeCommandFailed       ErrorType = "command_failed"
)

// RetryLevel is an advisory retryability hint attached to a classified
// error. It is surfaced to callers and automation but never auto-enforced.
type RetryLevel string

const (
	RetryLevelNone   RetryLevel = "none"
	RetryLevelLow    RetryLevel = "low"
	RetryLevelMedium RetryLevel = "medium"
	RetryLevelHigh   RetryLevel = "high"
)

// Record is an immutable trace of one execution attempt of a plan. Created
// exclusively by the executor, persisted immediately, read-only thereafter.
type Record struct {
	// RunID is the unique identity of this attempt.
	RunID string `json:"run_id"`

	// PlanID back-references the executed plan; the record does not own it.
	PlanID string `json:"plan_id"`

	// StartTime and EndTime bound the attempt in wall-clock time.
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`

	// DurationSeconds is EndTime minus StartTime.
	DurationSeconds float64 `json:"duration_seconds"`

	// ModelInfo describes the generation/validation backends used.
	ModelInfo map[string]string `json:"model_info"`

	// RetrievalMode records how operator context was retrieved.
	RetrievalMode string `json:"retrieval_mode"`

	// SelectedWorkflow is the workflow the executed plan carried.
	SelectedWorkflow string `json:"selected_workflow"`

	// GeneratedRecipePath is the recipe artifact materialized for the run.
	GeneratedRecipePath string `json:"generated_recipe_path"`

	// Command is the exact command line handed to the engine.
	Command string `json:"command"`

	// Status is success or failed.
	Status RunStatus `json:"status"`

	// Artifacts maps artifact names to locations, e.g. the export path.
	Artifacts map[string]any `json:"artifacts"`

	// ErrorType, ErrorMessage and RetryLevel describe a classified failure.
	ErrorType    ErrorType  `json:"error_type"`
	ErrorMessage string     `json:"error_message"`
	RetryLevel   RetryLevel `json:"retry_level"`

	// NextActions are static remediation hints for the classified failure.
	NextActions []string `json:"next_actions"`

	// Attempt is the 1-based retry counter set by the evaluation harness.
	// Zero means the record came from a direct apply.
	Attempt int `json:"attempt,omitempty"`
}

// NewRunID returns a fresh run identity of the form run_<12 hex chars>.
func NewRunID() string {
	u := uuid.New()
	return fmt.Sprintf("run_%x", u[:6])
}
