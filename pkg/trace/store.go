package trace

import "errors"

// ErrNotFound is returned when a run id has no record.
var ErrNotFound = errors.New("run trace not found")

// Store is the append-only persistence layer for run traces. Save must be
// safe under concurrent invocation: each append is a single atomic write of
// one record. Records are never updated or deleted.
type Store interface {
	// Save appends one record.
	Save(record *Record) error

	// Get scans records in append order and returns the first one whose
	// run id matches. Returns ErrNotFound when absent.
	Get(runID string) (*Record, error)

	// ListByPlan returns the records for a plan in append order. A
	// positive limit keeps only the last limit records (most recent).
	ListByPlan(planID string, limit int) ([]*Record, error)

	// ListAll returns every record in append order. A positive limit
	// keeps only the last limit records.
	ListAll(limit int) ([]*Record, error)

	// Stats aggregates over all records, or only those matching planID
	// when it is non-empty.
	Stats(planID string) (*Stats, error)

	// Close releases any backing resources.
	Close() error
}

// WorkflowStats is the per-workflow breakdown inside Stats.
type WorkflowStats struct {
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Stats are the derived statistics over a set of trace records.
type Stats struct {
	TotalRuns            int                       `json:"total_runs"`
	SuccessRuns          int                       `json:"success_runs"`
	FailedRuns           int                       `json:"failed_runs"`
	ExecutionSuccessRate float64                   `json:"execution_success_rate"`
	AvgDurationSeconds   float64                   `json:"avg_duration_seconds"`
	PlanID               string                    `json:"plan_id,omitempty"`
	ByWorkflow           map[string]*WorkflowStats `json:"by_workflow"`
	ByErrorType          map[string]int            `json:"by_error_type"`
}

// computeStats derives statistics from records already filtered by plan.
// Zero records yield zero counts and 0.0 rates, never a division by zero.
func computeStats(records []*Record, planID string) *Stats {
	stats := &Stats{
		PlanID:      planID,
		ByWorkflow:  map[string]*WorkflowStats{},
		ByErrorType: map[string]int{},
	}
	if len(records) == 0 {
		return stats
	}

	var totalDuration float64
	for _, rec := range records {
		stats.TotalRuns++
		if rec.Status == RunStatusSuccess {
			stats.SuccessRuns++
		} else {
			stats.FailedRuns++
		}
		totalDuration += rec.DurationSeconds

		workflow := rec.SelectedWorkflow
		if workflow == "" {
			workflow = "unknown"
		}
		wf, ok := stats.ByWorkflow[workflow]
		if !ok {
			wf = &WorkflowStats{}
			stats.ByWorkflow[workflow] = wf
		}
		wf.Total++
		if rec.Status == RunStatusSuccess {
			wf.Success++
		} else {
			wf.Failed++
		}

		errorType := string(rec.ErrorType)
		if errorType == "" {
			errorType = string(ErrorTypeNone)
		}
		stats.ByErrorType[errorType]++
	}

	stats.ExecutionSuccessRate = float64(stats.SuccessRuns) / float64(stats.TotalRuns)
	stats.AvgDurationSeconds = totalDuration / float64(stats.TotalRuns)
	for _, wf := range stats.ByWorkflow {
		wf.SuccessRate = float64(wf.Success) / float64(wf.Total)
	}
	return stats
}

// tail keeps the last limit records when limit is positive.
func tail(records []*Record, limit int) []*Record {
	if limit > 0 && len(records) > limit {
		return records[len(records)-limit:]
	}
	return records
}
