package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Bucket is one named failure class and its case count.
type Bucket struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary aggregates one evaluation batch.
type Summary struct {
	TotalCases           int      `json:"total_cases"`
	ExecutionMode        string   `json:"execution_mode"`
	Jobs                 int      `json:"jobs"`
	Retries              int      `json:"retries"`
	PlanValid            int      `json:"plan_valid"`
	ExecutionSuccess     int      `json:"execution_success"`
	TaskSuccess          int      `json:"task_success"`
	PlanValidRate        float64  `json:"plan_valid_rate"`
	ExecutionSuccessRate float64  `json:"execution_success_rate"`
	TaskSuccessRate      float64  `json:"task_success_rate"`
	RetryUsedCases       int      `json:"retry_used_cases"`
	ErrorCases           int      `json:"error_cases"`
	FailureBuckets       []Bucket `json:"failure_buckets"`
}

// Report is the full batch output: the summary plus the per-case results in
// input order.
type Report struct {
	Summary Summary       `json:"summary"`
	Results []*CaseResult `json:"results"`
}

// HistoryEntry is one appended line of the evaluation history log.
type HistoryEntry struct {
	Timestamp            string  `json:"timestamp"`
	TotalCases           int     `json:"total_cases"`
	ExecutionMode        string  `json:"execution_mode"`
	PlanValidRate        float64 `json:"plan_valid_rate"`
	ExecutionSuccessRate float64 `json:"execution_success_rate"`
	TaskSuccessRate      float64 `json:"task_success_rate"`
	ReportPath           string  `json:"report_path,omitempty"`
}

// summarize computes the batch metrics. A case counts as an execution
// success when its plan is valid and execution either succeeded or was
// skipped by the mode.
func summarize(results []*CaseResult, opts Options) Summary {
	s := Summary{
		TotalCases:    len(results),
		ExecutionMode: opts.Mode,
		Jobs:          opts.Jobs,
		Retries:       opts.Retries,
	}

	bucketCounts := map[string]int{}
	for _, res := range results {
		if res.Status == StatusPlanValid {
			s.PlanValid++
			if res.ExecutionStatus != ExecFailed {
				s.ExecutionSuccess++
			}
		}
		if res.TaskSuccess != nil && *res.TaskSuccess {
			s.TaskSuccess++
		}
		if res.Attempts > 1 {
			s.RetryUsedCases++
		}
		if bucket := failureBucket(res); bucket != "" {
			bucketCounts[bucket]++
			s.ErrorCases++
		}
	}

	if s.TotalCases > 0 {
		s.PlanValidRate = float64(s.PlanValid) / float64(s.TotalCases)
		s.ExecutionSuccessRate = float64(s.ExecutionSuccess) / float64(s.TotalCases)
		s.TaskSuccessRate = float64(s.TaskSuccess) / float64(s.TotalCases)
	}

	s.FailureBuckets = topBuckets(bucketCounts, opts.FailureTopK)
	return s
}

// failureBucket names the dominant failure of one case, or "" for a clean
// case. A routing mismatch takes precedence over an execution failure: a
// misrouted plan fails the task regardless of how its execution went.
func failureBucket(res *CaseResult) string {
	switch res.Status {
	case StatusPlannerError:
		return "planner_error"
	case StatusPlanInvalid:
		return "plan_invalid"
	}
	if res.TaskSuccess != nil && !*res.TaskSuccess {
		return "misroute"
	}
	if res.ExecutionStatus == ExecFailed {
		return fmt.Sprintf("execution_failed:%s:%s", res.ErrorType, res.RetryLevel)
	}
	return ""
}

func topBuckets(counts map[string]int, k int) []Bucket {
	buckets := make([]Bucket, 0, len(counts))
	for name, count := range counts {
		buckets = append(buckets, Bucket{Name: name, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Name < buckets[j].Name
	})
	if len(buckets) > k {
		buckets = buckets[:k]
	}
	return buckets
}

// Write persists the full report as indented JSON.
func (r *Report) Write(path string) error {
	return writeJSON(path, r)
}

// WriteErrors persists the summary plus only the error cases, for fast
// triage of large batches.
func (r *Report) WriteErrors(path string) error {
	errorCases := make([]*CaseResult, 0)
	for _, res := range r.Results {
		if failureBucket(res) != "" {
			errorCases = append(errorCases, res)
		}
	}
	payload := struct {
		Summary    Summary       `json:"summary"`
		ErrorCases []*CaseResult `json:"error_cases"`
	}{r.Summary, errorCases}
	return writeJSON(path, payload)
}

// AppendHistory appends one JSONL history entry describing this batch.
func (r *Report) AppendHistory(path, reportPath string) error {
	entry := HistoryEntry{
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
		TotalCases:           r.Summary.TotalCases,
		ExecutionMode:        r.Summary.ExecutionMode,
		PlanValidRate:        r.Summary.PlanValidRate,
		ExecutionSuccessRate: r.Summary.ExecutionSuccessRate,
		TaskSuccessRate:      r.Summary.TaskSuccessRate,
		ReportPath:           reportPath,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
