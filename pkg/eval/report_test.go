package eval

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	ok := true
	bad := false
	results := []*CaseResult{
		{Index: 0, Intent: "clean", Status: StatusPlanValid, ExecutionStatus: ExecSuccess, TaskSuccess: &ok},
		{Index: 1, Intent: "broken", Status: StatusPlanInvalid, ExecutionStatus: ExecSkipped, Errors: []string{"operators must not be empty"}},
		{Index: 2, Intent: "misrouted", Status: StatusPlanValid, ExecutionStatus: ExecSuccess, TaskSuccess: &bad},
	}
	return &Report{
		Summary: summarize(results, Options{Mode: ModeDryRun, Jobs: 1, FailureTopK: 5}),
		Results: results,
	}
}

func TestReport_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "report.json")
	r := sampleReport()
	require.NoError(t, r.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got.Summary.TotalCases)
	assert.Equal(t, 2, got.Summary.PlanValid)
	require.Len(t, got.Results, 3)
	assert.Equal(t, "broken", got.Results[1].Intent)
}

func TestReport_WriteErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.json")
	require.NoError(t, sampleReport().WriteErrors(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got struct {
		Summary    Summary       `json:"summary"`
		ErrorCases []*CaseResult `json:"error_cases"`
	}
	require.NoError(t, json.Unmarshal(data, &got))

	// Only the invalid and misrouted cases survive the filter.
	require.Len(t, got.ErrorCases, 2)
	assert.Equal(t, "broken", got.ErrorCases[0].Intent)
	assert.Equal(t, "misrouted", got.ErrorCases[1].Intent)
	assert.Equal(t, 2, got.Summary.ErrorCases)
}

func TestReport_AppendHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	r := sampleReport()
	require.NoError(t, r.AppendHistory(path, "reports/report.json"))
	require.NoError(t, r.AppendHistory(path, ""))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []HistoryEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry HistoryEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, entries, 2)
	assert.Equal(t, "reports/report.json", entries[0].ReportPath)
	assert.Empty(t, entries[1].ReportPath)
	assert.Equal(t, 3, entries[0].TotalCases)
	assert.NotEmpty(t, entries[0].Timestamp)
	assert.InDelta(t, 2.0/3.0, entries[0].PlanValidRate, 1e-9)
}

func TestFailureBucket_MisrouteBeatsExecutionFailure(t *testing.T) {
	bad := false
	res := &CaseResult{
		Status:          StatusPlanValid,
		ExecutionStatus: ExecFailed,
		ErrorType:       "command_failed",
		RetryLevel:      "low",
		TaskSuccess:     &bad,
	}
	assert.Equal(t, "misroute", failureBucket(res))

	// Without a routing verdict the execution taxonomy names the bucket.
	res.TaskSuccess = nil
	assert.Equal(t, "execution_failed:command_failed:low", failureBucket(res))
}

func TestSummarize_ZeroCases(t *testing.T) {
	s := summarize(nil, Options{Mode: ModeNone, FailureTopK: 5})
	assert.Equal(t, 0, s.TotalCases)
	assert.Equal(t, 0.0, s.PlanValidRate)
	assert.Empty(t, s.FailureBuckets)
}
