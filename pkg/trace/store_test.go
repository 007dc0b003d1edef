package trace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

// storeFactory builds a fresh store per test so both backends run the same
// behavioral suite.
type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"jsonl": func(t *testing.T) Store {
			t.Helper()
			s, err := NewJSONLStore(filepath.Join(t.TempDir(), "traces.jsonl"))
			if err != nil {
				t.Fatalf("failed to create jsonl store: %v", err)
			}
			return s
		},
		"sqlite": func(t *testing.T) Store {
			t.Helper()
			s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "traces.db"))
			if err != nil {
				t.Fatalf("failed to create sqlite store: %v", err)
			}
			return s
		},
	}
}

func record(runID, planID, workflow string, status RunStatus, errorType ErrorType) *Record {
	return &Record{
		RunID:            runID,
		PlanID:           planID,
		StartTime:        "2026-08-23T10:00:00Z",
		EndTime:          "2026-08-23T10:00:05Z",
		DurationSeconds:  5,
		ModelInfo:        map[string]string{"planner": "test"},
		RetrievalMode:    "workflow-first",
		SelectedWorkflow: workflow,
		Command:          "dj-process --config recipe.yaml",
		Status:           status,
		ErrorType:        errorType,
		RetryLevel:       RetryLevelNone,
	}
}

func TestStore_SaveGetList(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			if err := store.Save(record("run_a", "plan_1", "text_cleaning", RunStatusSuccess, ErrorTypeNone)); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			if err := store.Save(record("run_b", "plan_1", "text_cleaning", RunStatusFailed, ErrorTypeTimeout)); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			if err := store.Save(record("run_c", "plan_2", "multimodal_dedup", RunStatusSuccess, ErrorTypeNone)); err != nil {
				t.Fatalf("save failed: %v", err)
			}

			got, err := store.Get("run_b")
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if got.PlanID != "plan_1" || got.ErrorType != ErrorTypeTimeout {
				t.Errorf("unexpected record: %+v", got)
			}

			if _, err := store.Get("run_missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}

			byPlan, err := store.ListByPlan("plan_1", 0)
			if err != nil {
				t.Fatalf("list by plan failed: %v", err)
			}
			if len(byPlan) != 2 || byPlan[0].RunID != "run_a" || byPlan[1].RunID != "run_b" {
				t.Errorf("unexpected plan listing: %+v", byPlan)
			}

			all, err := store.ListAll(0)
			if err != nil {
				t.Fatalf("list all failed: %v", err)
			}
			if len(all) != 3 {
				t.Errorf("expected 3 records, got %d", len(all))
			}
		})
	}
}

func TestStore_ListLimitKeepsMostRecent(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			for i := 0; i < 5; i++ {
				rec := record(fmt.Sprintf("run_%d", i), "plan_1", "custom", RunStatusSuccess, ErrorTypeNone)
				if err := store.Save(rec); err != nil {
					t.Fatalf("save failed: %v", err)
				}
			}

			got, err := store.ListByPlan("plan_1", 2)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(got) != 2 || got[0].RunID != "run_3" || got[1].RunID != "run_4" {
				t.Errorf("expected last two records, got %+v", got)
			}
		})
	}
}

func TestStore_StatsZeroSafe(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			stats, err := store.Stats("")
			if err != nil {
				t.Fatalf("stats failed: %v", err)
			}
			if stats.TotalRuns != 0 || stats.ExecutionSuccessRate != 0 || stats.AvgDurationSeconds != 0 {
				t.Errorf("empty store must yield zero stats, got %+v", stats)
			}
		})
	}
}

func TestStore_StatsAggregation(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			records := []*Record{
				record("run_a", "plan_1", "text_cleaning", RunStatusSuccess, ErrorTypeNone),
				record("run_b", "plan_1", "text_cleaning", RunStatusFailed, ErrorTypeMissingPath),
				record("run_c", "plan_2", "multimodal_dedup", RunStatusSuccess, ErrorTypeNone),
				record("run_d", "plan_1", "text_cleaning", RunStatusFailed, ErrorTypeMissingPath),
			}
			for _, rec := range records {
				if err := store.Save(rec); err != nil {
					t.Fatalf("save failed: %v", err)
				}
			}

			stats, err := store.Stats("")
			if err != nil {
				t.Fatalf("stats failed: %v", err)
			}
			if stats.TotalRuns != 4 || stats.SuccessRuns != 2 || stats.FailedRuns != 2 {
				t.Errorf("unexpected totals: %+v", stats)
			}
			if stats.ExecutionSuccessRate != 0.5 {
				t.Errorf("unexpected success rate: %f", stats.ExecutionSuccessRate)
			}
			if stats.AvgDurationSeconds != 5 {
				t.Errorf("unexpected avg duration: %f", stats.AvgDurationSeconds)
			}
			wf := stats.ByWorkflow["text_cleaning"]
			if wf == nil || wf.Total != 3 || wf.Success != 1 {
				t.Errorf("unexpected workflow stats: %+v", wf)
			}
			if stats.ByErrorType["missing_path"] != 2 || stats.ByErrorType["none"] != 2 {
				t.Errorf("unexpected error type counts: %v", stats.ByErrorType)
			}

			// Plan-scoped stats only see that plan's runs.
			scoped, err := store.Stats("plan_2")
			if err != nil {
				t.Fatalf("scoped stats failed: %v", err)
			}
			if scoped.TotalRuns != 1 || scoped.ExecutionSuccessRate != 1.0 {
				t.Errorf("unexpected scoped stats: %+v", scoped)
			}
		})
	}
}

func TestStore_ConcurrentSaves(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()

			const writers = 8
			const perWriter = 10

			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						rec := record(fmt.Sprintf("run_%d_%d", w, i), "plan_1", "custom", RunStatusSuccess, ErrorTypeNone)
						if err := store.Save(rec); err != nil {
							t.Errorf("save failed: %v", err)
						}
					}
				}(w)
			}
			wg.Wait()

			all, err := store.ListAll(0)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(all) != writers*perWriter {
				t.Errorf("expected %d records, got %d", writers*perWriter, len(all))
			}
		})
	}
}
