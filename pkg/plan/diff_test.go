package plan

import (
	"strings"
	"testing"
)

func twoOpPlan() *Plan {
	p := validPlan()
	p.Operators = []OperatorStep{
		{Name: "whitespace_normalization_mapper", Params: map[string]any{}},
		{Name: "text_length_filter", Params: map[string]any{"min_len": 10}},
	}
	return p
}

func TestBuildDiff_NoChanges(t *testing.T) {
	base := twoOpPlan()
	revised := twoOpPlan()
	revised.PlanID = NewPlanID()
	revised.Revision = 2

	diff := BuildDiff(base, revised)
	if !diff.Empty() {
		t.Fatalf("expected empty diff, got %+v", diff)
	}
	lines := Summarize(diff)
	if len(lines) != 1 || lines[0] != "No effective changes from base plan." {
		t.Fatalf("unexpected summary: %v", lines)
	}
}

func TestBuildDiff_FieldChanges(t *testing.T) {
	base := twoOpPlan()
	revised := twoOpPlan()
	revised.Workflow = WorkflowCustom
	revised.ExportPath = "./elsewhere/out.jsonl"

	diff := BuildDiff(base, revised)
	if len(diff.FieldChanges) != 2 {
		t.Fatalf("expected 2 field changes, got %v", diff.FieldChanges)
	}
	lines := Summarize(diff)
	if !strings.HasPrefix(lines[0], "workflow: ") {
		t.Errorf("expected workflow change first, got %v", lines)
	}
	if !strings.HasPrefix(lines[1], "export_path: ") {
		t.Errorf("expected export_path change second, got %v", lines)
	}
}

func TestBuildDiff_OperatorAddRemove(t *testing.T) {
	base := twoOpPlan()
	revised := twoOpPlan()
	revised.Operators = []OperatorStep{
		{Name: "whitespace_normalization_mapper", Params: map[string]any{}},
		{Name: "document_simhash_deduplicator", Params: map[string]any{"window_size": 6}},
	}

	diff := BuildDiff(base, revised)
	if len(diff.Operators.Added) != 1 || diff.Operators.Added[0].Name != "document_simhash_deduplicator" {
		t.Fatalf("unexpected added: %v", diff.Operators.Added)
	}
	if len(diff.Operators.Removed) != 1 || diff.Operators.Removed[0].Name != "text_length_filter" {
		t.Fatalf("unexpected removed: %v", diff.Operators.Removed)
	}
	if diff.Operators.OrderChanged {
		t.Error("order change must not be reported alongside add/remove")
	}
}

func TestBuildDiff_ParamChangeCountsAsReplace(t *testing.T) {
	base := twoOpPlan()
	revised := twoOpPlan()
	revised.Operators[1].Params = map[string]any{"min_len": 50}

	diff := BuildDiff(base, revised)
	if len(diff.Operators.Added) != 1 || len(diff.Operators.Removed) != 1 {
		t.Fatalf("expected replace semantics, got added=%v removed=%v",
			diff.Operators.Added, diff.Operators.Removed)
	}
}

func TestBuildDiff_PureReorder(t *testing.T) {
	base := twoOpPlan()
	revised := twoOpPlan()
	revised.Operators[0], revised.Operators[1] = revised.Operators[1], revised.Operators[0]

	diff := BuildDiff(base, revised)
	if len(diff.Operators.Added) != 0 || len(diff.Operators.Removed) != 0 {
		t.Fatalf("pure reorder must not add/remove, got %+v", diff.Operators)
	}
	if !diff.Operators.OrderChanged {
		t.Fatal("expected order change")
	}

	lines := Summarize(diff)
	if len(lines) != 1 || lines[0] != "operators order changed" {
		t.Fatalf("unexpected summary: %v", lines)
	}
}

func TestBuildDiff_MetadataChanges(t *testing.T) {
	base := twoOpPlan()
	revised := twoOpPlan()
	revised.RiskNotes = []string{"new note"}
	revised.Estimation = map[string]any{"relative_cost": "high"}

	lines := Summarize(BuildDiff(base, revised))
	if len(lines) != 2 || lines[0] != "risk_notes updated" || lines[1] != "estimation updated" {
		t.Fatalf("unexpected summary: %v", lines)
	}
}
