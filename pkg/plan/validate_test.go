package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validPlan returns a plan that passes every schema check.
func validPlan() *Plan {
	return &Plan{
		PlanID:      NewPlanID(),
		UserIntent:  "clean the corpus",
		Workflow:    WorkflowTextCleaning,
		DatasetPath: "data.jsonl",
		ExportPath:  "./output/result.jsonl",
		Modality:    ModalityText,
		TextKeys:    []string{"text"},
		Operators: []OperatorStep{
			{Name: "text_length_filter", Params: map[string]any{"min_len": 10}},
		},
		Revision:         1,
		ApprovalRequired: true,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestValidate_ValidPlan(t *testing.T) {
	if errs := Validate(validPlan()); len(errs) != 0 {
		t.Fatalf("expected no findings, got %v", errs)
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	p := &Plan{
		Workflow: Workflow("bogus"),
		Modality: Modality("weird"),
	}
	errs := Validate(p)

	expected := []string{
		"plan_id is required",
		"user_intent is required",
		"workflow must be one of text_cleaning/multimodal_dedup/custom",
		"dataset_path is required",
		"export_path is required",
		"modality must be one of text/image/multimodal/unknown",
		"revision must be >= 1",
		"operators must not be empty",
	}
	if len(errs) != len(expected) {
		t.Fatalf("expected %d findings, got %d: %v", len(expected), len(errs), errs)
	}
	for i, want := range expected {
		if errs[i] != want {
			t.Errorf("finding %d: expected %q, got %q", i, want, errs[i])
		}
	}
}

func TestValidate_OperatorFindings(t *testing.T) {
	p := validPlan()
	bad := OperatorStep{Name: ""}
	bad.MarkParamsInvalid()
	p.Operators = append(p.Operators, bad)

	errs := Validate(p)
	if len(errs) != 2 {
		t.Fatalf("expected 2 findings, got %v", errs)
	}
	if errs[0] != "operators[1].name is required" {
		t.Errorf("unexpected first finding: %q", errs[0])
	}
	if errs[1] != "operators[1].params must be an object" {
		t.Errorf("unexpected second finding: %q", errs[1])
	}
}

func TestValidate_ModalityBindings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Plan)
		expected string
	}{
		{
			name: "text without text_keys",
			mutate: func(p *Plan) {
				p.Modality = ModalityText
				p.TextKeys = nil
			},
			expected: "text modality requires text_keys",
		},
		{
			name: "image without image_key",
			mutate: func(p *Plan) {
				p.Modality = ModalityImage
				p.ImageKey = ""
			},
			expected: "image modality requires image_key",
		},
		{
			name: "multimodal without image_key",
			mutate: func(p *Plan) {
				p.Modality = ModalityMultimodal
				p.ImageKey = ""
			},
			expected: "multimodal modality requires image_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)
			errs := Validate(p)
			found := false
			for _, e := range errs {
				if e == tt.expected {
					found = true
				}
			}
			if !found {
				t.Errorf("expected finding %q, got %v", tt.expected, errs)
			}
		})
	}
}

type staticCatalog []string

func (c staticCatalog) Names() []string { return c }

func TestValidateForExecution_FilesystemChecks(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "data.jsonl")
	if err := os.WriteFile(dataset, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := validPlan()
	p.DatasetPath = dataset
	p.ExportPath = filepath.Join(dir, "out", "result.jsonl")

	errs := ValidateForExecution(p, ValidateOptions{})
	if len(errs) != 1 || !strings.Contains(errs[0], "export parent directory does not exist") {
		t.Fatalf("expected export parent finding, got %v", errs)
	}

	if err := os.MkdirAll(filepath.Join(dir, "out"), 0o755); err != nil {
		t.Fatal(err)
	}
	if errs := ValidateForExecution(p, ValidateOptions{}); len(errs) != 0 {
		t.Fatalf("expected no findings, got %v", errs)
	}
}

func TestValidateForExecution_OperatorCatalog(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "data.jsonl")
	if err := os.WriteFile(dataset, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := validPlan()
	p.DatasetPath = dataset
	p.ExportPath = filepath.Join(dir, "result.jsonl")

	// Unknown operator against a populated catalog is a finding.
	errs := ValidateForExecution(p, ValidateOptions{Catalog: staticCatalog{"other_filter"}})
	if len(errs) != 1 {
		t.Fatalf("expected 1 finding, got %v", errs)
	}
	want := "unsupported operator 'text_length_filter'; not found in installed Data-Juicer operators"
	if errs[0] != want {
		t.Errorf("expected %q, got %q", want, errs[0])
	}

	// Empty catalog fails open by default.
	if errs := ValidateForExecution(p, ValidateOptions{Catalog: staticCatalog{}}); len(errs) != 0 {
		t.Fatalf("expected fail-open, got %v", errs)
	}

	// Strict mode keeps the check on.
	errs = ValidateForExecution(p, ValidateOptions{Catalog: staticCatalog{}, Strict: true})
	if len(errs) != 1 {
		t.Fatalf("expected strict finding, got %v", errs)
	}
}
