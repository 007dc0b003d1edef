package plan

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestDocument_RoundTrip(t *testing.T) {
	p := twoOpPlan()
	path := filepath.Join(t.TempDir(), "plans", "plan.yaml")

	if err := Save(p, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.PlanID != p.PlanID || loaded.Workflow != p.Workflow || loaded.Revision != p.Revision {
		t.Errorf("identity fields did not round-trip: %+v", loaded)
	}
	if !reflect.DeepEqual(loaded.TextKeys, p.TextKeys) {
		t.Errorf("text_keys did not round-trip: %v", loaded.TextKeys)
	}
	if len(loaded.Operators) != len(p.Operators) {
		t.Fatalf("operators did not round-trip: %v", loaded.Operators)
	}
	if loaded.Operators[1].Params["min_len"] != 10 {
		t.Errorf("operator params did not round-trip: %v", loaded.Operators[1].Params)
	}
}

func TestDecode_Defaults(t *testing.T) {
	doc := []byte(`
plan_id: plan_abc
user_intent: clean stuff
workflow: text_cleaning
dataset_path: data.jsonl
export_path: out.jsonl
operators:
  - name: text_length_filter
`)
	p, err := Decode(doc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if p.Modality != ModalityUnknown {
		t.Errorf("expected modality default unknown, got %s", p.Modality)
	}
	if p.Revision != 1 {
		t.Errorf("expected revision default 1, got %d", p.Revision)
	}
	if !p.ApprovalRequired {
		t.Error("expected approval_required default true")
	}
	if p.Estimation == nil {
		t.Error("expected estimation default map")
	}
	if p.CreatedAt.IsZero() {
		t.Error("expected created_at default")
	}
	if p.Operators[0].Params == nil || len(p.Operators[0].Params) != 0 {
		t.Errorf("expected empty params map, got %v", p.Operators[0].Params)
	}
}

func TestDecode_MalformedRevision(t *testing.T) {
	doc := []byte(`
plan_id: plan_abc
user_intent: clean stuff
workflow: text_cleaning
dataset_path: data.jsonl
export_path: out.jsonl
revision: not-a-number
operators:
  - name: text_length_filter
`)
	p, err := Decode(doc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if p.Revision != 1 {
		t.Errorf("malformed revision must default to 1, got %d", p.Revision)
	}
}

func TestDecode_NonMappingParams(t *testing.T) {
	doc := []byte(`
plan_id: plan_abc
user_intent: clean stuff
workflow: text_cleaning
dataset_path: data.jsonl
export_path: out.jsonl
operators:
  - name: text_length_filter
    params: [10, 20]
`)
	p, err := Decode(doc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !p.Operators[0].ParamsInvalid() {
		t.Fatal("expected non-mapping params to be flagged")
	}

	errs := Validate(p)
	found := false
	for _, e := range errs {
		if e == "operators[0].params must be an object" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected params finding, got %v", errs)
	}
}

func TestDecode_ApprovalExplicitFalse(t *testing.T) {
	doc := []byte(`
plan_id: plan_abc
user_intent: x
workflow: custom
dataset_path: d
export_path: e
approval_required: false
operators:
  - name: text_length_filter
`)
	p, err := Decode(doc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if p.ApprovalRequired {
		t.Error("explicit false must be preserved")
	}
}
