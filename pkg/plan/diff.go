package plan

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// FieldChange records one field-level difference between two plans.
type FieldChange struct {
	Old any `json:"old" yaml:"old"`
	New any `json:"new" yaml:"new"`
}

// OperatorDiff is the multiset comparison of two operator lists.
type OperatorDiff struct {
	// Added lists operators present in revised but not in base.
	Added []OperatorStep `json:"added" yaml:"added"`

	// Removed lists operators present in base but not in revised.
	Removed []OperatorStep `json:"removed" yaml:"removed"`

	// OrderChanged is true only for a pure reordering: the name sequence
	// differs while no operators were added or removed.
	OrderChanged bool `json:"order_changed" yaml:"order_changed"`
}

// Diff is a structured field-level comparison of two plans.
type Diff struct {
	// FieldChanges holds per-field old/new pairs for the core fields.
	FieldChanges map[string]FieldChange `json:"field_changes" yaml:"field_changes"`

	// Operators is the count-based operator comparison.
	Operators OperatorDiff `json:"operators" yaml:"operators"`

	// MetadataChanges covers risk_notes and estimation.
	MetadataChanges map[string]FieldChange `json:"metadata_changes" yaml:"metadata_changes"`
}

// Empty reports whether the diff records no effective changes.
func (d *Diff) Empty() bool {
	return len(d.FieldChanges) == 0 &&
		len(d.Operators.Added) == 0 &&
		len(d.Operators.Removed) == 0 &&
		!d.Operators.OrderChanged &&
		len(d.MetadataChanges) == 0
}

// diffFieldOrder fixes the rendering order of field changes.
var diffFieldOrder = []string{
	"workflow", "modality", "dataset_path", "export_path", "text_keys", "image_key",
}

// opSignature identifies an operator by name plus canonically serialized
// params, so parameter changes count as remove+add.
type opSignature struct {
	name   string
	params string
}

func signatureOf(op *OperatorStep) opSignature {
	params, err := json.Marshal(canonical(op.Params))
	if err != nil {
		params = []byte("{}")
	}
	return opSignature{name: strings.TrimSpace(op.Name), params: string(params)}
}

// canonical converts a params mapping into a form json.Marshal serializes
// with sorted keys at every level.
func canonical(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = canonical(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = canonical(item)
		}
		return out
	default:
		return v
	}
}

// BuildDiff computes a structured diff between a base plan and a revised
// plan.
func BuildDiff(base, revised *Plan) *Diff {
	diff := &Diff{
		FieldChanges:    map[string]FieldChange{},
		MetadataChanges: map[string]FieldChange{},
	}

	fields := func(p *Plan) map[string]any {
		return map[string]any{
			"workflow":     p.Workflow,
			"modality":     p.Modality,
			"dataset_path": p.DatasetPath,
			"export_path":  p.ExportPath,
			"text_keys":    p.TextKeys,
			"image_key":    p.ImageKey,
		}
	}
	baseFields, revisedFields := fields(base), fields(revised)
	for _, key := range diffFieldOrder {
		if !reflect.DeepEqual(baseFields[key], revisedFields[key]) {
			diff.FieldChanges[key] = FieldChange{Old: baseFields[key], New: revisedFields[key]}
		}
	}

	baseCounts := countSignatures(base.Operators)
	revisedCounts := countSignatures(revised.Operators)

	diff.Operators.Added = subtractCounts(revised.Operators, revisedCounts, baseCounts)
	diff.Operators.Removed = subtractCounts(base.Operators, baseCounts, revisedCounts)

	orderDiffers := !sameNameSequence(base.Operators, revised.Operators)
	diff.Operators.OrderChanged = orderDiffers &&
		len(diff.Operators.Added) == 0 && len(diff.Operators.Removed) == 0

	if !reflect.DeepEqual(base.RiskNotes, revised.RiskNotes) {
		diff.MetadataChanges["risk_notes"] = FieldChange{Old: base.RiskNotes, New: revised.RiskNotes}
	}
	if !reflect.DeepEqual(base.Estimation, revised.Estimation) {
		diff.MetadataChanges["estimation"] = FieldChange{Old: base.Estimation, New: revised.Estimation}
	}

	return diff
}

func countSignatures(ops []OperatorStep) map[opSignature]int {
	counts := make(map[opSignature]int, len(ops))
	for i := range ops {
		counts[signatureOf(&ops[i])]++
	}
	return counts
}

// subtractCounts returns the operators from ops whose signature count in
// have exceeds the count in want, preserving list order.
func subtractCounts(ops []OperatorStep, have, want map[opSignature]int) []OperatorStep {
	surplus := make(map[opSignature]int, len(have))
	for sig, count := range have {
		if extra := count - want[sig]; extra > 0 {
			surplus[sig] = extra
		}
	}
	var out []OperatorStep
	for i := range ops {
		sig := signatureOf(&ops[i])
		if surplus[sig] > 0 {
			surplus[sig]--
			out = append(out, ops[i])
		}
	}
	return out
}

func sameNameSequence(base, revised []OperatorStep) bool {
	if len(base) != len(revised) {
		return false
	}
	for i := range base {
		if strings.TrimSpace(base[i].Name) != strings.TrimSpace(revised[i].Name) {
			return false
		}
	}
	return true
}

// Summarize renders a diff as human-readable one-line summaries in a fixed
// order: field changes, operator additions, removals, reordering, then
// metadata changes. A diff with no changes yields a single no-op line.
func Summarize(diff *Diff) []string {
	var lines []string

	for _, key := range diffFieldOrder {
		change, ok := diff.FieldChanges[key]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %v -> %v", key, change.Old, change.New))
	}

	if len(diff.Operators.Added) > 0 {
		lines = append(lines, "operators added: "+joinNames(diff.Operators.Added))
	}
	if len(diff.Operators.Removed) > 0 {
		lines = append(lines, "operators removed: "+joinNames(diff.Operators.Removed))
	}
	if diff.Operators.OrderChanged {
		lines = append(lines, "operators order changed")
	}

	for _, key := range []string{"risk_notes", "estimation"} {
		if _, ok := diff.MetadataChanges[key]; ok {
			lines = append(lines, key+" updated")
		}
	}

	if len(lines) == 0 {
		lines = append(lines, "No effective changes from base plan.")
	}
	return lines
}

func joinNames(ops []OperatorStep) string {
	names := make([]string, len(ops))
	for i := range ops {
		names[i] = ops[i].Name
	}
	return strings.Join(names, ", ")
}
