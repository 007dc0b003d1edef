package plan

import "time"

// Patch is an explicit partial structure merged field-by-field onto a base
// plan. Absent fields (nil) inherit the base value. Patches usually come
// from the external text-generation collaborator.
type Patch struct {
	// Workflow replaces the base workflow; unknown values normalize to
	// custom.
	Workflow *string

	// Modality replaces the inferred modality when it is a valid value.
	Modality *string

	// TextKeys replaces the base text keys. Nil means absent.
	TextKeys []string

	// ImageKey replaces the base image key.
	ImageKey *string

	// Operators replaces the base operator list wholesale. An empty or
	// unparseable list falls back to the base operators; there is no
	// partial merge at the operator-list level.
	Operators []OperatorStep

	// RiskNotes replaces the base risk notes. Nil means absent.
	RiskNotes []string

	// Estimation replaces the base estimation mapping. Nil means absent.
	Estimation map[string]any

	// ChangeSummary overrides the derived diff summary when non-empty.
	ChangeSummary []string
}

// Revise produces a new plan derived from base: fresh plan_id, revision
// incremented by exactly one, lineage recorded via parent_plan_id. The
// dataset and export paths are inherited unconditionally; the remaining
// fields come from the patch when present, else from base. The change
// summary is the patch-provided one when non-empty, otherwise derived from
// the diff against base.
func Revise(base *Plan, intent string, patch *Patch) *Plan {
	if patch == nil {
		patch = &Patch{}
	}

	workflow := base.Workflow
	if patch.Workflow != nil {
		workflow = NormalizeWorkflow(*patch.Workflow)
	}

	textKeys := base.TextKeys
	if patch.TextKeys != nil {
		textKeys = patch.TextKeys
	}
	imageKey := base.ImageKey
	if patch.ImageKey != nil {
		imageKey = *patch.ImageKey
	}
	riskNotes := base.RiskNotes
	if patch.RiskNotes != nil {
		riskNotes = patch.RiskNotes
	}
	estimation := base.Estimation
	if patch.Estimation != nil {
		estimation = patch.Estimation
	}
	operators := base.Operators
	if len(patch.Operators) > 0 {
		operators = patch.Operators
	}

	generatedModality := string(base.Modality)
	if patch.Modality != nil {
		generatedModality = *patch.Modality
	}

	revision := base.Revision
	if revision < 1 {
		revision = 1
	}

	revised := &Plan{
		PlanID:           NewPlanID(),
		UserIntent:       intent,
		Workflow:         workflow,
		DatasetPath:      base.DatasetPath,
		ExportPath:       base.ExportPath,
		Modality:         InferModality(textKeys, imageKey, generatedModality),
		TextKeys:         textKeys,
		ImageKey:         imageKey,
		Operators:        operators,
		RiskNotes:        riskNotes,
		Estimation:       estimation,
		ParentPlanID:     base.PlanID,
		Revision:         revision + 1,
		ApprovalRequired: base.ApprovalRequired,
		CreatedAt:        time.Now().UTC(),
	}

	revised.ChangeSummary = cleanSummary(patch.ChangeSummary)
	if len(revised.ChangeSummary) == 0 {
		revised.ChangeSummary = Summarize(BuildDiff(base, revised))
	}
	return revised
}

func cleanSummary(lines []string) []string {
	var out []string
	for _, line := range lines {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
