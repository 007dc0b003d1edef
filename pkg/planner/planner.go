// Package planner turns user intents into versioned plans. The deterministic
// path routes the intent to a workflow template; an optional language-model
// collaborator refines templates, drafts revisions, or generates full plans.
// Model failures on the refinement paths always fall back to the
// deterministic result, never to an error.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"github.com/openjuicer/openjuicer/pkg/plan"
	"github.com/openjuicer/openjuicer/pkg/registry"
	"github.com/openjuicer/openjuicer/pkg/router"
	"github.com/openjuicer/openjuicer/pkg/templates"
	"github.com/openjuicer/openjuicer/pkg/trace"
)

// Plan modes recorded in Meta.PlanMode.
const (
	ModeTemplate          = "template"
	ModeTemplateWithPatch = "template_with_llm_patch"
	ModeFullPlan          = "llm_full"
	ModeRevision          = "revision_with_llm_patch"
	ModeRevisionNoLLM     = "revision_no_llm"
)

// Request carries the caller-supplied inputs for plan generation.
type Request struct {
	// Intent is the natural-language task description.
	Intent string

	// DatasetPath and ExportPath bind the plan to concrete locations.
	DatasetPath string
	ExportPath  string

	// TextKeys and ImageKey override the template's field bindings.
	TextKeys []string
	ImageKey string
}

// Meta describes how a plan was produced.
type Meta struct {
	// Strategy names the routing mechanism.
	Strategy string `json:"strategy"`

	// RoutingReason is the router's scoring summary.
	RoutingReason string `json:"routing_reason"`

	// PlanMode is one of the Mode constants.
	PlanMode string `json:"plan_mode"`

	// LLMUsed records whether the model was consulted at all.
	LLMUsed bool `json:"llm_used"`

	// LLMFallback records that the model was consulted but its output was
	// discarded in favor of the deterministic result.
	LLMFallback bool `json:"llm_fallback"`
}

// Planner generates and revises plans.
type Planner struct {
	// Library resolves workflow templates.
	Library *templates.Library

	// Registry canonicalizes operator names in model output.
	Registry registry.Registry

	// Model is the optional language-model collaborator. Nil disables all
	// model-assisted paths.
	Model llms.Model

	// FullPlan makes Generate ask the model for a complete plan instead of
	// refining a template. Requires Model.
	FullPlan bool

	// Temperature is passed to the model; zero means the model default.
	Temperature float64
}

// Generate builds a fresh revision-1 plan for the request.
func (pl *Planner) Generate(ctx context.Context, req Request) (*plan.Plan, Meta, error) {
	if pl.FullPlan {
		return pl.generateFull(ctx, req)
	}

	routing := router.Explain(req.Intent)
	meta := Meta{
		Strategy:      routing.Strategy,
		RoutingReason: routing.Reason,
		PlanMode:      ModeTemplate,
	}

	tpl, err := pl.Library.Get(routing.Workflow)
	if err != nil {
		return nil, meta, err
	}
	p := pl.fromTemplate(req, routing.Workflow, tpl)

	if pl.Model == nil {
		return p, meta, nil
	}

	meta.LLMUsed = true
	patch, err := pl.requestPatch(ctx, refinePrompt(req.Intent, p))
	if err != nil {
		log.Warn().Err(err).Str("plan_id", p.PlanID).Msg("Template refinement failed, keeping template plan")
		meta.LLMFallback = true
		return p, meta, nil
	}
	pl.applyPatch(p, patch)
	meta.PlanMode = ModeTemplateWithPatch
	return p, meta, nil
}

// Revise builds the next revision of base for the given intent. When a model
// is configured it drafts the patch, optionally informed by the most recent
// run of the base plan; otherwise the revision carries the base content with
// bumped lineage only.
func (pl *Planner) Revise(ctx context.Context, base *plan.Plan, intent string, lastRun *trace.Record) (*plan.Plan, Meta, error) {
	meta := Meta{Strategy: "revision", PlanMode: ModeRevisionNoLLM}

	if pl.Model == nil {
		return plan.Revise(base, intent, nil), meta, nil
	}

	meta.LLMUsed = true
	patch, err := pl.requestPatch(ctx, revisePrompt(intent, base, lastRun))
	if err != nil {
		log.Warn().Err(err).Str("base_plan_id", base.PlanID).Msg("Revision patch failed, revising without model")
		meta.LLMFallback = true
		return plan.Revise(base, intent, nil), meta, nil
	}
	meta.PlanMode = ModeRevision
	return plan.Revise(base, intent, patch), meta, nil
}

// generateFull asks the model for a complete plan. Unlike the refinement
// paths this mode has no deterministic fallback.
func (pl *Planner) generateFull(ctx context.Context, req Request) (*plan.Plan, Meta, error) {
	meta := Meta{
		Strategy: "llm-full-plan",
		PlanMode: ModeFullPlan,
		LLMUsed:  true,
	}
	if pl.Model == nil {
		return nil, meta, fmt.Errorf("full-plan mode requires a configured model")
	}

	raw, err := pl.completeJSON(ctx, fullPlanPrompt(req))
	if err != nil {
		return nil, meta, fmt.Errorf("full-plan generation failed: %w", err)
	}
	p, err := pl.parseFullPlan(raw, req)
	if err != nil {
		return nil, meta, fmt.Errorf("full-plan generation failed: %w", err)
	}
	return p, meta, nil
}

// fromTemplate materializes a revision-1 plan from a workflow template,
// applying the request's overrides and canonicalizing operator names.
func (pl *Planner) fromTemplate(req Request, workflow plan.Workflow, tpl *templates.Template) *plan.Plan {
	exportPath := req.ExportPath
	if exportPath == "" {
		exportPath = tpl.DefaultExportPath
	}
	textKeys := req.TextKeys
	if len(textKeys) == 0 {
		textKeys = append([]string(nil), tpl.DefaultTextKeys...)
	}
	imageKey := req.ImageKey
	if imageKey == "" {
		imageKey = tpl.DefaultImageKey
	}

	operators := make([]plan.OperatorStep, 0, len(tpl.Operators))
	for i := range tpl.Operators {
		step := tpl.Operators[i]
		operators = append(operators, plan.OperatorStep{
			Name:   registry.Resolve(step.Name, pl.Registry),
			Params: copyParams(step.Params),
		})
	}

	estimation := map[string]any{}
	for k, v := range tpl.Estimation {
		estimation[k] = v
	}

	return &plan.Plan{
		PlanID:           plan.NewPlanID(),
		UserIntent:       req.Intent,
		Workflow:         workflow,
		DatasetPath:      req.DatasetPath,
		ExportPath:       exportPath,
		Modality:         plan.InferModality(textKeys, imageKey, tpl.DefaultModality),
		TextKeys:         textKeys,
		ImageKey:         imageKey,
		Operators:        operators,
		RiskNotes:        append([]string(nil), tpl.RiskNotes...),
		Estimation:       estimation,
		Revision:         1,
		ApprovalRequired: true,
		CreatedAt:        time.Now().UTC(),
	}
}

// applyPatch refines a freshly generated plan in place. Identity and lineage
// fields never change here; that is what Revise is for.
func (pl *Planner) applyPatch(p *plan.Plan, patch *plan.Patch) {
	if patch == nil {
		return
	}
	if patch.TextKeys != nil {
		p.TextKeys = patch.TextKeys
	}
	if patch.ImageKey != nil {
		p.ImageKey = *patch.ImageKey
	}
	if len(patch.Operators) > 0 {
		p.Operators = patch.Operators
	}
	if patch.RiskNotes != nil {
		p.RiskNotes = patch.RiskNotes
	}
	if patch.Estimation != nil {
		p.Estimation = patch.Estimation
	}
	generated := string(p.Modality)
	if patch.Modality != nil {
		generated = *patch.Modality
	}
	p.Modality = plan.InferModality(p.TextKeys, p.ImageKey, generated)
}

func copyParams(params map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range params {
		out[k] = v
	}
	return out
}
