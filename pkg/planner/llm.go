package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/openjuicer/openjuicer/pkg/plan"
	"github.com/openjuicer/openjuicer/pkg/registry"
	"github.com/openjuicer/openjuicer/pkg/trace"
)

const refinePromptTemplate = `You are refining a data-processing plan for the Data-Juicer engine.

User intent:
%s

Current plan (JSON):
%s

Return ONLY a JSON object with any of these optional keys:
  "modality", "text_keys", "image_key", "operators", "risk_notes", "estimation"
Omit a key to keep the current value. "operators" must be a complete ordered
list of {"name": ..., "params": {...}} steps when present. No prose, no
markdown fences.`

const revisePromptTemplate = `You are revising an existing data-processing plan for the Data-Juicer engine.

User revision request:
%s

Base plan (JSON):
%s
%s
Return ONLY a JSON object with any of these optional keys:
  "workflow", "modality", "text_keys", "image_key", "operators",
  "risk_notes", "estimation", "change_summary"
Omit a key to keep the base value. "operators" must be a complete ordered
list of {"name": ..., "params": {...}} steps when present. "change_summary"
is a list of short strings. No prose, no markdown fences.`

const fullPlanPromptTemplate = `You are generating a complete data-processing plan for the Data-Juicer engine.

User intent:
%s

Dataset path: %s
Export path: %s

Return ONLY a JSON object with these keys:
  "modality": one of text/image/multimodal
  "text_keys": list of dataset text field names
  "image_key": dataset image field name or ""
  "operators": non-empty ordered list of {"name": ..., "params": {...}}
  "risk_notes": list of short strings
  "estimation": object of rough cost estimates
No prose, no markdown fences.`

func refinePrompt(intent string, p *plan.Plan) string {
	return fmt.Sprintf(refinePromptTemplate, intent, mustJSON(p))
}

func revisePrompt(intent string, base *plan.Plan, lastRun *trace.Record) string {
	runContext := "\n"
	if lastRun != nil {
		runContext = fmt.Sprintf("\nMost recent execution of the base plan (JSON):\n%s\n", mustJSON(lastRun))
	}
	return fmt.Sprintf(revisePromptTemplate, intent, mustJSON(base), runContext)
}

func fullPlanPrompt(req Request) string {
	return fmt.Sprintf(fullPlanPromptTemplate, req.Intent, req.DatasetPath, req.ExportPath)
}

// requestPatch runs one completion and parses the result into a patch.
func (pl *Planner) requestPatch(ctx context.Context, prompt string) (*plan.Patch, error) {
	raw, err := pl.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return pl.parsePatch(raw), nil
}

// completeJSON runs one completion and decodes the response as a single JSON
// object, tolerating markdown fences and surrounding prose.
func (pl *Planner) completeJSON(ctx context.Context, prompt string) (map[string]any, error) {
	var opts []llms.CallOption
	if pl.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(pl.Temperature))
	}
	text, err := llms.GenerateFromSinglePrompt(ctx, pl.Model, prompt, opts...)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	payload := extractJSON(text)
	if payload == "" {
		return nil, fmt.Errorf("model response contains no JSON object")
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}
	return raw, nil
}

// extractJSON returns the outermost JSON object in text, stripping markdown
// code fences first.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// parsePatch maps a decoded model response onto an explicit patch. Unknown
// keys are ignored; malformed values degrade to absent rather than erroring.
func (pl *Planner) parsePatch(raw map[string]any) *plan.Patch {
	patch := &plan.Patch{}
	if v, ok := stringValue(raw, "workflow"); ok {
		patch.Workflow = &v
	}
	if v, ok := stringValue(raw, "modality"); ok {
		patch.Modality = &v
	}
	if v, ok := stringSlice(raw, "text_keys"); ok {
		patch.TextKeys = v
	}
	if v, ok := stringValue(raw, "image_key"); ok {
		patch.ImageKey = &v
	}
	if v, ok := stringSlice(raw, "risk_notes"); ok {
		patch.RiskNotes = v
	}
	if v, ok := raw["estimation"].(map[string]any); ok {
		patch.Estimation = v
	}
	if v, ok := stringSlice(raw, "change_summary"); ok {
		patch.ChangeSummary = v
	}
	patch.Operators = pl.parseOperators(raw["operators"])
	return patch
}

// parseOperators decodes the model's operator list, canonicalizing names
// through the registry and dropping malformed steps. A step with params that
// are present but not a mapping is malformed; when every step drops out the
// empty result makes the patch fall back to the base operator list.
func (pl *Planner) parseOperators(value any) []plan.OperatorStep {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var steps []plan.OperatorStep
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		rawParams, hasParams := entry["params"]
		params, isMap := rawParams.(map[string]any)
		if hasParams && !isMap {
			continue
		}
		if params == nil {
			params = map[string]any{}
		}
		steps = append(steps, plan.OperatorStep{
			Name:   registry.Resolve(name, pl.Registry),
			Params: params,
		})
	}
	return steps
}

// parseFullPlan builds a complete revision-1 plan from a full-plan response.
// Full plans always live in the custom workflow namespace, and an empty
// operator list is a hard error.
func (pl *Planner) parseFullPlan(raw map[string]any, req Request) (*plan.Plan, error) {
	operators := pl.parseOperators(raw["operators"])
	if len(operators) == 0 {
		return nil, fmt.Errorf("model returned no usable operators")
	}

	textKeys := req.TextKeys
	if v, ok := stringSlice(raw, "text_keys"); ok && len(v) > 0 {
		textKeys = v
	}
	imageKey := req.ImageKey
	if v, ok := stringValue(raw, "image_key"); ok {
		imageKey = v
	}
	generatedModality := ""
	if v, ok := stringValue(raw, "modality"); ok {
		generatedModality = v
	}
	riskNotes, _ := stringSlice(raw, "risk_notes")
	estimation, _ := raw["estimation"].(map[string]any)
	if estimation == nil {
		estimation = map[string]any{}
	}

	return &plan.Plan{
		PlanID:           plan.NewPlanID(),
		UserIntent:       req.Intent,
		Workflow:         plan.WorkflowCustom,
		DatasetPath:      req.DatasetPath,
		ExportPath:       req.ExportPath,
		Modality:         plan.InferModality(textKeys, imageKey, generatedModality),
		TextKeys:         textKeys,
		ImageKey:         imageKey,
		Operators:        operators,
		RiskNotes:        riskNotes,
		Estimation:       estimation,
		Revision:         1,
		ApprovalRequired: true,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

func stringValue(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key].(string)
	return v, ok
}

func stringSlice(raw map[string]any, key string) ([]string, bool) {
	list, ok := raw[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
