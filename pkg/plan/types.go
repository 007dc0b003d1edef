// Package plan defines the versioned execution plan model, its validator,
// the YAML plan document codec, and the revision/diff engine.
package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Workflow is the coarse routing category used to select a template and to
// score task success during evaluation.
type Workflow string

const (
	// WorkflowTextCleaning covers text corpus cleaning pipelines.
	WorkflowTextCleaning Workflow = "text_cleaning"

	// WorkflowMultimodalDedup covers multimodal near-duplicate removal.
	WorkflowMultimodalDedup Workflow = "multimodal_dedup"

	// WorkflowCustom is the namespace for plans outside the two stock flows.
	WorkflowCustom Workflow = "custom"
)

// Validate checks if the workflow is one of the allowed values.
func (w Workflow) Validate() error {
	switch w {
	case WorkflowTextCleaning, WorkflowMultimodalDedup, WorkflowCustom:
		return nil
	default:
		return fmt.Errorf("invalid workflow: %s", w)
	}
}

// NormalizeWorkflow maps any string onto an allowed workflow value.
// Unknown values collapse to WorkflowCustom.
func NormalizeWorkflow(value string) Workflow {
	w := Workflow(value)
	if w.Validate() == nil {
		return w
	}
	return WorkflowCustom
}

// Modality describes the data modality a plan operates on.
type Modality string

const (
	// ModalityText is plain text data addressed via text_keys.
	ModalityText Modality = "text"

	// ModalityImage is image data addressed via image_key.
	ModalityImage Modality = "image"

	// ModalityMultimodal is paired text and image data.
	ModalityMultimodal Modality = "multimodal"

	// ModalityUnknown is used when the modality cannot be inferred.
	ModalityUnknown Modality = "unknown"
)

// Validate checks if the modality is one of the allowed values.
func (m Modality) Validate() error {
	switch m {
	case ModalityText, ModalityImage, ModalityMultimodal, ModalityUnknown:
		return nil
	default:
		return fmt.Errorf("invalid modality: %s", m)
	}
}

// InferModality derives a modality from field presence. A generated modality
// wins when it is one of the allowed values; otherwise the presence of
// text_keys and image_key decides.
func InferModality(textKeys []string, imageKey string, generated string) Modality {
	if g := Modality(generated); g.Validate() == nil && generated != "" {
		return g
	}
	hasText := len(textKeys) > 0
	hasImage := imageKey != ""
	switch {
	case hasText && hasImage:
		return ModalityMultimodal
	case hasImage:
		return ModalityImage
	case hasText:
		return ModalityText
	default:
		return ModalityUnknown
	}
}

// OperatorStep is one named processing stage plus its parameter mapping.
// A step is owned exclusively by its plan.
type OperatorStep struct {
	// Name is the canonical operator name.
	Name string `json:"name" yaml:"name"`

	// Params holds the operator parameters, keyed by parameter name.
	Params map[string]any `json:"params" yaml:"params"`

	// paramsInvalid records that the source document carried params that
	// were not a mapping. Surfaced by Validate, never serialized.
	paramsInvalid bool
}

// ParamsInvalid reports whether the decoded params were not a mapping.
func (s *OperatorStep) ParamsInvalid() bool { return s.paramsInvalid }

// MarkParamsInvalid flags the step as carrying non-mapping params.
func (s *OperatorStep) MarkParamsInvalid() { s.paramsInvalid = true }

// UnmarshalYAML decodes an operator step, tolerating params of the wrong
// shape so validation can report them instead of failing the whole load.
func (s *OperatorStep) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name   string    `yaml:"name"`
		Params yaml.Node `yaml:"params"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	s.Name = raw.Name
	s.Params = map[string]any{}
	if raw.Params.Kind == 0 || raw.Params.Tag == "!!null" {
		return nil
	}
	if raw.Params.Kind != yaml.MappingNode {
		s.paramsInvalid = true
		return nil
	}
	return raw.Params.Decode(&s.Params)
}

// Plan is a versioned, validated description of a data-processing pipeline.
// A plan is immutable once validated: every change produces a new plan with
// a fresh PlanID and an incremented revision.
type Plan struct {
	// PlanID is the opaque unique identity, assigned at creation.
	PlanID string `json:"plan_id" yaml:"plan_id"`

	// UserIntent is the natural-language task description.
	UserIntent string `json:"user_intent" yaml:"user_intent"`

	// Workflow is the routing category the plan was built for.
	Workflow Workflow `json:"workflow" yaml:"workflow"`

	// DatasetPath is the input dataset location.
	DatasetPath string `json:"dataset_path" yaml:"dataset_path"`

	// ExportPath is the output location for processed data.
	ExportPath string `json:"export_path" yaml:"export_path"`

	// Modality is the data modality the operators expect.
	Modality Modality `json:"modality" yaml:"modality"`

	// TextKeys are the dataset fields holding text, in order.
	TextKeys []string `json:"text_keys" yaml:"text_keys"`

	// ImageKey is the dataset field holding the image reference, if any.
	ImageKey string `json:"image_key,omitempty" yaml:"image_key,omitempty"`

	// Operators is the ordered pipeline of processing stages.
	Operators []OperatorStep `json:"operators" yaml:"operators"`

	// RiskNotes lists known caveats for this pipeline.
	RiskNotes []string `json:"risk_notes" yaml:"risk_notes"`

	// Estimation holds rough cost/size estimates keyed by metric name.
	Estimation map[string]any `json:"estimation" yaml:"estimation"`

	// ParentPlanID references the plan this one was revised from.
	ParentPlanID string `json:"parent_plan_id,omitempty" yaml:"parent_plan_id,omitempty"`

	// Revision is the lineage version, >= 1, parent revision + 1.
	Revision int `json:"revision" yaml:"revision"`

	// ChangeSummary describes what changed relative to the parent plan.
	ChangeSummary []string `json:"change_summary" yaml:"change_summary"`

	// ApprovalRequired gates execution behind a confirmation prompt.
	ApprovalRequired bool `json:"approval_required" yaml:"approval_required"`

	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewPlanID returns a fresh plan identity of the form plan_<12 hex chars>.
func NewPlanID() string {
	u := uuid.New()
	return fmt.Sprintf("plan_%x", u[:6])
}
