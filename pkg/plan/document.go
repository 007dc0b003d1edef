package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// planDoc mirrors the on-disk plan document. Revision is decoded leniently:
// a malformed value falls back to 1 instead of failing the whole load.
type planDoc struct {
	PlanID           string         `yaml:"plan_id"`
	UserIntent       string         `yaml:"user_intent"`
	Workflow         Workflow       `yaml:"workflow"`
	DatasetPath      string         `yaml:"dataset_path"`
	ExportPath       string         `yaml:"export_path"`
	Modality         Modality       `yaml:"modality"`
	TextKeys         []string       `yaml:"text_keys"`
	ImageKey         string         `yaml:"image_key"`
	Operators        []OperatorStep `yaml:"operators"`
	RiskNotes        []string       `yaml:"risk_notes"`
	Estimation       map[string]any `yaml:"estimation"`
	ParentPlanID     string         `yaml:"parent_plan_id"`
	Revision         yaml.Node      `yaml:"revision"`
	ChangeSummary    []string       `yaml:"change_summary"`
	ApprovalRequired *bool          `yaml:"approval_required"`
	CreatedAt        time.Time      `yaml:"created_at"`
}

// UnmarshalYAML decodes a plan document with the defaults the document
// format guarantees: modality unknown, approval required, revision 1.
func (p *Plan) UnmarshalYAML(node *yaml.Node) error {
	var doc planDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}

	p.PlanID = doc.PlanID
	p.UserIntent = doc.UserIntent
	p.Workflow = doc.Workflow
	p.DatasetPath = doc.DatasetPath
	p.ExportPath = doc.ExportPath
	p.Modality = doc.Modality
	p.TextKeys = doc.TextKeys
	p.ImageKey = doc.ImageKey
	p.Operators = doc.Operators
	p.RiskNotes = doc.RiskNotes
	p.Estimation = doc.Estimation
	p.ParentPlanID = doc.ParentPlanID
	p.ChangeSummary = doc.ChangeSummary
	p.CreatedAt = doc.CreatedAt

	if p.Modality == "" {
		p.Modality = ModalityUnknown
	}
	if p.Estimation == nil {
		p.Estimation = map[string]any{}
	}

	p.Revision = 1
	if doc.Revision.Kind != 0 {
		var rev int
		if err := doc.Revision.Decode(&rev); err == nil {
			p.Revision = rev
		}
	}

	p.ApprovalRequired = true
	if doc.ApprovalRequired != nil {
		p.ApprovalRequired = *doc.ApprovalRequired
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Load reads a plan document from a YAML file. Documents round-trip
// losslessly through Load and Save.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan document: %w", err)
	}
	return Decode(data)
}

// Decode parses a YAML plan document.
func Decode(data []byte) (*Plan, error) {
	p := &Plan{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to decode plan document: %w", err)
	}
	return p, nil
}

// Save writes the plan as a YAML document, creating parent directories as
// needed.
func Save(p *Plan, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create plan directory: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode plan document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write plan document: %w", err)
	}
	return nil
}
