package plan

import (
	"fmt"
	"os"
	"path/filepath"
)

// OperatorCatalog is the read-only registry capability the validator needs.
// An empty name set means the registry is currently unavailable.
type OperatorCatalog interface {
	Names() []string
}

// ValidateOptions controls the execution-time checks layered on top of the
// pure validator.
type ValidateOptions struct {
	// Catalog supplies the installed operator names. Nil skips the check.
	Catalog OperatorCatalog

	// Strict keeps operator-name validation on even when the catalog
	// reports itself empty. The default (false) fails open so offline
	// environments without installed operator metadata stay usable.
	Strict bool
}

// Validate runs the pure schema checks and returns all violations in a fixed
// order. An empty slice means the plan is valid. Violations are collected,
// never short-circuited.
func Validate(p *Plan) []string {
	var errs []string

	if p.PlanID == "" {
		errs = append(errs, "plan_id is required")
	}
	if p.UserIntent == "" {
		errs = append(errs, "user_intent is required")
	}
	if p.Workflow.Validate() != nil {
		errs = append(errs, "workflow must be one of text_cleaning/multimodal_dedup/custom")
	}
	if p.DatasetPath == "" {
		errs = append(errs, "dataset_path is required")
	}
	if p.ExportPath == "" {
		errs = append(errs, "export_path is required")
	}
	if p.Modality.Validate() != nil {
		errs = append(errs, "modality must be one of text/image/multimodal/unknown")
	}
	if p.Revision < 1 {
		errs = append(errs, "revision must be >= 1")
	}
	if len(p.Operators) == 0 {
		errs = append(errs, "operators must not be empty")
	}
	for i := range p.Operators {
		op := &p.Operators[i]
		if op.Name == "" {
			errs = append(errs, fmt.Sprintf("operators[%d].name is required", i))
		}
		if op.ParamsInvalid() {
			errs = append(errs, fmt.Sprintf("operators[%d].params must be an object", i))
		}
	}

	if p.Modality == ModalityText && len(p.TextKeys) == 0 {
		errs = append(errs, "text modality requires text_keys")
	}
	if p.Modality == ModalityImage && p.ImageKey == "" {
		errs = append(errs, "image modality requires image_key")
	}
	if p.Modality == ModalityMultimodal {
		if len(p.TextKeys) == 0 {
			errs = append(errs, "multimodal modality requires text_keys")
		}
		if p.ImageKey == "" {
			errs = append(errs, "multimodal modality requires image_key")
		}
	}

	return errs
}

// ValidateForExecution runs Validate plus the filesystem preconditions and
// the operator registry check. This is the gate applied before any plan is
// handed to the executor.
func ValidateForExecution(p *Plan, opts ValidateOptions) []string {
	errs := Validate(p)

	if p.DatasetPath != "" {
		if _, err := os.Stat(p.DatasetPath); err != nil {
			errs = append(errs, fmt.Sprintf("dataset_path does not exist: %s", p.DatasetPath))
		}
	}
	if p.ExportPath != "" {
		parent := filepath.Dir(absPath(p.ExportPath))
		if _, err := os.Stat(parent); err != nil {
			errs = append(errs, fmt.Sprintf("export parent directory does not exist: %s", parent))
		}
	}

	errs = append(errs, checkOperatorNames(p, opts)...)

	return errs
}

// checkOperatorNames validates operator names against the registry catalog.
// When the catalog is empty and Strict is off the check is skipped entirely.
func checkOperatorNames(p *Plan, opts ValidateOptions) []string {
	if opts.Catalog == nil {
		return nil
	}
	names := opts.Catalog.Names()
	if len(names) == 0 && !opts.Strict {
		return nil
	}

	known := make(map[string]struct{}, len(names))
	for _, name := range names {
		known[name] = struct{}{}
	}

	var errs []string
	for i := range p.Operators {
		name := p.Operators[i].Name
		if name == "" {
			continue
		}
		if _, ok := known[name]; !ok {
			errs = append(errs, fmt.Sprintf(
				"unsupported operator '%s'; not found in installed Data-Juicer operators", name))
		}
	}
	return errs
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
