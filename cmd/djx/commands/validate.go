package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openjuicer/openjuicer/pkg/plan"
)

func newValidateCommand() *cobra.Command {
	var (
		schemaOnly bool
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Validate a plan document",
		Long: `Validate a plan document and report every violation.

Checks:
  - Schema: required fields, enum values, operator shape, modality bindings
  - Execution preconditions: dataset existence, export parent directory
  - Operator names against the installed catalog (fails open when the
    catalog is empty, unless --strict)`,
		Example: `  # Full validation including filesystem and catalog checks
  djx validate plan.yaml

  # Schema checks only
  djx validate plan.yaml --schema-only`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			p, err := plan.Load(args[0])
			if err != nil {
				return usageError(fmt.Errorf("failed to load plan: %w", err))
			}

			var findings []string
			if schemaOnly {
				findings = plan.Validate(p)
			} else {
				findings = plan.ValidateForExecution(p, plan.ValidateOptions{
					Catalog: openRegistry(cmd.Context(), settings),
					Strict:  strict,
				})
			}

			if err := printJSON(map[string]any{
				"plan_id":  p.PlanID,
				"valid":    len(findings) == 0,
				"findings": findings,
			}); err != nil {
				return err
			}
			if len(findings) > 0 {
				return &ExitError{Code: exitUsage, Err: fmt.Errorf("plan has %d validation findings", len(findings))}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&schemaOnly, "schema-only", false, "skip filesystem and catalog checks")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail operator-name check even with an empty catalog")

	return cmd
}
