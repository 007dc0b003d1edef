package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openjuicer/openjuicer/pkg/executor"
	"github.com/openjuicer/openjuicer/pkg/plan"
)

func newApplyCommand() *cobra.Command {
	var (
		planFile       string
		autoApprove    bool
		dryRun         bool
		timeoutSeconds int
		strict         bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Execute a plan",
		Long: `Execute a validated plan against the Data-Juicer engine.

This command:
  - Loads and validates the plan document
  - Prompts for approval when the plan requires it (unless --yes)
  - Materializes the recipe artifact and runs dj-process
  - Classifies failures and appends an immutable run trace
  - Propagates the engine's exit code`,
		Example: `  # Apply with approval prompt
  djx apply --plan plan.yaml

  # Auto-approve and apply
  djx apply --plan plan.yaml --yes

  # Rehearse without touching the engine
  djx apply --plan plan.yaml --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if timeoutSeconds == 0 {
				timeoutSeconds = settings.Execution.TimeoutSeconds
			}
			if timeoutSeconds <= 0 {
				return usageError(fmt.Errorf("--timeout must be positive"))
			}

			tel, err := initTelemetry(settings)
			if err != nil {
				return err
			}
			defer tel.Shutdown(cmd.Context())

			p, err := plan.Load(planFile)
			if err != nil {
				return usageError(fmt.Errorf("failed to load plan: %w", err))
			}

			findings := plan.ValidateForExecution(p, plan.ValidateOptions{
				Catalog: openRegistry(cmd.Context(), settings),
				Strict:  strict,
			})
			if len(findings) > 0 {
				tel.Metrics.RecordValidationFailure()
				if err := printJSON(map[string]any{"plan_id": p.PlanID, "findings": findings}); err != nil {
					return err
				}
				return &ExitError{Code: exitUsage, Err: fmt.Errorf("plan has %d validation findings", len(findings))}
			}

			if p.ApprovalRequired && !autoApprove {
				if !confirmApply(p) {
					return &ExitError{Code: exitDeclined, Err: fmt.Errorf("apply declined")}
				}
			}

			store, err := openStore(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := executor.Execute(cmd.Context(), p, executor.Options{
				RunDir:  settings.RunDir(),
				DryRun:  dryRun,
				Timeout: time.Duration(timeoutSeconds) * time.Second,
				Metrics: tel.Metrics,
			})
			if err != nil {
				return err
			}
			if err := store.Save(result.Trace); err != nil {
				log.Warn().Err(err).Str("run_id", result.Trace.RunID).Msg("Failed to persist run trace")
			}

			log.Info().
				Str("run_id", result.Trace.RunID).
				Str("plan_id", p.PlanID).
				Str("status", string(result.Trace.Status)).
				Int("exit_code", result.ExitCode).
				Msg("Plan applied")

			if err := printJSON(result.Trace); err != nil {
				return err
			}
			if result.ExitCode != 0 {
				return &ExitError{
					Code: result.ExitCode,
					Err:  fmt.Errorf("engine exited with code %d", result.ExitCode),
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&planFile, "plan", "p", "", "plan document to execute")
	cmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "skip approval prompt")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "write the recipe but skip the engine")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "execution timeout in seconds (default from config)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail operator-name check even with an empty catalog")
	cmd.MarkFlagRequired("plan")

	return cmd
}

// confirmApply shows a short plan summary and reads a y/N answer from stdin.
func confirmApply(p *plan.Plan) bool {
	fmt.Printf("Plan %s (revision %d, workflow %s)\n", p.PlanID, p.Revision, p.Workflow)
	fmt.Printf("  dataset: %s\n", p.DatasetPath)
	fmt.Printf("  export:  %s\n", p.ExportPath)
	fmt.Printf("  operators (%d):\n", len(p.Operators))
	for _, op := range p.Operators {
		fmt.Printf("    - %s\n", op.Name)
	}
	for _, note := range p.RiskNotes {
		fmt.Printf("  risk: %s\n", note)
	}
	fmt.Print("Apply this plan? [y/N]: ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
