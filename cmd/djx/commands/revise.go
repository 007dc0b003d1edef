package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openjuicer/openjuicer/pkg/plan"
	"github.com/openjuicer/openjuicer/pkg/trace"
)

func newReviseCommand() *cobra.Command {
	var (
		baseFile    string
		intent      string
		outFile     string
		withLastRun bool
	)

	cmd := &cobra.Command{
		Use:   "revise",
		Short: "Create the next revision of a plan",
		Long: `Create a new plan derived from an existing one.

The revision:
  - Gets a fresh plan_id and revision = base revision + 1
  - Records lineage via parent_plan_id
  - Inherits dataset and export paths unconditionally
  - Carries a change summary, either model-provided or diff-derived`,
		Example: `  # Revise a plan with a follow-up instruction
  djx revise --base plan.yaml --intent "keep documents above 50 chars"

  # Let the model see the most recent execution of the base plan
  djx revise --base plan.yaml --intent "fix the failing operator" --with-last-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			base, err := plan.Load(baseFile)
			if err != nil {
				return fmt.Errorf("failed to load base plan: %w", err)
			}

			var lastRun *trace.Record
			if withLastRun {
				store, err := openStore(cmd.Context(), settings)
				if err != nil {
					return err
				}
				defer store.Close()
				runs, err := store.ListByPlan(base.PlanID, 1)
				if err != nil {
					return err
				}
				if len(runs) > 0 {
					lastRun = runs[len(runs)-1]
				}
			}

			pl, err := newPlanner(cmd.Context(), settings, false)
			if err != nil {
				return err
			}
			revised, meta, err := pl.Revise(cmd.Context(), base, intent, lastRun)
			if err != nil {
				return fmt.Errorf("revision failed: %w", err)
			}

			findings := plan.Validate(revised)
			path, err := savePlan(settings, revised, outFile)
			if err != nil {
				return err
			}

			log.Info().
				Str("plan_id", revised.PlanID).
				Str("parent_plan_id", revised.ParentPlanID).
				Int("revision", revised.Revision).
				Str("path", path).
				Msg("Plan revised")

			return printJSON(map[string]any{
				"plan":      revised,
				"meta":      meta,
				"findings":  findings,
				"plan_path": path,
			})
		},
	}

	cmd.Flags().StringVarP(&baseFile, "base", "b", "", "base plan document")
	cmd.Flags().StringVarP(&intent, "intent", "i", "", "revision instruction")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "plan document output path")
	cmd.Flags().BoolVar(&withLastRun, "with-last-run", false, "include the base plan's last run as revision context")
	cmd.MarkFlagRequired("base")
	cmd.MarkFlagRequired("intent")

	return cmd
}
