package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openjuicer/openjuicer/pkg/plan"
	"github.com/openjuicer/openjuicer/pkg/planner"
)

func newPlanCommand() *cobra.Command {
	var (
		intent   string
		dataset  string
		export   string
		textKeys []string
		imageKey string
		outFile  string
		fullPlan bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a plan from an intent",
		Long: `Generate a versioned data-processing plan from a natural-language intent.

The plan:
  - Routes the intent onto a workflow template via keyword scoring
  - Optionally refines the template through the configured model
  - Canonicalizes operator names against the installed catalog
  - Is persisted as a YAML document for review and apply`,
		Example: `  # Generate a plan for a text cleaning task
  djx plan --intent "clean rag corpus" --dataset data.jsonl

  # Generate and write to an explicit location
  djx plan --intent "dedup image-text pairs" --dataset pairs.jsonl --out plan.yaml

  # Ask the model for a complete plan instead of a template
  djx plan --intent "..." --dataset data.jsonl --full-plan`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			tel, err := initTelemetry(settings)
			if err != nil {
				return err
			}
			defer tel.Shutdown(cmd.Context())

			pl, err := newPlanner(cmd.Context(), settings, fullPlan)
			if err != nil {
				return err
			}

			p, meta, err := pl.Generate(cmd.Context(), planner.Request{
				Intent:      intent,
				DatasetPath: dataset,
				ExportPath:  export,
				TextKeys:    textKeys,
				ImageKey:    imageKey,
			})
			if err != nil {
				return fmt.Errorf("plan generation failed: %w", err)
			}

			tel.Metrics.RecordPlanGenerated(string(p.Workflow), meta.PlanMode)
			if meta.LLMFallback {
				tel.Metrics.RecordLLMFallback()
			}

			findings := plan.Validate(p)
			if len(findings) > 0 {
				tel.Metrics.RecordValidationFailure()
			}
			path, err := savePlan(settings, p, outFile)
			if err != nil {
				return err
			}

			log.Info().
				Str("plan_id", p.PlanID).
				Str("workflow", string(p.Workflow)).
				Str("plan_mode", meta.PlanMode).
				Str("path", path).
				Msg("Plan generated")

			return printJSON(map[string]any{
				"plan":      p,
				"meta":      meta,
				"findings":  findings,
				"plan_path": path,
			})
		},
	}

	cmd.Flags().StringVarP(&intent, "intent", "i", "", "natural-language task description")
	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "input dataset path")
	cmd.Flags().StringVarP(&export, "export", "e", "", "output path for processed data")
	cmd.Flags().StringSliceVar(&textKeys, "text-keys", nil, "dataset fields holding text")
	cmd.Flags().StringVar(&imageKey, "image-key", "", "dataset field holding image references")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "plan document output path")
	cmd.Flags().BoolVar(&fullPlan, "full-plan", false, "generate the whole plan with the model")
	cmd.MarkFlagRequired("intent")
	cmd.MarkFlagRequired("dataset")

	return cmd
}
