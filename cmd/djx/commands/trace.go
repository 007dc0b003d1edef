package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTraceCommand() *cobra.Command {
	var (
		planID string
		limit  int
		stats  bool
	)

	cmd := &cobra.Command{
		Use:   "trace [run_id]",
		Short: "Inspect run traces",
		Long: `Inspect the append-only run trace store.

Modes:
  - With a run_id argument: print that single trace
  - With --stats: print aggregate statistics, optionally scoped by --plan-id
  - Otherwise: list recent traces, optionally scoped by --plan-id`,
		Example: `  # Show one run
  djx trace run_1a2b3c4d5e6f

  # Last ten runs of a plan
  djx trace --plan-id plan_9f8e7d6c5b4a --limit 10

  # Aggregate success rates and failure classes
  djx trace --stats`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return usageError(fmt.Errorf("--limit must be >= 1"))
			}

			settings, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				rec, err := store.Get(args[0])
				if err != nil {
					return fmt.Errorf("run %s: %w", args[0], err)
				}
				return printJSON(rec)
			}

			if stats {
				st, err := store.Stats(planID)
				if err != nil {
					return err
				}
				return printJSON(st)
			}

			var records any
			if planID != "" {
				records, err = store.ListByPlan(planID, limit)
			} else {
				records, err = store.ListAll(limit)
			}
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}

	cmd.Flags().StringVar(&planID, "plan-id", "", "scope to one plan's runs")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of traces to list")
	cmd.Flags().BoolVar(&stats, "stats", false, "print aggregate statistics")

	return cmd
}
