package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "djx",
		Short: "djx - Data-Juicer pipeline orchestrator",
		Long: `djx turns natural-language cleaning intents into validated, versioned
data-processing plans and executes them against the Data-Juicer engine.

Features:
  - Keyword routing onto workflow templates
  - Optional language-model plan refinement and revision
  - Plan validation with operator-name canonicalization
  - Append-only run trace store (JSONL or SQLite)
  - Concurrent batch evaluation with failure buckets`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		SilenceUsage: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newReviseCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newTraceCommand())
	rootCmd.AddCommand(newEvaluateCommand())
	rootCmd.AddCommand(newTemplatesCommand())
	rootCmd.AddCommand(newOperatorsCommand())

	return rootCmd
}
