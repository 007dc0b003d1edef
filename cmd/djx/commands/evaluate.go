package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openjuicer/openjuicer/pkg/eval"
)

func newEvaluateCommand() *cobra.Command {
	var (
		casesFile      string
		mode           string
		jobs           int
		retries        int
		timeoutSeconds int
		topK           int
		reportFile     string
		errorsFile     string
		noHistory      bool
		fullPlan       bool
		strict         bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run an evaluation batch",
		Long: `Run a JSONL case file through the full plan/validate/execute pipeline.

Each case is planned, validated, and (depending on --mode) executed with
up to --retries additional attempts. The batch produces a full report, an
error-only report, and appends a history entry for longitudinal tracking.`,
		Example: `  # Dry-run a case file with four workers
  djx evaluate --cases cases.jsonl --mode dry-run --jobs 4

  # Real execution with one retry per failing case
  djx evaluate --cases cases.jsonl --mode run --retries 1

  # Planning-quality only, no execution
  djx evaluate --cases cases.jsonl --mode none`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch mode {
			case eval.ModeNone, eval.ModeDryRun, eval.ModeRun:
			default:
				return usageError(fmt.Errorf("--mode must be one of none/dry-run/run"))
			}
			if jobs < 1 {
				return usageError(fmt.Errorf("--jobs must be >= 1"))
			}
			if retries < 0 {
				return usageError(fmt.Errorf("--retries must be >= 0"))
			}
			if topK < 1 {
				return usageError(fmt.Errorf("--top-k must be >= 1"))
			}

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

			cases, err := eval.LoadCases(casesFile)
			if err != nil {
				return usageError(err)
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
			store, err := openStore(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer store.Close()

			runner := &eval.Runner{
				Generator: pl,
				Catalog:   openRegistry(cmd.Context(), settings),
				Store:     store,
				Metrics:   tel.Metrics,
			}

			started := time.Now()
			report, err := runner.Run(cmd.Context(), cases, eval.Options{
				Mode:         mode,
				Timeout:      time.Duration(timeoutSeconds) * time.Second,
				Retries:      retries,
				Jobs:         jobs,
				FailureTopK:  topK,
				RunDir:       settings.RunDir(),
				FullPlanMode: fullPlan,
				Strict:       strict,
			})
			if err != nil {
				return err
			}

			if reportFile == "" {
				reportFile = filepath.Join(settings.ReportDir(),
					fmt.Sprintf("eval_%s.json", started.UTC().Format("20060102T150405Z")))
			}
			if err := report.Write(reportFile); err != nil {
				return err
			}
			if errorsFile == "" {
				errorsFile = strings.TrimSuffix(reportFile, ".json") + "_errors.json"
			}
			if err := report.WriteErrors(errorsFile); err != nil {
				return err
			}
			if !noHistory {
				if err := report.AppendHistory(settings.HistoryPath(), reportFile); err != nil {
					log.Warn().Err(err).Msg("Failed to append evaluation history")
				}
			}

			log.Info().
				Int("total_cases", report.Summary.TotalCases).
				Float64("plan_valid_rate", report.Summary.PlanValidRate).
				Float64("execution_success_rate", report.Summary.ExecutionSuccessRate).
				Float64("task_success_rate", report.Summary.TaskSuccessRate).
				Dur("elapsed", time.Since(started)).
				Str("report", reportFile).
				Msg("Evaluation finished")

			return printJSON(report.Summary)
		},
	}

	cmd.Flags().StringVar(&casesFile, "cases", "", "JSONL case file")
	cmd.Flags().StringVar(&mode, "mode", eval.ModeDryRun, "execution mode: none, dry-run or run")
	cmd.Flags().IntVar(&jobs, "jobs", 4, "concurrent workers")
	cmd.Flags().IntVar(&retries, "retries", 0, "additional attempts per failing case")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "per-attempt timeout in seconds (default from config)")
	cmd.Flags().IntVar(&topK, "top-k", 5, "failure buckets to keep in the summary")
	cmd.Flags().StringVar(&reportFile, "report", "", "report output path")
	cmd.Flags().StringVar(&errorsFile, "errors-out", "", "error-only report output path")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "skip the history log entry")
	cmd.Flags().BoolVar(&fullPlan, "full-plan", false, "generate every plan with the model")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail operator-name check even with an empty catalog")
	cmd.MarkFlagRequired("cases")

	return cmd
}
