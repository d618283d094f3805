package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/formcheck/internal/harness"
	"github.com/roach88/formcheck/internal/metrics"
	"github.com/roach88/formcheck/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter      string // scenario filter (glob pattern)
	Database    string // run history database, optional
	MetricsFile string // Prometheus textfile output, optional
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name          string        `json:"name"`
	Pass          bool          `json:"pass"`
	State         harness.State `json:"state"`
	Submissions   int           `json:"submissions"`
	Delta         int           `json:"delta"`
	ExpectedDelta int           `json:"expected_delta"`
	Errors        []string      `json:"errors,omitempty"`
	RunID         string        `json:"run_id,omitempty"`
}

// RunReport holds the overall run result.
type RunReport struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenarios-dir]",
		Short: "Run verification scenarios against the form",
		Long: `Run verification scenarios sequentially against the configured form and
tracking service. Without a directory the built-in scenarios are run.

Each scenario captures a tracking baseline, performs its submissions,
waits the settle delay and checks the tracking delta. A failing scenario
does not stop the ones after it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (bad config, invalid paths, etc.)

Examples:
  formcheck run
  formcheck run ./scenarios --filter "required_*"
  formcheck run --config formcheck.yaml --db runs.db
  formcheck run --metrics-file /var/lib/node_exporter/formcheck.prom --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runScenarios(cmd.Context(), opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")

	return cmd
}

func runScenarios(ctx context.Context, opts *RunOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := opts.openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.close()
	logger := sess.logger

	scenarios, err := loadScenarios(dir, opts.Filter, sess.cfg.Fixtures)
	if err != nil {
		return err
	}

	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return outputRunJSON(cmd.OutOrStdout(), RunReport{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	h, err := newHarness(sess.cfg, logger, opts.Waiter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up harness", err)
	}

	var history *store.Store
	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		history, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := history.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	recorder := metrics.NewRecorder()
	report := RunReport{
		Scenarios: make([]ScenarioResult, 0, len(scenarios)),
		Total:     len(scenarios),
	}

	w := cmd.OutOrStdout()
	for _, scenario := range scenarios {
		if ctx.Err() != nil {
			break
		}

		result, _ := h.Run(ctx, scenario)
		recorder.Observe(result)

		sr := ScenarioResult{
			Name:          scenario.Name,
			Pass:          result.Pass,
			State:         result.State,
			Submissions:   result.Submissions,
			Delta:         result.Delta,
			ExpectedDelta: result.ExpectedDelta,
			Errors:        result.Errors,
		}

		if history != nil {
			// Record the run even when it was cut short by an interrupt.
			id, err := history.WriteRun(context.WithoutCancel(ctx), result)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to record run", err)
			}
			sr.RunID = id
		}

		if opts.Format != "json" {
			printScenarioResult(w, sr)
		}

		report.Scenarios = append(report.Scenarios, sr)
		if sr.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if opts.MetricsFile != "" {
		if err := recorder.WriteTextfile(opts.MetricsFile); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
		logger.Debug("metrics written", "path", opts.MetricsFile)
	}

	var runErr error
	if opts.Format == "json" {
		runErr = outputRunJSON(w, report)
	} else {
		runErr = outputRunText(w, report)
	}
	if runErr != nil {
		return runErr
	}

	if err := ctx.Err(); err != nil {
		return WrapExitError(ExitFailure,
			fmt.Sprintf("interrupted after %d of %d scenarios", len(report.Scenarios), report.Total), err)
	}
	return nil
}

func printScenarioResult(w io.Writer, sr ScenarioResult) {
	if sr.Pass {
		fmt.Fprintf(w, "✓ %s (%d submissions, delta %d)\n", sr.Name, sr.Submissions, sr.Delta)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", sr.Name)
	for _, e := range sr.Errors {
		for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

// outputRunJSON outputs the run report as JSON.
func outputRunJSON(w io.Writer, report RunReport) error {
	status := "ok"
	if report.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   report,
	}

	if report.Failed > 0 {
		response.Error = &CLIError{
			Code:    ErrCodeRunFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", report.Failed),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Failed))
	}
	return nil
}

// outputRunText outputs the run summary as text.
func outputRunText(w io.Writer, report RunReport) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
