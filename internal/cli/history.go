package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/formcheck/internal/harness"
	"github.com/roach88/formcheck/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Scenario string
	Failed   bool
	Limit    int
	RunID    string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded scenario runs",
		Long: `List scenario runs recorded with "formcheck run --db", newest first.
With --run, show one run including its trace.

Examples:
  formcheck history --db runs.db
  formcheck history --db runs.db --scenario required_questions_cannot_be_skipped --failed
  formcheck history --db runs.db --run 0190f1d2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only runs of this scenario")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only failed runs")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run with its trace")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	// History never creates a database.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()

	if opts.RunID != "" {
		run, err := st.GetRun(ctx, opts.RunID)
		if errors.Is(err, store.ErrRunNotFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		if opts.Format == "json" {
			return formatter.Success(run)
		}
		printRunDetail(cmd.OutOrStdout(), run)
		return nil
	}

	runs, err := st.ListRuns(ctx, store.Filter{
		Scenario:   opts.Scenario,
		FailedOnly: opts.Failed,
		Limit:      opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		return formatter.Success(runs)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		mark := "✓"
		if !run.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s  %s  %s  delta %d/%d\n",
			mark, run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), run.Scenario, run.Delta, run.ExpectedDelta)
	}
	return nil
}

func printRunDetail(w io.Writer, run store.Run) {
	fmt.Fprintf(w, "Run:       %s\n", run.ID)
	fmt.Fprintf(w, "Scenario:  %s\n", run.Scenario)
	fmt.Fprintf(w, "State:     %s\n", run.State)
	fmt.Fprintf(w, "Subject:   %s\n", run.Subject)
	fmt.Fprintf(w, "Baseline:  %d\n", run.Baseline)
	fmt.Fprintf(w, "After:     %d\n", run.After)
	fmt.Fprintf(w, "Delta:     %d (expected %d)\n", run.Delta, run.ExpectedDelta)
	if run.Error != "" {
		fmt.Fprintf(w, "Failure:   %s\n", run.FailureCode)
		fmt.Fprintf(w, "Error:     %s\n", run.Error)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trace:")
	for _, ev := range run.Trace {
		switch ev.Type {
		case harness.EventSubmit:
			fmt.Fprintf(w, "  [%d] submit %s -> %d\n", ev.Seq, ev.Payload, ev.Status)
		default:
			fmt.Fprintf(w, "  [%d] %s count=%d\n", ev.Seq, ev.Type, ev.Count)
		}
		if ev.Error != "" {
			fmt.Fprintf(w, "      error: %s\n", ev.Error)
		}
	}
}
