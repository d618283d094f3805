package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ScenarioInfo describes one scenario without running it.
type ScenarioInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Submissions int    `json:"submissions"`
	ExpectDelta int    `json:"expect_delta"`
}

// ScenariosOptions holds flags for the scenarios command.
type ScenariosOptions struct {
	*RootOptions
	Filter string
}

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenariosOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenarios [scenarios-dir]",
		Short: "List scenarios without running them",
		Long: `List scenarios with the number of submissions they expand to and the
tracking delta they expect. Without a directory the built-in scenarios are
listed. Scenario files are fully validated, so this doubles as a lint step.

Examples:
  formcheck scenarios
  formcheck scenarios ./scenarios --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return listScenarios(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func listScenarios(opts *ScenariosOptions, dir string, cmd *cobra.Command) error {
	sess, err := opts.openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.close()

	scenarios, err := loadScenarios(dir, opts.Filter, sess.cfg.Fixtures)
	if err != nil {
		return err
	}

	infos := make([]ScenarioInfo, 0, len(scenarios))
	for _, s := range scenarios {
		subs, err := s.Expand(sess.cfg.Fixtures)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s", s.Name), err)
		}
		infos = append(infos, ScenarioInfo{
			Name:        s.Name,
			Description: s.Description,
			Submissions: len(subs),
			ExpectDelta: *s.ExpectDelta,
		})
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(infos)
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%-52s %3d submissions  delta %d\n", info.Name, info.Submissions, info.ExpectDelta)
		formatter.VerboseLog("  %s", info.Description)
	}
	return nil
}
