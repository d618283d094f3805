package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/formcheck/internal/config"
	"github.com/roach88/formcheck/internal/failure"
)

// ExtractOptions holds flags for the extract command.
type ExtractOptions struct {
	*RootOptions
	HTML bool // force the HTML extractor
}

// ExtractResult is the protocol state read from one form page.
type ExtractResult struct {
	Endpoint  string `json:"endpoint"`
	Extractor string `json:"extractor"`
	Token     string `json:"token"`
	Session   string `json:"session"`
}

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExtractOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Fetch the form once and print its protocol state",
		Long: `Fetch the form page once and print the anti-forgery token and session
it carries. Use this to check the page contract after a form redesign
without submitting anything.

Examples:
  formcheck extract
  formcheck extract --html --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.HTML, "html", false, "parse the page as HTML instead of matching the raw marker")

	return cmd
}

func runExtract(opts *ExtractOptions, cmd *cobra.Command) error {
	sess, err := opts.openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.close()

	cfg := sess.cfg
	if opts.HTML {
		cfg.Extractor = config.ExtractorHTML
	}

	client, err := newFormClient(cfg, sess.logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up form client", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	state, err := client.FetchState(cmd.Context())
	if err != nil {
		code := string(failure.CodeOf(err))
		if code == "" {
			code = ErrCodeGeneric
		}
		if opts.Format == "json" {
			if outErr := formatter.Error(code, err.Error(), map[string]string{"endpoint": cfg.FormURL}); outErr != nil {
				return outErr
			}
		}
		return WrapExitError(ExitFailure, "extract failed", err)
	}

	result := ExtractResult{
		Endpoint:  cfg.FormURL,
		Extractor: cfg.Extractor,
		Token:     state.Token,
		Session:   state.Session,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "endpoint:  %s\n", result.Endpoint)
	fmt.Fprintf(w, "extractor: %s\n", result.Extractor)
	fmt.Fprintf(w, "token:     %s\n", result.Token)
	fmt.Fprintf(w, "session:   %s\n", result.Session)
	return nil
}
