package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/formcheck/internal/config"
	"github.com/roach88/formcheck/internal/tracking"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Environ replaces the process environment for config overrides.
	// Nil reads the real environment.
	Environ map[string]string

	// Waiter replaces the real settle timer. Nil uses tracking.SleepWaiter.
	Waiter tracking.Waiter
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the formcheck CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formcheck",
		Short: "formcheck - survey form verification harness",
		Long: `End-to-end verification for a survey form and its tracking pipeline.

Each scenario submits answer sets through the real form (token and session
threaded through one GET and one POST per submission), checks every
response, waits for the tracking service to settle and compares the number
of new tracking events against the expected delta.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewScenariosCommand(opts))
	cmd.AddCommand(NewExtractCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// session is the configuration and logger a command runs with.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	close  func() error
}

// openSession loads the configuration and installs the logger.
// The caller must call close when the command finishes.
func (o *RootOptions) openSession(stderr io.Writer) (*session, error) {
	cfg, err := config.LoadWithEnv(o.ConfigPath, o.Environ)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger, closeLog, err := newLogger(stderr, o.Verbose, cfg.LogFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open log file", err)
	}
	slog.SetDefault(logger)

	return &session{cfg: cfg, logger: logger, close: closeLog}, nil
}
