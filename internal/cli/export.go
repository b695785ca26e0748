package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/library/internal/seed"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current state as a seed file",
		Long: `Write the current books and ownership entries as a YAML seed that
'library init' accepts.

Examples:
  library export > snapshot.yaml
  library export -o snapshot.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, output, cmd)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func runExport(opts *RootOptions, output string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	b, err := openBackend(opts)
	if err != nil {
		return err
	}
	defer b.Close()

	ok, err := b.Initialized(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "failed to read store", err.Error())
	}
	if !ok {
		return f.Fail(ExitCommandError, ErrCodeNotInitialized, "library is not initialized", nil)
	}

	state, err := b.LoadState(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "failed to load state", err.Error())
	}

	w := cmd.OutOrStdout()
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output file", err)
		}
		defer file.Close()
		w = file
	}

	if err := seed.Encode(w, state); err != nil {
		return WrapExitError(ExitCommandError, "failed to encode state", err)
	}
	opts.Logger().Debug("state exported", "books", len(state.Books), "owners", len(state.Owners))
	return nil
}
