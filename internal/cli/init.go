package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/seed"
)

// InitResult is the payload of the init command.
type InitResult struct {
	Backend  string   `json:"backend"`
	Database string   `json:"database"`
	Books    int      `json:"books"`
	Owners   int      `json:"owners"`
	Digest   string   `json:"digest"`
	Warnings []string `json:"warnings"`
}

// Text renders the result for humans.
func (r InitResult) Text() string {
	s := fmt.Sprintf("Initialized %s library at %s with %d book(s) and %d ownership entr(ies)\n",
		r.Backend, r.Database, r.Books, r.Owners)
	for _, w := range r.Warnings {
		s += "warning: " + w + "\n"
	}
	return s
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <seed-file>",
		Short: "Create a library from a seed file",
		Long: `Create a library from a seed file of books and ownership entries.

The seed may be YAML, JSON or CUE and is validated against the seed schema.
Ownership entries are stored as given: entry i guards updates to book i.

Examples:
  library init seed.yaml --db ./library.db
  library init seed.cue --backend bolt --db ./library.bolt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, args[0], cmd)
		},
	}
}

func runInit(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	state, err := seed.Load(path)
	if err != nil {
		return failLoad(f, err)
	}

	b, err := openBackend(opts)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.Initialize(ctx, state); err != nil {
		if errors.Is(err, ir.ErrAlreadyInitialized) {
			return f.Fail(ExitCommandError, ErrCodeAlreadyInitialized,
				fmt.Sprintf("%s is already initialized", opts.Database), nil)
		}
		return f.Fail(ExitCommandError, ErrCodeStorage, "failed to initialize store", err.Error())
	}
	opts.Logger().Info("library initialized", "books", len(state.Books), "owners", len(state.Owners))

	return f.Success(InitResult{
		Backend:  opts.Backend,
		Database: opts.Database,
		Books:    len(state.Books),
		Owners:   len(state.Owners),
		Digest:   ir.StateDigest(state),
		Warnings: seed.Warnings(state),
	})
}

// failLoad reports a seed loading error with its code.
func failLoad(f *OutputFormatter, err error) error {
	var le *seed.LoadError
	if errors.As(err, &le) {
		var details any
		if le.Pos.IsValid() {
			details = map[string]any{"file": le.Pos.Filename(), "line": le.Pos.Line(), "column": le.Pos.Column()}
		}
		return f.Fail(ExitCommandError, le.Code, le.Message, details)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
