package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/library/internal/engine"
	"github.com/roach88/library/internal/ir"
)

// BooksOptions holds flags for the books command.
type BooksOptions struct {
	*RootOptions
	Owner    string
	Caller   string
	ReadOnly bool
}

// BooksResult is the payload of the books command.
type BooksResult struct {
	Owner string   `json:"owner"`
	Books []string `json:"books"`
}

// Text renders the result for humans.
func (r BooksResult) Text() string {
	if len(r.Books) == 0 {
		return fmt.Sprintf("%s owns no books\n", r.Owner)
	}
	return strings.Join(r.Books, "\n") + "\n"
}

// NewBooksCommand creates the books command.
func NewBooksCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BooksOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "books",
		Short: "List the books owned by --owner",
		Long: `List the encoded records owned by --owner, in ownership-entry order.

By default the query goes through the engine and is journaled like any other
call. --readonly answers from storage directly and writes nothing.

Examples:
  library books --owner alice
  library books --owner alice --readonly --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBooks(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "identity whose books to list (required)")
	cmd.Flags().StringVar(&opts.Caller, "caller", "", "identity making the query (defaults to --owner)")
	cmd.Flags().BoolVar(&opts.ReadOnly, "readonly", false, "read from storage without journaling the query")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runBooks(opts *BooksOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)
	owner := ir.Identity(opts.Owner)

	if opts.ReadOnly {
		b, err := openBackend(opts.RootOptions)
		if err != nil {
			return err
		}
		defer b.Close()

		books, err := b.BooksByOwner(ctx, owner)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStorage, "failed to query books", err.Error())
		}
		return f.Success(BooksResult{Owner: opts.Owner, Books: books})
	}

	s, err := openSession(ctx, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer s.Close()

	caller := opts.Caller
	if caller == "" {
		caller = opts.Owner
	}
	resp, err := s.engine.Execute(ctx, engine.BooksByOwnerRequest(ir.Identity(caller), owner))
	if err != nil {
		return reportRuntimeError(f, err)
	}
	return f.Success(BooksResult{Owner: opts.Owner, Books: resp.Books()})
}
