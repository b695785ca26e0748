package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/library/internal/engine"
	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/library"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Owner    string
	Caller   string
	Name     string
	Category string
	Author   string
}

// CreateResult is the payload of the create command.
type CreateResult struct {
	Index        uint32 `json:"index"`
	Owner        string `json:"owner"`
	Caller       string `json:"caller"`
	Record       string `json:"record"`
	InvocationID string `json:"invocation_id"`
}

// Text renders the result for humans.
func (r CreateResult) Text() string {
	return fmt.Sprintf("Created book %d owned by %s: %s\n", r.Index, r.Owner, r.Record)
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Append a book owned by --owner",
		Long: `Append a book and register --owner as the only identity allowed to update it.

The journal records --caller as the identity making the call; it defaults to
--owner. Field values are stored as given; a value containing ";" will read
back as extra fields.

Examples:
  library create --owner alice --name Dune --category SciFi --author Herbert
  library create --caller librarian --owner bob --name Emma --author Austen`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "identity that will own the book (required)")
	cmd.Flags().StringVar(&opts.Caller, "caller", "", "identity making the call (defaults to --owner)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "book name")
	cmd.Flags().StringVar(&opts.Category, "category", "", "book category")
	cmd.Flags().StringVar(&opts.Author, "author", "", "book author")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runCreate(opts *CreateOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	s, err := openSession(ctx, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer s.Close()

	caller := opts.Caller
	if caller == "" {
		caller = opts.Owner
	}
	resp, err := s.engine.Execute(ctx, engine.CreateBookRequest(
		ir.Identity(caller), ir.Identity(opts.Owner), opts.Name, opts.Category, opts.Author))
	if err != nil {
		return reportRuntimeError(f, err)
	}

	index, _ := resp.Index()
	return f.Success(CreateResult{
		Index:        index,
		Owner:        opts.Owner,
		Caller:       caller,
		Record:       library.EncodeRecord(opts.Name, opts.Category, opts.Author),
		InvocationID: resp.Call.Invocation.ID,
	})
}
