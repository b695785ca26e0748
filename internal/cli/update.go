package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/library/internal/engine"
	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/library"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Caller   string
	Index    uint32
	Name     string
	Category string
	Author   string
}

// UpdateResult is the payload of a successful update.
type UpdateResult struct {
	Index        uint32 `json:"index"`
	Message      string `json:"message"`
	InvocationID string `json:"invocation_id"`
}

// Text renders the result for humans.
func (r UpdateResult) Text() string {
	return r.Message + "\n"
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change fields of a book owned by --caller",
		Long: `Change the name, category and/or author of the book at --index.

Only fields whose flags are given are replaced; passing --name "" sets an
empty name. The update is rejected unless --caller is the identity recorded
at ownership entry --index.

Exit codes:
  0 - Book updated
  1 - Rejected (index out of range, not the owner, malformed record)
  2 - Command error

Example:
  library update --caller alice --index 0 --name "Dune Messiah"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch library.Patch
			if cmd.Flags().Changed("name") {
				patch.Name = &opts.Name
			}
			if cmd.Flags().Changed("category") {
				patch.Category = &opts.Category
			}
			if cmd.Flags().Changed("author") {
				patch.Author = &opts.Author
			}
			return runUpdate(opts, patch, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Caller, "caller", "", "identity making the change (required)")
	cmd.Flags().Uint32Var(&opts.Index, "index", 0, "index of the book to change (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "new book name")
	cmd.Flags().StringVar(&opts.Category, "category", "", "new book category")
	cmd.Flags().StringVar(&opts.Author, "author", "", "new book author")
	_ = cmd.MarkFlagRequired("caller")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

func runUpdate(opts *UpdateOptions, patch library.Patch, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	s, err := openSession(ctx, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.engine.Execute(ctx, engine.UpdateBookRequest(ir.Identity(opts.Caller), opts.Index, patch))
	if err != nil {
		return reportRuntimeError(f, err)
	}

	if !resp.OK() {
		return f.Fail(ExitFailure, statusErrorCode(resp.Status()), resp.Message(), map[string]any{
			"index":         opts.Index,
			"caller":        opts.Caller,
			"status":        resp.Status(),
			"invocation_id": resp.Call.Invocation.ID,
		})
	}
	return f.Success(UpdateResult{
		Index:        opts.Index,
		Message:      resp.Message(),
		InvocationID: resp.Call.Invocation.ID,
	})
}
