package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/seed"
)

// ValidateResult is the payload of the validate command.
type ValidateResult struct {
	File     string   `json:"file"`
	Books    int      `json:"books"`
	Owners   int      `json:"owners"`
	Digest   string   `json:"digest"`
	Warnings []string `json:"warnings"`
}

// Text renders the result for humans.
func (r ValidateResult) Text() string {
	s := fmt.Sprintf("%s: valid (%d book(s), %d ownership entr(ies))\n", r.File, r.Books, r.Owners)
	for _, w := range r.Warnings {
		s += "warning: " + w + "\n"
	}
	return s
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <seed-file>",
		Short: "Check a seed file without touching any database",
		Long: `Check a seed file against the seed schema.

Warnings point out ownership entries that do not line up with the books.
They do not make the seed invalid.

Example:
  library validate seed.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			state, err := seed.Load(args[0])
			if err != nil {
				return failLoad(f, err)
			}
			return f.Success(ValidateResult{
				File:     args[0],
				Books:    len(state.Books),
				Owners:   len(state.Owners),
				Digest:   ir.StateDigest(state),
				Warnings: seed.Warnings(state),
			})
		},
	}
}
