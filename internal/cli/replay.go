package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/library/internal/engine"
	"github.com/roach88/library/internal/ir"
)

// ReplayResult is the payload of the replay command.
type ReplayResult struct {
	Calls         int               `json:"calls"`
	Deterministic bool              `json:"deterministic"`
	Digest        string            `json:"digest"`
	StoredDigest  string            `json:"stored_digest"`
	Mismatches    []engine.Mismatch `json:"mismatches"`
}

// Text renders the result for humans.
func (r ReplayResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Replayed %d call(s)\n", r.Calls)
	fmt.Fprintf(&b, "  replayed digest: %s\n", r.Digest)
	fmt.Fprintf(&b, "  stored digest:   %s\n", r.StoredDigest)
	for _, m := range r.Mismatches {
		fmt.Fprintf(&b, "  seq %d %s: recorded %s, replayed %s\n", m.Seq, m.Field, m.Recorded, m.Replayed)
	}
	if r.Deterministic {
		b.WriteString("Journal reproduces the stored state.\n")
	}
	return b.String()
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Verify the journal reproduces the stored state",
		Long: `Rebuild the library from its seed, re-apply every journaled call and
compare outcomes and the final state digest with what is stored.

Exit codes:
  0 - Replay matches
  1 - Replay diverged
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	b, err := openBackend(opts)
	if err != nil {
		return err
	}
	defer b.Close()

	seedState, err := b.Seed(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotInitialized, "failed to read seed", err.Error())
	}
	calls, err := b.ReadCalls(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "failed to read journal", err.Error())
	}
	stored, err := b.LoadState(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "failed to load state", err.Error())
	}

	replayed := engine.Replay(seedState, calls)
	result := ReplayResult{
		Calls:         replayed.Calls,
		Digest:        replayed.Digest,
		StoredDigest:  ir.StateDigest(stored),
		Mismatches:    replayed.Mismatches,
		Deterministic: replayed.Deterministic(),
	}
	if result.Digest != result.StoredDigest {
		result.Deterministic = false
	}
	opts.Logger().Debug("replay finished", "calls", result.Calls, "mismatches", len(result.Mismatches))

	if !result.Deterministic {
		return f.Fail(ExitFailure, ErrCodeReplayDiverged, "replay diverged from the journal", result)
	}
	return f.Success(result)
}
