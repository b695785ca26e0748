package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/library/internal/ir"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	InvocationID string
}

// LogEntry is one journaled call.
type LogEntry struct {
	Seq          int64     `json:"seq"`
	InvocationID string    `json:"invocation_id"`
	Token        string    `json:"token"`
	Op           ir.Op     `json:"op"`
	Caller       string    `json:"caller"`
	Args         ir.Object `json:"args"`
	Status       ir.Status `json:"status,omitempty"`
	Result       ir.Object `json:"result,omitempty"`
}

// LogResult is the payload of the log command.
type LogResult struct {
	Entries []LogEntry `json:"entries"`
}

// Text renders the result for humans.
func (r LogResult) Text() string {
	if len(r.Entries) == 0 {
		return "Journal is empty.\n"
	}
	var b strings.Builder
	for _, e := range r.Entries {
		args, _ := ir.MarshalObject(e.Args)
		fmt.Fprintf(&b, "%6d  %-22s %-12s %s", e.Seq, e.Op, e.Caller, args)
		if e.Status != "" {
			fmt.Fprintf(&b, "  -> %s", e.Status)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the journal of calls",
		Long: `Show every journaled call in seq order, or a single invocation with --id.

Examples:
  library log
  library log --format json
  library log --id 3f2a...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.InvocationID, "id", "", "show a single invocation")
	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	b, err := openBackend(opts.RootOptions)
	if err != nil {
		return err
	}
	defer b.Close()

	if opts.InvocationID != "" {
		inv, err := b.ReadInvocation(ctx, opts.InvocationID)
		if errors.Is(err, ir.ErrNotFound) {
			return f.Fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("invocation %s not found", opts.InvocationID), nil)
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStorage, "failed to read invocation", err.Error())
		}
		return f.Success(LogResult{Entries: []LogEntry{{
			Seq:          inv.Seq,
			InvocationID: inv.ID,
			Token:        inv.Token,
			Op:           inv.Op,
			Caller:       string(inv.Caller),
			Args:         inv.Args,
		}}})
	}

	calls, err := b.ReadCalls(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStorage, "failed to read journal", err.Error())
	}
	result := LogResult{Entries: make([]LogEntry, 0, len(calls))}
	for _, c := range calls {
		result.Entries = append(result.Entries, LogEntry{
			Seq:          c.Invocation.Seq,
			InvocationID: c.Invocation.ID,
			Token:        c.Invocation.Token,
			Op:           c.Invocation.Op,
			Caller:       string(c.Invocation.Caller),
			Args:         c.Invocation.Args,
			Status:       c.Completion.Status,
			Result:       c.Completion.Result,
		})
	}
	return f.Success(result)
}
