package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/library/internal/engine"
	"github.com/roach88/library/internal/ir"
)

// batchLine is one JSON-lines request.
type batchLine struct {
	Op     string          `json:"op"`
	Caller string          `json:"caller"`
	Args   json.RawMessage `json:"args"`
}

// BatchEntry reports the outcome of one batch line.
type BatchEntry struct {
	Line   int       `json:"line"`
	Op     string    `json:"op"`
	Status string    `json:"status,omitempty"`
	Result ir.Object `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// BatchResult is the payload of the batch command.
type BatchResult struct {
	Entries   []BatchEntry `json:"entries"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// Text renders the result for humans.
func (r BatchResult) Text() string {
	var b strings.Builder
	for _, e := range r.Entries {
		if e.Error != "" {
			fmt.Fprintf(&b, "%d %s: error: %s\n", e.Line, e.Op, e.Error)
			continue
		}
		result, _ := ir.MarshalObject(e.Result)
		fmt.Fprintf(&b, "%d %s: %s %s\n", e.Line, e.Op, e.Status, result)
	}
	fmt.Fprintf(&b, "%d succeeded, %d failed\n", r.Succeeded, r.Failed)
	return b.String()
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <requests-file|->",
		Short: "Run a file of JSON-lines requests through the engine",
		Long: `Run requests through the single-writer engine loop, one per line:

  {"op": "create_book", "caller": "alice", "args": {"name": "Dune", "category": "SciFi", "author": "Herbert", "owner": "alice"}}
  {"op": "update_book", "caller": "alice", "args": {"index": 0, "author": "F. Herbert"}}
  {"op": "get_books_by_owner_id", "caller": "bob", "args": {"owner": "alice"}}

Blank lines and lines starting with # are skipped. Ctrl-C stops after the
call in progress, even while waiting for input.

Exit codes:
  0 - Every call succeeded
  1 - At least one call was rejected or malformed
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(rootOpts, args[0], cmd)
		},
	}
}

func runBatch(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open requests file", err)
		}
		defer file.Close()
		in = file
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	s, err := openSession(ctx, opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			opts.Logger().Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runDone := make(chan error, 1)
	go func() { runDone <- s.engine.Run(ctx) }()

	result := BatchResult{Entries: []BatchEntry{}}
	lines, scanErrc := scanLines(ctx, in)
	lineNo := 0
read:
	for {
		var text string
		select {
		case <-ctx.Done():
			break read
		case line, ok := <-lines:
			if !ok {
				break read
			}
			text = strings.TrimSpace(line)
		}
		lineNo++
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		entry := submitLine(ctx, s.engine, lineNo, text)
		if entry.Error == "" && entry.Status == string(ir.StatusOK) {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Entries = append(result.Entries, entry)
	}

	var scanErr error
	select {
	case scanErr = <-scanErrc:
	default:
	}

	s.engine.Stop()
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "engine error", err)
	}
	if scanErr != nil {
		return WrapExitError(ExitCommandError, "failed to read requests", scanErr)
	}

	if err := f.Success(result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d call(s) failed", result.Failed))
	}
	return nil
}

// scanLines reads lines from in on its own goroutine so a canceled ctx is
// seen while the reader is idle. The error channel receives the scanner's
// error before lines is closed.
func scanLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

func submitLine(ctx context.Context, eng *engine.Engine, lineNo int, text string) BatchEntry {
	var line batchLine
	if err := json.Unmarshal([]byte(text), &line); err != nil {
		return BatchEntry{Line: lineNo, Error: fmt.Sprintf("invalid JSON: %v", err)}
	}
	entry := BatchEntry{Line: lineNo, Op: line.Op}

	args := ir.Object{}
	if len(line.Args) > 0 {
		var err error
		if args, err = ir.UnmarshalObject(string(line.Args)); err != nil {
			entry.Error = fmt.Sprintf("invalid args: %v", err)
			return entry
		}
	}

	resp, err := eng.Submit(ctx, engine.Request{Op: ir.Op(line.Op), Caller: ir.Identity(line.Caller), Args: args})
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	entry.Status = string(resp.Status())
	entry.Result = resp.Call.Completion.Result
	return entry
}
