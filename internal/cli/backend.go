package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/library/internal/boltstore"
	"github.com/roach88/library/internal/engine"
	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/library"
	"github.com/roach88/library/internal/store"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Backend is the storage both store.Store and boltstore.Store provide.
type Backend interface {
	engine.Journal
	Initialize(ctx context.Context, seed ir.State) error
	Initialized(ctx context.Context) (bool, error)
	Seed(ctx context.Context) (ir.State, error)
	LoadState(ctx context.Context) (ir.State, error)
	BooksByOwner(ctx context.Context, owner ir.Identity) ([]string, error)
	ReadCalls(ctx context.Context) ([]ir.Call, error)
	ReadInvocation(ctx context.Context, id string) (ir.Invocation, error)
	LatestSeq(ctx context.Context) (int64, error)
	Close() error
}

var (
	_ Backend = (*store.Store)(nil)
	_ Backend = (*boltstore.Store)(nil)
)

// openBackend opens the configured backend at the configured path.
func openBackend(opts *RootOptions) (Backend, error) {
	if opts.Database == "" {
		return nil, NewExitError(ExitCommandError, "database path is required (--db or $LIBRARY_DB)")
	}

	var (
		b   Backend
		err error
	)
	switch opts.Backend {
	case BackendSQLite, "":
		b, err = store.Open(opts.Database)
	case BackendBolt:
		b, err = boltstore.Open(opts.Database)
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown backend %q", opts.Backend))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	opts.Logger().Debug("database opened", "backend", opts.Backend, "path", opts.Database)
	return b, nil
}

// session is an opened backend with an engine hosting its library.
type session struct {
	backend Backend
	engine  *engine.Engine
}

// openSession opens the backend and restores the library from it. The
// engine's clock resumes after the last journaled seq.
func openSession(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*session, error) {
	b, err := openBackend(opts)
	if err != nil {
		return nil, err
	}

	ok, err := b.Initialized(ctx)
	if err != nil {
		b.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeStorage, "failed to read store", err.Error())
	}
	if !ok {
		b.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeNotInitialized,
			"library is not initialized; run 'library init <seed-file>' first", nil)
	}

	state, err := b.LoadState(ctx)
	if err != nil {
		b.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeStorage, "failed to load state", err.Error())
	}
	seq, err := b.LatestSeq(ctx)
	if err != nil {
		b.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeStorage, "failed to read journal position", err.Error())
	}

	engOpts := []engine.Option{
		engine.WithClock(engine.NewClockAt(seq)),
		engine.WithLogger(opts.Logger()),
	}
	if opts.Tokens != nil {
		engOpts = append(engOpts, engine.WithTokenGenerator(opts.Tokens))
	}
	return &session{
		backend: b,
		engine:  engine.New(library.FromState(state), b, engOpts...),
	}, nil
}

func (s *session) Close() error {
	return s.backend.Close()
}

// newFormatter builds the output formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
}

// commandContext returns the command's context or Background.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// reportRuntimeError renders an engine error, distinguishing rejected
// requests from storage failures.
func reportRuntimeError(f *OutputFormatter, err error) error {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return f.Fail(ExitFailure, ErrCodeInvalidArgs, re.Message, re.Details)
	}
	return f.Fail(ExitCommandError, ErrCodeStorage, "call was not committed", err.Error())
}

// statusErrorCode maps a failed completion status to a CLI error code.
func statusErrorCode(status ir.Status) string {
	switch status {
	case ir.StatusOutOfRange:
		return ErrCodeOutOfRange
	case ir.StatusNotOwner:
		return ErrCodeNotOwner
	case ir.StatusMalformedRecord:
		return ErrCodeMalformedRecord
	default:
		return ErrCodeGeneric
	}
}
