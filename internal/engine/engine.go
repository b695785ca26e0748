package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/library"
)

// Journal durably records calls. When state is non-nil it must be persisted
// in the same atomic unit as the call.
//
// Implemented by store.Store (SQLite) and boltstore.Store (bbolt).
type Journal interface {
	CommitCall(ctx context.Context, call ir.Call, state *ir.State) error
}

// Engine serializes calls into a library and journals each one.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine, requires Run
//   - Execute(): safe from any goroutine, runs the call inline
//   - Run(): must be called from exactly one goroutine
type Engine struct {
	mu      sync.Mutex
	lib     *library.Library
	journal Journal
	clock   *Clock
	tokens  TokenGenerator
	queue   *requestQueue
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTokenGenerator sets the invocation token source.
// Defaults to UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) {
		e.tokens = g
	}
}

// WithClock sets the logical clock, e.g. NewClockAt(latestSeq) to resume an
// existing journal.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine that owns lib and commits to journal.
func New(lib *library.Library, journal Journal, opts ...Option) *Engine {
	e := &Engine{
		lib:     lib,
		journal: journal,
		clock:   NewClock(),
		tokens:  UUIDv7Generator{},
		queue:   newRequestQueue(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one call and commits it to the journal.
//
// Operation outcomes such as ownership failures are reported through the
// completion status, not as errors. An error means the call was not
// journaled: a RuntimeError for a bad request, or a journal failure, after
// which the library is rolled back to its pre-call state.
func (e *Engine) Execute(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if !req.Op.Valid() {
		return Response{}, newUnknownOpError(string(req.Op))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	token := e.tokens.Generate()
	seq := e.clock.Next()
	invID, err := ir.InvocationID(token, req.Op, req.Caller, req.Args, seq)
	if err != nil {
		return Response{}, &RuntimeError{
			Code:    ErrCodeInvalidArgs,
			Message: err.Error(),
			Op:      string(req.Op),
		}
	}

	var snapshot ir.State
	if req.Op.Mutating() {
		snapshot = e.lib.State()
	}

	status, result, err := apply(e.lib, req.Op, req.Caller, req.Args)
	if err != nil {
		return Response{}, err
	}

	compSeq := e.clock.Next()
	compID, err := ir.CompletionID(invID, status, result, compSeq)
	if err != nil {
		e.rollback(req.Op, snapshot)
		return Response{}, fmt.Errorf("completion %s: %w", invID, err)
	}

	call := ir.Call{
		Invocation: ir.Invocation{
			ID:     invID,
			Token:  token,
			Seq:    seq,
			Op:     req.Op,
			Caller: req.Caller,
			Args:   req.Args,
		},
		Completion: ir.Completion{
			ID:           compID,
			InvocationID: invID,
			Seq:          compSeq,
			Status:       status,
			Result:       result,
		},
	}

	e.logger.Debug("call applied",
		"op", req.Op,
		"caller", req.Caller,
		"seq", seq,
		"status", status)

	var state *ir.State
	if req.Op.Mutating() && status == ir.StatusOK {
		s := e.lib.State()
		state = &s
	}
	if err := e.journal.CommitCall(ctx, call, state); err != nil {
		e.rollback(req.Op, snapshot)
		e.logger.Error("commit failed",
			"op", req.Op,
			"invocation_id", invID,
			"seq", seq,
			"error", err)
		return Response{}, fmt.Errorf("commit %s: %w", req.Op, err)
	}

	e.logger.Info("call committed",
		"op", req.Op,
		"invocation_id", invID,
		"status", status)
	return Response{Call: call}, nil
}

func (e *Engine) rollback(op ir.Op, snapshot ir.State) {
	if op.Mutating() {
		e.lib.Restore(snapshot)
	}
}

// Submit enqueues a request for the Run loop and waits for its response.
// Returns an ENGINE_STOPPED RuntimeError once the engine is stopped.
func (e *Engine) Submit(ctx context.Context, req Request) (Response, error) {
	s := &submission{ctx: ctx, req: req, reply: make(chan reply, 1)}
	if !e.queue.Enqueue(s) {
		return Response{}, newStoppedError()
	}

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case r := <-s.reply:
		return r.resp, r.err
	}
}

// Run drains submissions in FIFO order until ctx is cancelled or Stop is
// called. Submissions still queued when ctx is cancelled are answered with
// ENGINE_STOPPED.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		if s, ok := e.queue.TryDequeue(); ok {
			resp, err := e.Execute(s.ctx, s.req)
			s.reply <- reply{resp: resp, err: err}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.rejectPending()
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Drained() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

func (e *Engine) rejectPending() {
	for {
		s, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		s.reply <- reply{err: newStoppedError()}
	}
}

// Stop closes the queue. Run returns after answering what was already
// queued.
func (e *Engine) Stop() {
	e.queue.Close()
}

// QueueLen returns the number of submissions waiting for Run.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// State returns a snapshot of the hosted library.
func (e *Engine) State() ir.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lib.State()
}
