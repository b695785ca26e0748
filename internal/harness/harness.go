package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/roach88/library/internal/engine"
	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/library"
	"github.com/roach88/library/internal/store"
	"github.com/roach88/library/internal/testutil"
)

// Harness executes one scenario against a fresh store.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	seed   ir.State
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open a fresh in-memory store and initialize it with the seed
//  2. Execute the flow through the engine with fixed tokens
//  3. Check each step's expect clause
//  4. Evaluate assertions, then replay the journal from the seed
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	seedState := scenario.Seed.State()
	if err := st.Initialize(ctx, seedState); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	prefix := scenario.Token
	if prefix == "" {
		prefix = DefaultToken
	}
	h := &Harness{
		store: st,
		engine: engine.New(library.FromState(seedState), st,
			engine.WithTokenGenerator(testutil.Tokens(prefix, len(scenario.Flow))),
			engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		),
		seed: seedState,
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	state, err := st.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load final state: %w", err)
	}
	result.State = state
	result.Digest = ir.StateDigest(state)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	if err := h.checkReplay(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		args, err := convertArgs(step.Args)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		req := engine.Request{Op: ir.Op(step.Invoke), Caller: ir.Identity(step.Caller), Args: args}

		resp, err := h.engine.Execute(ctx, req)
		if err != nil {
			code := engine.ErrorCode(err)
			if code == "" {
				return fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
			}
			if step.Expect == nil || step.Expect.Error != string(code) {
				result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error %v", i, step.Invoke, err))
			}
			continue
		}

		result.AddCall(resp.Call)
		if step.Expect == nil {
			continue
		}
		if msg := checkExpect(step.Expect, resp.Call.Completion); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
		}
	}
	return nil
}

func checkExpect(expect *ExpectClause, comp ir.Completion) string {
	if expect.Error != "" {
		return fmt.Sprintf("expected error %s, got status %s", expect.Error, comp.Status)
	}
	if string(comp.Status) != expect.Status {
		return fmt.Sprintf("expected status %s, got %s", expect.Status, comp.Status)
	}
	if len(expect.Result) == 0 {
		return ""
	}
	want, err := convertArgs(expect.Result)
	if err != nil {
		return fmt.Sprintf("expect.result: %v", err)
	}
	if !matchArgs(comp.Result, want) {
		return fmt.Sprintf("expected result %v, got %v", want, comp.Result)
	}
	return ""
}

// checkReplay rebuilds the library from the seed and journal and requires
// the same state as the store holds.
func (h *Harness) checkReplay(ctx context.Context, result *Result) error {
	calls, err := h.store.ReadCalls(ctx)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	replay := engine.Replay(h.seed, calls)
	for _, m := range replay.Mismatches {
		result.AddError(fmt.Sprintf("replay: seq %d %s: recorded %s, replayed %s", m.Seq, m.Field, m.Recorded, m.Replayed))
	}
	if replay.Digest != result.Digest {
		result.AddError(fmt.Sprintf("replay: digest %s does not match stored state %s", replay.Digest, result.Digest))
	}
	return nil
}

// convertArgs normalizes YAML-decoded values to the types ir.Object holds.
func convertArgs(args map[string]any) (ir.Object, error) {
	out := make(ir.Object, len(args))
	for key, val := range args {
		v, err := convertValue(val)
		if err != nil {
			return nil, fmt.Errorf("arg %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func convertValue(val any) (any, error) {
	switch v := val.(type) {
	case string, bool, int64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", v)
		}
		return int64(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for i, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("list element %d: expected string, got %T", i, elem)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("null is not allowed")
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}
