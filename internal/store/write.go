package store

import (
	"context"
	"fmt"

	"github.com/roach88/library/internal/ir"
)

// CommitCall journals an invocation and its completion, and persists state
// when it is non-nil, all in a single transaction. Read-only calls and
// rejected updates pass a nil state.
//
// Duplicate invocation IDs are rejected by the primary key: every call is
// journaled exactly once.
func (s *Store) CommitCall(ctx context.Context, call ir.Call, state *ir.State) error {
	argsJSON, err := ir.MarshalObject(call.Invocation.Args)
	if err != nil {
		return fmt.Errorf("commit call: %w", err)
	}
	resultJSON, err := ir.MarshalObject(call.Completion.Result)
	if err != nil {
		return fmt.Errorf("commit call: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit call: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	inv := call.Invocation
	_, err = tx.ExecContext(ctx, `
		INSERT INTO invocations (id, token, seq, op, caller, args)
		VALUES (?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.Token, inv.Seq, string(inv.Op), string(inv.Caller), argsJSON)
	if err != nil {
		return fmt.Errorf("commit call: write invocation %s: %w", inv.ID, err)
	}

	comp := call.Completion
	_, err = tx.ExecContext(ctx, `
		INSERT INTO completions (id, invocation_id, seq, status, result)
		VALUES (?, ?, ?, ?, ?)
	`, comp.ID, comp.InvocationID, comp.Seq, string(comp.Status), resultJSON)
	if err != nil {
		return fmt.Errorf("commit call: write completion %s: %w", comp.ID, err)
	}

	if state != nil {
		if err := writeState(ctx, tx, *state); err != nil {
			return fmt.Errorf("commit call: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit call: commit: %w", err)
	}
	return nil
}
