package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/library/internal/ir"
)

// ReadCalls returns the whole journal ordered by invocation seq.
// Returns an empty slice (not nil) if nothing was journaled.
func (s *Store) ReadCalls(ctx context.Context) ([]ir.Call, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.token, i.seq, i.op, i.caller, i.args,
		       c.id, c.seq, c.status, c.result
		FROM invocations i
		JOIN completions c ON c.invocation_id = i.id
		ORDER BY i.seq ASC, i.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []ir.Call{}
	for rows.Next() {
		var (
			call               ir.Call
			op, caller, status string
			argsJSON, result   string
		)
		err := rows.Scan(
			&call.Invocation.ID, &call.Invocation.Token, &call.Invocation.Seq, &op, &caller, &argsJSON,
			&call.Completion.ID, &call.Completion.Seq, &status, &result,
		)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		call.Invocation.Op = ir.Op(op)
		call.Invocation.Caller = ir.Identity(caller)
		call.Completion.InvocationID = call.Invocation.ID
		call.Completion.Status = ir.Status(status)

		if call.Invocation.Args, err = ir.UnmarshalObject(argsJSON); err != nil {
			return nil, fmt.Errorf("invocation %s: %w", call.Invocation.ID, err)
		}
		if call.Completion.Result, err = ir.UnmarshalObject(result); err != nil {
			return nil, fmt.Errorf("completion %s: %w", call.Completion.ID, err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

// ReadInvocation returns a single invocation by ID.
// Returns an error wrapping ir.ErrNotFound if it does not exist.
func (s *Store) ReadInvocation(ctx context.Context, id string) (ir.Invocation, error) {
	var (
		inv                  ir.Invocation
		op, caller, argsJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token, seq, op, caller, args
		FROM invocations
		WHERE id = ?
	`, id).Scan(&inv.ID, &inv.Token, &inv.Seq, &op, &caller, &argsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Invocation{}, fmt.Errorf("invocation %s: %w", id, ir.ErrNotFound)
	}
	if err != nil {
		return ir.Invocation{}, fmt.Errorf("read invocation %s: %w", id, err)
	}

	inv.Op = ir.Op(op)
	inv.Caller = ir.Identity(caller)
	if inv.Args, err = ir.UnmarshalObject(argsJSON); err != nil {
		return ir.Invocation{}, fmt.Errorf("invocation %s: %w", id, err)
	}
	return inv, nil
}

// LatestSeq returns the highest journaled seq, or 0 for an empty journal.
// The engine resumes its logical clock from this value.
func (s *Store) LatestSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM invocations
			UNION ALL
			SELECT seq FROM completions
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return seq, nil
}
