package engine

import (
	"fmt"

	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/library"
)

// Mismatch describes a journaled call whose recorded outcome was not
// reproduced on replay.
type Mismatch struct {
	Seq          int64  `json:"seq"`
	InvocationID string `json:"invocation_id"`
	Field        string `json:"field"`
	Recorded     string `json:"recorded"`
	Replayed     string `json:"replayed"`
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Calls      int        `json:"calls"`
	Mismatches []Mismatch `json:"mismatches"`
	Digest     string     `json:"digest"`
	State      ir.State   `json:"-"`
}

// Deterministic reports whether every call reproduced its recorded outcome.
func (r ReplayResult) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// Replay rebuilds a library from seed and re-applies calls in order.
//
// Replay follows the same code path as Execute. IDs are recomputed from
// content, so any edit to a journaled invocation or completion shows up as a
// mismatch. Calls must be ordered by seq (store.ReadCalls guarantees this).
func Replay(seed ir.State, calls []ir.Call) ReplayResult {
	lib := library.FromState(seed)
	res := ReplayResult{Calls: len(calls), Mismatches: []Mismatch{}}

	for _, call := range calls {
		inv, comp := call.Invocation, call.Completion
		mismatch := func(field, recorded, replayed string) {
			res.Mismatches = append(res.Mismatches, Mismatch{
				Seq:          inv.Seq,
				InvocationID: inv.ID,
				Field:        field,
				Recorded:     recorded,
				Replayed:     replayed,
			})
		}

		invID, err := ir.InvocationID(inv.Token, inv.Op, inv.Caller, inv.Args, inv.Seq)
		if err != nil {
			mismatch("invocation_id", inv.ID, err.Error())
			continue
		}
		if invID != inv.ID {
			mismatch("invocation_id", inv.ID, invID)
		}

		status, result, err := apply(lib, inv.Op, inv.Caller, inv.Args)
		if err != nil {
			mismatch("status", string(comp.Status), err.Error())
			continue
		}
		if status != comp.Status {
			mismatch("status", string(comp.Status), string(status))
		}

		recorded, rerr := ir.MarshalCanonical(comp.Result)
		replayed, perr := ir.MarshalCanonical(result)
		if rerr != nil || perr != nil || string(recorded) != string(replayed) {
			mismatch("result", string(recorded), string(replayed))
		}

		compID, err := ir.CompletionID(invID, status, result, comp.Seq)
		if err != nil {
			mismatch("completion_id", comp.ID, fmt.Sprintf("error: %v", err))
		} else if compID != comp.ID {
			mismatch("completion_id", comp.ID, compID)
		}
	}

	res.State = lib.State()
	res.Digest = lib.Digest()
	return res
}
