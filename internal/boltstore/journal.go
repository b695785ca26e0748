package boltstore

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/roach88/library/internal/ir"
)

// callRecord is the msgpack layout of a journaled call. Args and result are
// kept as canonical JSON so their value types survive the round trip.
type callRecord struct {
	ID      string `msgpack:"id"`
	Token   string `msgpack:"token"`
	Seq     int64  `msgpack:"seq"`
	Op      string `msgpack:"op"`
	Caller  string `msgpack:"caller"`
	Args    string `msgpack:"args"`
	CompID  string `msgpack:"completion_id"`
	CompSeq int64  `msgpack:"completion_seq"`
	Status  string `msgpack:"status"`
	Result  string `msgpack:"result"`
}

func (r callRecord) toCall() (ir.Call, error) {
	args, err := ir.UnmarshalObject(r.Args)
	if err != nil {
		return ir.Call{}, fmt.Errorf("invocation %s: %w", r.ID, err)
	}
	result, err := ir.UnmarshalObject(r.Result)
	if err != nil {
		return ir.Call{}, fmt.Errorf("completion %s: %w", r.CompID, err)
	}
	return ir.Call{
		Invocation: ir.Invocation{
			ID:     r.ID,
			Token:  r.Token,
			Seq:    r.Seq,
			Op:     ir.Op(r.Op),
			Caller: ir.Identity(r.Caller),
			Args:   args,
		},
		Completion: ir.Completion{
			ID:           r.CompID,
			InvocationID: r.ID,
			Seq:          r.CompSeq,
			Status:       ir.Status(r.Status),
			Result:       result,
		},
	}, nil
}

// CommitCall journals a call and persists state when non-nil, atomically.
// Duplicate invocation IDs or seqs are rejected.
func (s *Store) CommitCall(ctx context.Context, call ir.Call, state *ir.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	args, err := ir.MarshalObject(call.Invocation.Args)
	if err != nil {
		return fmt.Errorf("commit call: %w", err)
	}
	result, err := ir.MarshalObject(call.Completion.Result)
	if err != nil {
		return fmt.Errorf("commit call: %w", err)
	}
	if call.Invocation.Seq < 0 {
		return fmt.Errorf("commit call: negative seq %d", call.Invocation.Seq)
	}

	rec := callRecord{
		ID:      call.Invocation.ID,
		Token:   call.Invocation.Token,
		Seq:     call.Invocation.Seq,
		Op:      string(call.Invocation.Op),
		Caller:  string(call.Invocation.Caller),
		Args:    args,
		CompID:  call.Completion.ID,
		CompSeq: call.Completion.Seq,
		Status:  string(call.Completion.Status),
		Result:  result,
	}
	raw, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("commit call: encode: %w", err)
	}

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(bucketCallID)
		calls := tx.Bucket(bucketCalls)
		key := itob(uint64(rec.Seq))

		if ids.Get([]byte(rec.ID)) != nil {
			return fmt.Errorf("commit call: duplicate invocation %s", rec.ID)
		}
		if calls.Get(key) != nil {
			return fmt.Errorf("commit call: duplicate seq %d", rec.Seq)
		}
		if err := calls.Put(key, raw); err != nil {
			return fmt.Errorf("commit call: write: %w", err)
		}
		if err := ids.Put([]byte(rec.ID), key); err != nil {
			return fmt.Errorf("commit call: index: %w", err)
		}

		if state != nil {
			if err := writeState(tx, *state); err != nil {
				return fmt.Errorf("commit call: %w", err)
			}
		}
		return nil
	})
}

// ReadCalls returns the whole journal ordered by invocation seq.
func (s *Store) ReadCalls(ctx context.Context) ([]ir.Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	calls := []ir.Call{}
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketCalls).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec callRecord
			if err := msgpack.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode call at seq %d: %w", binary.BigEndian.Uint64(k), err)
			}
			call, err := rec.toCall()
			if err != nil {
				return err
			}
			calls = append(calls, call)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return calls, nil
}

// ReadInvocation returns a single invocation by ID.
func (s *Store) ReadInvocation(ctx context.Context, id string) (ir.Invocation, error) {
	if err := ctx.Err(); err != nil {
		return ir.Invocation{}, err
	}
	var call ir.Call
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(bucketCallID).Get([]byte(id))
		if key == nil {
			return fmt.Errorf("invocation %s: %w", id, ir.ErrNotFound)
		}
		var rec callRecord
		if err := msgpack.Unmarshal(tx.Bucket(bucketCalls).Get(key), &rec); err != nil {
			return fmt.Errorf("decode invocation %s: %w", id, err)
		}
		var err error
		call, err = rec.toCall()
		return err
	})
	if err != nil {
		return ir.Invocation{}, err
	}
	return call.Invocation, nil
}

// LatestSeq returns the highest journaled seq, or 0 for an empty journal.
func (s *Store) LatestSeq(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var seq int64
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket(bucketCalls).Cursor().Last()
		if v == nil {
			return nil
		}
		var rec callRecord
		if err := msgpack.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("decode last call: %w", err)
		}
		seq = max(rec.Seq, rec.CompSeq)
		return nil
	})
	return seq, err
}
