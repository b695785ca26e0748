package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/library"
	"github.com/roach88/library/internal/store"
)

// memJournal records commits in memory and can be told to fail.
type memJournal struct {
	mu     sync.Mutex
	calls  []ir.Call
	states []*ir.State
	fail   error
}

func (j *memJournal) CommitCall(_ context.Context, call ir.Call, state *ir.State) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.calls = append(j.calls, call)
	j.states = append(j.states, state)
	return nil
}

func seedLibrary() *library.Library {
	return library.New(
		[]string{"Dune;SciFi;Herbert", "Emma;Classic;Austen"},
		[]ir.Ownership{{Owner: "alice", RecordIndex: 0}, {Owner: "bob", RecordIndex: 1}},
	)
}

func str(s string) *string { return &s }

func newTestEngine(t *testing.T, j Journal, tokens ...string) *Engine {
	t.Helper()
	if len(tokens) == 0 {
		tokens = []string{"tok-1", "tok-2", "tok-3", "tok-4", "tok-5", "tok-6"}
	}
	return New(seedLibrary(), j, WithTokenGenerator(NewFixedGenerator(tokens...)))
}

func TestEngine_New_Defaults(t *testing.T) {
	e := New(library.New(nil, nil), &memJournal{})

	assert.NotNil(t, e.clock)
	assert.NotNil(t, e.queue)
	assert.NotNil(t, e.logger)
	assert.IsType(t, UUIDv7Generator{}, e.tokens)
}

func TestExecute_CreateBook(t *testing.T) {
	j := &memJournal{}
	e := newTestEngine(t, j)

	resp, err := e.Execute(context.Background(), CreateBookRequest("carol", "carol", "Ulysses", "Modern", "Joyce"))
	require.NoError(t, err)

	assert.True(t, resp.OK())
	index, ok := resp.Index()
	require.True(t, ok)
	assert.Equal(t, uint32(2), index)

	inv := resp.Call.Invocation
	assert.Equal(t, "tok-1", inv.Token)
	assert.Equal(t, int64(1), inv.Seq)
	assert.Equal(t, int64(2), resp.Call.Completion.Seq)
	assert.Equal(t, ir.MustInvocationID("tok-1", ir.OpCreateBook, "carol", inv.Args, 1), inv.ID)
	assert.Equal(t, inv.ID, resp.Call.Completion.InvocationID)

	require.Len(t, j.calls, 1)
	require.NotNil(t, j.states[0], "mutation must persist state")
	assert.Equal(t, "Ulysses;Modern;Joyce", j.states[0].Books[2])
	assert.Equal(t, ir.Ownership{Owner: "carol", RecordIndex: 2}, j.states[0].Owners[2])
}

func TestExecute_CreateBookForAnotherOwner(t *testing.T) {
	j := &memJournal{}
	e := newTestEngine(t, j)
	ctx := context.Background()

	resp, err := e.Execute(ctx, CreateBookRequest("alice", "bob", "N", "C", "A"))
	require.NoError(t, err)
	require.True(t, resp.OK())

	inv := resp.Call.Invocation
	assert.Equal(t, ir.Identity("alice"), inv.Caller, "journal records who made the call")
	owner, _ := inv.Args.String(ArgOwner)
	assert.Equal(t, "bob", owner)
	assert.Equal(t, ir.Ownership{Owner: "bob", RecordIndex: 2}, e.State().Owners[2])

	resp, err = e.Execute(ctx, BooksByOwnerRequest("carol", "bob"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Emma;Classic;Austen", "N;C;A"}, resp.Books())

	resp, err = e.Execute(ctx, BooksByOwnerRequest("carol", "alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune;SciFi;Herbert"}, resp.Books())

	// The registered owner, not the creator, may update it.
	resp, err = e.Execute(ctx, UpdateBookRequest("alice", 2, library.Patch{Name: str("X")}))
	require.NoError(t, err)
	assert.Equal(t, ir.StatusNotOwner, resp.Status())
	resp, err = e.Execute(ctx, UpdateBookRequest("bob", 2, library.Patch{Name: str("X")}))
	require.NoError(t, err)
	assert.Equal(t, ir.StatusOK, resp.Status())
}

func TestExecute_UpdateBook_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		caller  ir.Identity
		index   uint32
		status  ir.Status
		message string
	}{
		{"owner succeeds", "alice", 0, ir.StatusOK, library.StatusUpdated},
		{"non-owner rejected", "bob", 0, ir.StatusNotOwner, library.StatusNotOwner},
		{"index past records", "alice", 5, ir.StatusOutOfRange, library.StatusOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &memJournal{}
			e := newTestEngine(t, j)

			resp, err := e.Execute(context.Background(),
				UpdateBookRequest(tt.caller, tt.index, library.Patch{Name: str("Dune Messiah")}))
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.Status())
			assert.Equal(t, tt.message, resp.Message())
			require.Len(t, j.calls, 1, "every outcome is journaled")
			if tt.status == ir.StatusOK {
				require.NotNil(t, j.states[0])
				assert.Equal(t, "Dune Messiah;SciFi;Herbert", j.states[0].Books[0])
			} else {
				assert.Nil(t, j.states[0], "failed update must not write state")
			}
		})
	}
}

func TestExecute_BooksByOwner(t *testing.T) {
	j := &memJournal{}
	e := newTestEngine(t, j)

	resp, err := e.Execute(context.Background(), BooksByOwnerRequest("anyone", "bob"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Emma;Classic;Austen"}, resp.Books())
	require.Len(t, j.calls, 1)
	assert.Nil(t, j.states[0], "queries do not write state")

	resp, err = e.Execute(context.Background(), BooksByOwnerRequest("anyone", "nobody"))
	require.NoError(t, err)
	assert.NotNil(t, resp.Books())
	assert.Empty(t, resp.Books())
}

func TestExecute_RuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		code RuntimeErrorCode
	}{
		{"unknown op", Request{Op: "delete_book", Caller: "alice"}, ErrCodeUnknownOp},
		{"missing name", Request{Op: ir.OpCreateBook, Caller: "alice", Args: ir.Object{"category": "c", "author": "a", "owner": "alice"}}, ErrCodeInvalidArgs},
		{"missing owner", Request{Op: ir.OpCreateBook, Caller: "alice", Args: ir.Object{"name": "n", "category": "c", "author": "a"}}, ErrCodeInvalidArgs},
		{"unknown create arg", Request{Op: ir.OpCreateBook, Caller: "alice", Args: ir.Object{"name": "n", "category": "c", "author": "a", "owner": "bob", "shelf": "x"}}, ErrCodeInvalidArgs},
		{"owner on update", Request{Op: ir.OpUpdateBook, Caller: "alice", Args: ir.Object{"index": int64(0), "owner": "bob"}}, ErrCodeInvalidArgs},
		{"index not integer", Request{Op: ir.OpUpdateBook, Caller: "alice", Args: ir.Object{"index": "0"}}, ErrCodeInvalidArgs},
		{"negative index", Request{Op: ir.OpUpdateBook, Caller: "alice", Args: ir.Object{"index": int64(-1)}}, ErrCodeInvalidArgs},
		{"name not string", Request{Op: ir.OpUpdateBook, Caller: "alice", Args: ir.Object{"index": int64(0), "name": int64(3)}}, ErrCodeInvalidArgs},
		{"float arg", Request{Op: ir.OpBooksByOwner, Caller: "alice", Args: ir.Object{"owner": 1.5}}, ErrCodeInvalidArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &memJournal{}
			e := newTestEngine(t, j)
			before := e.State()

			_, err := e.Execute(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, ErrorCode(err))
			assert.Empty(t, j.calls)
			assert.Equal(t, before, e.State())
		})
	}
}

func TestExecute_JournalFailureRestoresLibrary(t *testing.T) {
	j := &memJournal{fail: errors.New("disk full")}
	e := newTestEngine(t, j)
	before := e.State()

	_, err := e.Execute(context.Background(), CreateBookRequest("carol", "carol", "Ulysses", "Modern", "Joyce"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, before, e.State())

	_, err = e.Execute(context.Background(), UpdateBookRequest("alice", 0, library.Patch{Name: str("X")}))
	require.Error(t, err)
	assert.Equal(t, before, e.State())
}

func TestExecute_CancelledContext(t *testing.T) {
	e := newTestEngine(t, &memJournal{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, BooksByOwnerRequest("alice", "alice"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunAndSubmit(t *testing.T) {
	j := &memJournal{}
	e := New(library.New(nil, nil), j)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.Submit(ctx, CreateBookRequest("alice", "alice", "n", "c", "a"))
			assert.NoError(t, err)
			assert.True(t, resp.OK())
		}()
	}
	wg.Wait()

	resp, err := e.Submit(ctx, BooksByOwnerRequest("alice", "alice"))
	require.NoError(t, err)
	assert.Len(t, resp.Books(), writers)

	state := e.State()
	for i, entry := range state.Owners {
		assert.Equal(t, uint32(i), entry.RecordIndex, "creates are serialized")
	}

	e.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err = e.Submit(context.Background(), BooksByOwnerRequest("alice", "alice"))
	assert.True(t, IsStopped(err))
}

func TestRun_ContextCancel(t *testing.T) {
	e := New(library.New(nil, nil), &memJournal{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestExecute_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	lib := seedLibrary()
	require.NoError(t, st.Initialize(ctx, lib.State()))

	e := New(lib, st, WithTokenGenerator(NewFixedGenerator("tok-1", "tok-2")))
	_, err = e.Execute(ctx, CreateBookRequest("carol", "carol", "Ulysses", "Modern", "Joyce"))
	require.NoError(t, err)
	_, err = e.Execute(ctx, UpdateBookRequest("carol", 2, library.Patch{Author: str("J. Joyce")}))
	require.NoError(t, err)

	persisted, err := st.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.State(), persisted)

	seq, err := st.LatestSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.Clock().Current(), seq)
}
