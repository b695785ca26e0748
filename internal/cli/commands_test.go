package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/library/internal/testutil"
)

func TestInit(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			opts := newTestOptions(t, backend, "json")

			out, err := execute(NewInitCommand(opts), writeSeed(t))
			require.NoError(t, err)

			resp := decodeResponse(t, out)
			assert.Equal(t, "ok", resp.Status)
			data := resp.Data.(map[string]any)
			assert.Equal(t, float64(2), data["books"])
			assert.Equal(t, float64(2), data["owners"])
			assert.Equal(t, backend, data["backend"])
			assert.NotEmpty(t, data["digest"])
		})
	}
}

func TestInit_AlreadyInitialized(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			opts := newTestOptions(t, backend, "json")
			initLibrary(t, opts)

			out, err := execute(NewInitCommand(opts), writeSeed(t))
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Equal(t, ErrCodeAlreadyInitialized, decodeResponse(t, out).Error.Code)
		})
	}
}

func TestInit_InvalidSeed(t *testing.T) {
	opts := newTestOptions(t, BackendSQLite, "json")
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("books: []\nshelves: []\n"), 0o644))

	out, err := execute(NewInitCommand(opts), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "error", decodeResponse(t, out).Status)

	_, statErr := os.Stat(opts.Database)
	assert.True(t, os.IsNotExist(statErr), "database must not be created for an invalid seed")
}

func TestValidate(t *testing.T) {
	opts := &RootOptions{Format: "text"}

	out, err := execute(NewValidateCommand(opts), writeSeed(t))
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestValidate_Missing(t *testing.T) {
	opts := &RootOptions{Format: "json"}

	out, err := execute(NewValidateCommand(opts), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "error", decodeResponse(t, out).Status)
}

func TestCommands_RequireInitializedStore(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			opts := newTestOptions(t, backend, "json")

			out, err := execute(NewCreateCommand(opts), "--owner", "alice", "--name", "X")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Equal(t, ErrCodeNotInitialized, decodeResponse(t, out).Error.Code)
		})
	}
}

func TestCreate(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			opts := newTestOptions(t, backend, "json")
			initLibrary(t, opts)

			out, err := execute(NewCreateCommand(opts),
				"--owner", "carol", "--name", "Ulysses", "--category", "Modernist", "--author", "Joyce")
			require.NoError(t, err)

			data := decodeResponse(t, out).Data.(map[string]any)
			assert.Equal(t, float64(2), data["index"])
			assert.Equal(t, "carol", data["owner"])
			assert.Equal(t, "Ulysses;Modernist;Joyce", data["record"])
			assert.NotEmpty(t, data["invocation_id"])

			// The next create continues after the persisted state.
			out, err = execute(NewCreateCommand(opts), "--owner", "carol", "--name", "Dubliners")
			require.NoError(t, err)
			data = decodeResponse(t, out).Data.(map[string]any)
			assert.Equal(t, float64(3), data["index"])
			assert.Equal(t, "Dubliners;;", data["record"])
		})
	}
}

func TestCreate_ForAnotherOwner(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			opts := newTestOptions(t, backend, "json")
			initLibrary(t, opts)

			out, err := execute(NewCreateCommand(opts),
				"--caller", "alice", "--owner", "bob", "--name", "N", "--category", "C", "--author", "A")
			require.NoError(t, err)
			data := decodeResponse(t, out).Data.(map[string]any)
			assert.Equal(t, "bob", data["owner"])
			assert.Equal(t, "alice", data["caller"])

			out, err = execute(NewBooksCommand(opts), "--owner", "bob", "--readonly")
			require.NoError(t, err)
			books := decodeResponse(t, out).Data.(map[string]any)["books"]
			assert.Equal(t, []any{"Emma;Classic;Austen", "N;C;A"}, books)

			out, err = execute(NewLogCommand(opts))
			require.NoError(t, err)
			entries := decodeResponse(t, out).Data.(map[string]any)["entries"].([]any)
			require.Len(t, entries, 1)
			entry := entries[0].(map[string]any)
			assert.Equal(t, "alice", entry["caller"])
			assert.Equal(t, "bob", entry["args"].(map[string]any)["owner"])

			// The creator is not the owner.
			_, err = execute(NewUpdateCommand(opts), "--caller", "alice", "--index", "2", "--name", "X")
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
		})
	}
}

func TestCreate_RequiresOwner(t *testing.T) {
	opts := newTestOptions(t, BackendSQLite, "json")

	_, err := execute(NewCreateCommand(opts), "--name", "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner")
}

func TestUpdate(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			opts := newTestOptions(t, backend, "json")
			initLibrary(t, opts)

			out, err := execute(NewUpdateCommand(opts), "--caller", "alice", "--index", "0", "--author", "F. Herbert")
			require.NoError(t, err)
			data := decodeResponse(t, out).Data.(map[string]any)
			assert.Equal(t, "Success: Book updated", data["message"])

			out, err = execute(NewBooksCommand(opts), "--owner", "alice")
			require.NoError(t, err)
			data = decodeResponse(t, out).Data.(map[string]any)
			assert.Equal(t, []any{"Dune;SciFi;F. Herbert"}, data["books"])
		})
	}
}

func TestUpdate_EmptyFlagIsSupplied(t *testing.T) {
	opts := newTestOptions(t, BackendSQLite, "json")
	initLibrary(t, opts)

	_, err := execute(NewUpdateCommand(opts), "--caller", "alice", "--index", "0", "--category", "")
	require.NoError(t, err)

	out, err := execute(NewBooksCommand(opts), "--owner", "alice")
	require.NoError(t, err)
	data := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, []any{"Dune;;Herbert"}, data["books"])
}

func TestUpdate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		code    string
		message string
	}{
		{
			name:    "out of range",
			args:    []string{"--caller", "alice", "--index", "9", "--name", "X"},
			code:    ErrCodeOutOfRange,
			message: "Error: Book index out of range",
		},
		{
			name:    "not owner",
			args:    []string{"--caller", "mallory", "--index", "1", "--name", "X"},
			code:    ErrCodeNotOwner,
			message: "Error: You are not the owner of this book",
		},
	}

	for _, backend := range backends {
		for _, tt := range tests {
			t.Run(backend+"/"+tt.name, func(t *testing.T) {
				opts := newTestOptions(t, backend, "json")
				initLibrary(t, opts)

				out, err := execute(NewUpdateCommand(opts), tt.args...)
				require.Error(t, err)
				assert.Equal(t, ExitFailure, GetExitCode(err))

				resp := decodeResponse(t, out)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.code, resp.Error.Code)
				assert.Equal(t, tt.message, resp.Error.Message)

				// Rejected updates leave the books untouched.
				out, err = execute(NewBooksCommand(opts), "--owner", "bob", "--readonly")
				require.NoError(t, err)
				data := decodeResponse(t, out).Data.(map[string]any)
				assert.Equal(t, []any{"Emma;Classic;Austen"}, data["books"])
			})
		}
	}
}

func TestBooks_Text(t *testing.T) {
	opts := newTestOptions(t, BackendSQLite, "text")
	initLibrary(t, opts)

	out, err := execute(NewBooksCommand(opts), "--owner", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Emma;Classic;Austen")

	out, err = execute(NewBooksCommand(opts), "--owner", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "nobody owns no books")
}

func TestBooks_ReadOnlyIsNotJournaled(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			opts := newTestOptions(t, backend, "json")
			initLibrary(t, opts)

			_, err := execute(NewBooksCommand(opts), "--owner", "alice", "--readonly")
			require.NoError(t, err)
			_, err = execute(NewBooksCommand(opts), "--owner", "alice", "--caller", "bob")
			require.NoError(t, err)

			out, err := execute(NewLogCommand(opts))
			require.NoError(t, err)
			entries := decodeResponse(t, out).Data.(map[string]any)["entries"].([]any)
			require.Len(t, entries, 1)
			entry := entries[0].(map[string]any)
			assert.Equal(t, "get_books_by_owner_id", entry["op"])
			assert.Equal(t, "bob", entry["caller"])
		})
	}
}

func TestLog(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			opts := newTestOptions(t, backend, "json")
			initLibrary(t, opts)

			out, err := execute(NewLogCommand(opts))
			require.NoError(t, err)
			assert.Empty(t, decodeResponse(t, out).Data.(map[string]any)["entries"])

			_, err = execute(NewCreateCommand(opts), "--owner", "carol", "--name", "A")
			require.NoError(t, err)
			_, err = execute(NewUpdateCommand(opts), "--caller", "bob", "--index", "0", "--name", "B")
			require.Error(t, err)

			out, err = execute(NewLogCommand(opts))
			require.NoError(t, err)
			entries := decodeResponse(t, out).Data.(map[string]any)["entries"].([]any)
			require.Len(t, entries, 2)

			first := entries[0].(map[string]any)
			second := entries[1].(map[string]any)
			assert.Equal(t, "create_book", first["op"])
			assert.Equal(t, "ok", first["status"])
			assert.Equal(t, "update_book", second["op"])
			assert.Equal(t, "not_owner", second["status"])
			assert.Less(t, first["seq"].(float64), second["seq"].(float64))

			out, err = execute(NewLogCommand(opts), "--id", second["invocation_id"].(string))
			require.NoError(t, err)
			single := decodeResponse(t, out).Data.(map[string]any)["entries"].([]any)
			require.Len(t, single, 1)
			assert.Equal(t, second["invocation_id"], single[0].(map[string]any)["invocation_id"])
		})
	}
}

func TestLog_UnknownInvocation(t *testing.T) {
	opts := newTestOptions(t, BackendSQLite, "json")
	initLibrary(t, opts)

	out, err := execute(NewLogCommand(opts), "--id", "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", decodeResponse(t, out).Status)
}

func TestReplay(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			opts := newTestOptions(t, backend, "json")
			opts.Tokens = testutil.Tokens("t", 3)
			initLibrary(t, opts)

			_, err := execute(NewCreateCommand(opts), "--owner", "carol", "--name", "A", "--category", "B", "--author", "C")
			require.NoError(t, err)
			_, err = execute(NewUpdateCommand(opts), "--caller", "carol", "--index", "2", "--name", "Z")
			require.NoError(t, err)
			_, err = execute(NewUpdateCommand(opts), "--caller", "carol", "--index", "0", "--name", "Z")
			require.Error(t, err)

			out, err := execute(NewReplayCommand(opts))
			require.NoError(t, err)
			data := decodeResponse(t, out).Data.(map[string]any)
			assert.Equal(t, float64(3), data["calls"])
			assert.Equal(t, true, data["deterministic"])
			assert.Equal(t, data["digest"], data["stored_digest"])
		})
	}
}

func TestExport(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			opts := newTestOptions(t, backend, "text")
			initLibrary(t, opts)

			_, err := execute(NewCreateCommand(opts), "--owner", "carol", "--name", "A", "--category", "B", "--author", "C")
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "export.yaml")
			_, err = execute(NewExportCommand(opts), "-o", path)
			require.NoError(t, err)

			// The exported seed initializes an identical library.
			clone := newTestOptions(t, backend, "json")
			out, err := execute(NewInitCommand(clone), path)
			require.NoError(t, err)
			data := decodeResponse(t, out).Data.(map[string]any)
			assert.Equal(t, float64(3), data["books"])
			assert.Equal(t, float64(3), data["owners"])

			out, err = execute(NewBooksCommand(clone), "--owner", "carol", "--readonly")
			require.NoError(t, err)
			books := decodeResponse(t, out).Data.(map[string]any)["books"]
			assert.Equal(t, []any{"A;B;C"}, books)
		})
	}
}

func TestExport_Stdout(t *testing.T) {
	opts := newTestOptions(t, BackendSQLite, "text")
	initLibrary(t, opts)

	out, err := execute(NewExportCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Dune;SciFi;Herbert")
	assert.Contains(t, out, "owner: alice")
}

func TestBatch(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			opts := newTestOptions(t, backend, "json")
			initLibrary(t, opts)

			input := strings.Join([]string{
				`# seed has Dune (alice) and Emma (bob)`,
				`{"op": "create_book", "caller": "alice", "args": {"name": "A", "category": "B", "author": "C", "owner": "carol"}}`,
				``,
				`{"op": "update_book", "caller": "carol", "args": {"index": 2, "author": "D"}}`,
				`{"op": "update_book", "caller": "carol", "args": {"index": 0, "author": "D"}}`,
				`{"op": "get_books_by_owner_id", "caller": "bob", "args": {"owner": "carol"}}`,
				`{"op": "delete_book", "caller": "carol", "args": {}}`,
			}, "\n")

			cmd := NewBatchCommand(opts)
			cmd.SetIn(strings.NewReader(input))
			out, err := execute(cmd, "-")
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			data := decodeResponse(t, out).Data.(map[string]any)
			assert.Equal(t, float64(3), data["succeeded"])
			assert.Equal(t, float64(2), data["failed"])

			entries := data["entries"].([]any)
			require.Len(t, entries, 5)
			assert.Equal(t, "not_owner", entries[2].(map[string]any)["status"])
			books := entries[3].(map[string]any)["result"].(map[string]any)["books"]
			assert.Equal(t, []any{"A;B;D"}, books)
			assert.Contains(t, entries[4].(map[string]any)["error"], "UNKNOWN_OP")

			out, err = execute(NewLogCommand(opts))
			require.NoError(t, err)
			assert.Len(t, decodeResponse(t, out).Data.(map[string]any)["entries"], 4)
		})
	}
}

// idleReader hands out one line, then cancels and blocks until the test ends,
// like a terminal nobody is typing into.
type idleReader struct {
	line   []byte
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *idleReader) Read(p []byte) (int, error) {
	if len(r.line) > 0 {
		n := copy(p, r.line)
		r.line = r.line[n:]
		return n, nil
	}
	r.cancel()
	<-r.done
	return 0, io.EOF
}

func TestBatch_CancelWhileWaitingForInput(t *testing.T) {
	opts := newTestOptions(t, BackendSQLite, "json")
	initLibrary(t, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := &idleReader{
		line:   []byte(`{"op": "get_books_by_owner_id", "caller": "bob", "args": {"owner": "alice"}}` + "\n"),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.Cleanup(func() { close(in.done) })

	cmd := NewBatchCommand(opts)
	cmd.SetIn(in)
	cmd.SetContext(ctx)

	type outcome struct {
		out string
		err error
	}
	finished := make(chan outcome, 1)
	go func() {
		out, err := execute(cmd, "-")
		finished <- outcome{out, err}
	}()

	select {
	case res := <-finished:
		assert.NotEqual(t, ExitCommandError, GetExitCode(res.err))
		entries := decodeResponse(t, res.out).Data.(map[string]any)["entries"].([]any)
		assert.LessOrEqual(t, len(entries), 1)
	case <-time.After(5 * time.Second):
		t.Fatal("batch kept waiting for input after cancel")
	}
}

func TestBatch_AllSucceed(t *testing.T) {
	opts := newTestOptions(t, BackendSQLite, "text")
	initLibrary(t, opts)

	path := filepath.Join(t.TempDir(), "requests.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"op": "get_books_by_owner_id", "caller": "bob", "args": {"owner": "alice"}}`+"\n"), 0o644))

	out, err := execute(NewBatchCommand(opts), path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 succeeded, 0 failed")
}

func TestTestCommand(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")
	golden := t.TempDir()

	out, err := execute(NewTestCommand(&RootOptions{Format: "json"}), scenarios, "--golden-dir", golden, "--update")
	require.NoError(t, err)
	data := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, float64(0), data["failed"])
	assert.Greater(t, data["total"].(float64), float64(0))

	out, err = execute(NewTestCommand(&RootOptions{Format: "json"}), scenarios, "--golden-dir", golden)
	require.NoError(t, err)
	data = decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, data["total"], data["passed"])
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")
	golden := t.TempDir()

	_, err := execute(NewTestCommand(&RootOptions{Format: "json"}), scenarios, "--golden-dir", golden, "--update", "--filter", "owner_update")
	require.NoError(t, err)
	matches, err := filepath.Glob(filepath.Join(golden, "*.golden"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.NoError(t, os.WriteFile(matches[0], []byte("{}"), 0o644))

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenarios, "--golden-dir", golden, "--filter", "owner_update")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
