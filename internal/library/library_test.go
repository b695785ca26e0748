package library

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/library/internal/ir"
)

const (
	alice ir.Identity = "alice"
	bob   ir.Identity = "bob"
	carol ir.Identity = "carol"
)

func str(s string) *string { return &s }

// newTwoBookLibrary mirrors the two-record construction used across tests.
func newTwoBookLibrary() *Library {
	return New(
		[]string{"Book1;Category1;Author1", "Book2;Category2;Author2"},
		[]ir.Ownership{{Owner: alice, RecordIndex: 0}, {Owner: bob, RecordIndex: 1}},
	)
}

func TestCreateAndUpdateBook(t *testing.T) {
	lib := newTwoBookLibrary()

	lib.CreateBook("Book3", "Category3", "Author3", alice)

	err := lib.UpdateBook(alice, 0, Patch{Name: str("UpdatedBook1")})
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, Status(err))

	book, ok := lib.Book(0)
	require.True(t, ok)
	assert.Equal(t, "UpdatedBook1;Category1;Author1", book)

	assert.Equal(t, []string{
		"UpdatedBook1;Category1;Author1",
		"Book3;Category3;Author3",
	}, lib.BooksByOwner(alice))
}

func TestUpdateBookOutOfRange(t *testing.T) {
	lib := newTwoBookLibrary()
	before := lib.State()

	err := lib.UpdateBook(alice, 10, Patch{Name: str("NewName")})

	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, StatusOutOfRange, Status(err))
	assert.Equal(t, before, lib.State())
}

func TestBooksByOwner(t *testing.T) {
	lib := New(
		[]string{"Book1;Category1;Author1", "Book2;Category2;Author2", "Book3;Category3;Author3"},
		[]ir.Ownership{{Owner: alice, RecordIndex: 0}, {Owner: alice, RecordIndex: 1}, {Owner: bob, RecordIndex: 2}},
	)

	lib.CreateBook("Book4", "Category4", "Author4", alice)

	assert.Equal(t, []string{
		"Book1;Category1;Author1",
		"Book2;Category2;Author2",
		"Book4;Category4;Author4",
	}, lib.BooksByOwner(alice))
	assert.Equal(t, []string{"Book3;Category3;Author3"}, lib.BooksByOwner(bob))
}

func TestCreateBookAppendsOwnership(t *testing.T) {
	lib := newTwoBookLibrary()

	index := lib.CreateBook("Book3", "Category3", "Author3", carol)

	assert.Equal(t, uint32(2), index)
	assert.Equal(t, 3, lib.Len())
	state := lib.State()
	require.Len(t, state.Owners, 3)
	assert.Equal(t, ir.Ownership{Owner: carol, RecordIndex: 2}, state.Owners[2])
}

func TestCreateBookOnEmptyLibrary(t *testing.T) {
	var lib Library

	index := lib.CreateBook("", "", "", alice)

	assert.Equal(t, uint32(0), index)
	assert.Equal(t, []string{";;"}, lib.BooksByOwner(alice))
}

func TestCreateBookLastAmongOwnerRecords(t *testing.T) {
	lib := newTwoBookLibrary()

	for i := 0; i < 5; i++ {
		owner := alice
		if i%2 == 1 {
			owner = bob
		}
		before := lib.Len()
		name := fmt.Sprintf("Book%d", i+10)
		lib.CreateBook(name, "C", "A", owner)

		assert.Equal(t, before+1, lib.Len())
		books := lib.BooksByOwner(owner)
		require.NotEmpty(t, books)
		assert.Equal(t, EncodeRecord(name, "C", "A"), books[len(books)-1])
	}
}

func TestCreateBookAcceptsDelimiterInFields(t *testing.T) {
	var lib Library

	lib.CreateBook("a;b", "c", "d", alice)

	book, ok := lib.Book(0)
	require.True(t, ok)
	assert.Equal(t, "a;b;c;d", book)
	assert.Len(t, DecodeRecord(book), 4)
}

func TestUpdateBookNotOwner(t *testing.T) {
	lib := newTwoBookLibrary()
	before := lib.State()

	err := lib.UpdateBook(bob, 0, Patch{Name: str("Stolen")})

	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, StatusNotOwner, Status(err))
	assert.Equal(t, before, lib.State())
}

func TestUpdateBookPartialFields(t *testing.T) {
	tests := []struct {
		name     string
		patch    Patch
		expected string
	}{
		{"empty patch", Patch{}, "Book1;Category1;Author1"},
		{"name only", Patch{Name: str("N")}, "N;Category1;Author1"},
		{"category only", Patch{Category: str("C")}, "Book1;C;Author1"},
		{"author only", Patch{Author: str("A")}, "Book1;Category1;A"},
		{"name and author", Patch{Name: str("N"), Author: str("A")}, "N;Category1;A"},
		{"all fields", Patch{Name: str("N"), Category: str("C"), Author: str("A")}, "N;C;A"},
		{"empty strings", Patch{Name: str(""), Category: str(""), Author: str("")}, ";;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib := newTwoBookLibrary()

			err := lib.UpdateBook(alice, 0, tt.patch)
			require.NoError(t, err)

			book, _ := lib.Book(0)
			assert.Equal(t, tt.expected, book)

			other, _ := lib.Book(1)
			assert.Equal(t, "Book2;Category2;Author2", other, "other records unchanged")
			assert.Equal(t, 2, lib.Len())
		})
	}
}

func TestUpdateBookPositionalOwnership(t *testing.T) {
	// Entry 0 names record 1 by its stored index, but update rights over
	// record 0 are still decided by entry position 0.
	lib := New(
		[]string{"Book1;Category1;Author1", "Book2;Category2;Author2"},
		[]ir.Ownership{{Owner: alice, RecordIndex: 1}, {Owner: bob, RecordIndex: 0}},
	)

	require.NoError(t, lib.UpdateBook(alice, 0, Patch{Name: str("ByPosition")}))
	assert.ErrorIs(t, lib.UpdateBook(bob, 0, Patch{Name: str("ByIndex")}), ErrNotOwner)

	book, _ := lib.Book(0)
	assert.Equal(t, "ByPosition;Category1;Author1", book)

	// The query follows stored indices instead.
	assert.Equal(t, []string{"Book2;Category2;Author2"}, lib.BooksByOwner(alice))
}

func TestUpdateBookMissingOwnershipEntry(t *testing.T) {
	lib := New(
		[]string{"Book1;Category1;Author1", "Book2;Category2;Author2"},
		[]ir.Ownership{{Owner: alice, RecordIndex: 0}},
	)
	before := lib.State()

	err := lib.UpdateBook(alice, 1, Patch{Name: str("Orphan")})

	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, before, lib.State())
}

func TestUpdateBookRangeCheckedBeforeOwnership(t *testing.T) {
	lib := New(nil, []ir.Ownership{{Owner: alice, RecordIndex: 0}})

	err := lib.UpdateBook(bob, 0, Patch{Name: str("x")})

	assert.ErrorIs(t, err, ErrOutOfRange, "index check comes before owner check")
}

func TestUpdateBookDelimiterCollision(t *testing.T) {
	var lib Library
	lib.CreateBook("a;b", "c", "d", alice)

	// Parts are ["a","b","c","d"]: the author slot is "c" and "d" trails.
	require.NoError(t, lib.UpdateBook(alice, 0, Patch{Author: str("Z")}))

	book, _ := lib.Book(0)
	assert.Equal(t, "a;b;Z;d", book)
}

func TestUpdateBookMalformedRecord(t *testing.T) {
	lib := New([]string{"OnlyName"}, []ir.Ownership{{Owner: alice, RecordIndex: 0}})
	before := lib.State()

	err := lib.UpdateBook(alice, 0, Patch{Category: str("C")})
	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.Equal(t, StatusMalformedRecord, Status(err))
	assert.Equal(t, before, lib.State())

	// Replacing a part that exists still works.
	require.NoError(t, lib.UpdateBook(alice, 0, Patch{Name: str("Renamed")}))
	book, _ := lib.Book(0)
	assert.Equal(t, "Renamed", book)
}

func TestBooksByOwnerNoMatches(t *testing.T) {
	lib := newTwoBookLibrary()

	books := lib.BooksByOwner(carol)

	assert.NotNil(t, books)
	assert.Empty(t, books)

	var empty Library
	assert.NotNil(t, empty.BooksByOwner(alice))
}

func TestBooksByOwnerSkipsDanglingIndices(t *testing.T) {
	lib := New(
		[]string{"Book1;Category1;Author1"},
		[]ir.Ownership{{Owner: alice, RecordIndex: 5}, {Owner: alice, RecordIndex: 0}},
	)

	assert.Equal(t, []string{"Book1;Category1;Author1"}, lib.BooksByOwner(alice))
}

func TestBooksByOwnerDoesNotMutate(t *testing.T) {
	lib := newTwoBookLibrary()
	before := lib.State()

	books := lib.BooksByOwner(alice)
	books[0] = "changed"

	assert.Equal(t, before, lib.State())
}

func TestNewCopiesInputs(t *testing.T) {
	books := []string{"Book1;Category1;Author1"}
	owners := []ir.Ownership{{Owner: alice, RecordIndex: 0}}

	lib := New(books, owners)
	books[0] = "mutated"
	owners[0].Owner = bob

	assert.Equal(t, []string{"Book1;Category1;Author1"}, lib.BooksByOwner(alice))
}

func TestStateRestoreAndDigest(t *testing.T) {
	lib := newTwoBookLibrary()
	snapshot := lib.State()
	digest := lib.Digest()

	lib.CreateBook("Book3", "Category3", "Author3", alice)
	assert.NotEqual(t, digest, lib.Digest())

	lib.Restore(snapshot)
	assert.Equal(t, digest, lib.Digest())
	assert.Equal(t, snapshot, lib.State())
	assert.Equal(t, ir.StateDigest(snapshot), FromState(snapshot).Digest())
}

func TestStatusUnknownError(t *testing.T) {
	assert.Equal(t, "Error: boom", Status(fmt.Errorf("boom")))
	assert.Equal(t, StatusNotOwner, Status(fmt.Errorf("wrapped: %w", ErrNotOwner)))
}

func TestStatusMalformedOutsideReferenceSet(t *testing.T) {
	reference := []string{StatusUpdated, StatusOutOfRange, StatusNotOwner}
	assert.NotContains(t, reference, Status(ErrMalformedRecord))
	for _, err := range []error{nil, ErrOutOfRange, ErrNotOwner} {
		assert.Contains(t, reference, Status(err))
	}
}
