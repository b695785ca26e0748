package library

import (
	"math"
	"strings"

	"github.com/roach88/library/internal/ir"
)

// Library is the record store aggregate. The zero value is an empty store.
type Library struct {
	books  []string
	owners []ir.Ownership
}

// New creates a library seeded with pre-encoded records and ownership
// entries. Both sequences are copied verbatim; owners are not validated
// against books.
func New(books []string, owners []ir.Ownership) *Library {
	return FromState(ir.State{Books: books, Owners: owners})
}

// FromState creates a library from a persisted snapshot.
func FromState(s ir.State) *Library {
	c := s.Clone()
	return &Library{books: c.Books, owners: c.Owners}
}

// Patch holds optional replacements for UpdateBook. A nil field is left
// unchanged.
type Patch struct {
	Name     *string
	Category *string
	Author   *string
}

// Empty reports whether the patch replaces nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Author == nil
}

// CreateBook appends a record and an ownership entry for owner.
// It never fails and returns the index of the new record.
func (l *Library) CreateBook(name, category, author string, owner ir.Identity) uint32 {
	l.books = append(l.books, EncodeRecord(name, category, author))

	var index uint32
	if n := len(l.books); n > 0 && uint64(n-1) <= math.MaxUint32 {
		index = uint32(n - 1)
	}
	l.owners = append(l.owners, ir.Ownership{Owner: owner, RecordIndex: index})
	return index
}

// UpdateBook replaces the supplied fields of record index when caller is the
// owner registered at ownership position index.
//
// It returns ErrOutOfRange when no record or no ownership entry exists at
// index, ErrNotOwner when the entry belongs to someone else, and
// ErrMalformedRecord when the stored record has too few parts for the patch.
// The store is unchanged on any error.
func (l *Library) UpdateBook(caller ir.Identity, index uint32, patch Patch) error {
	if uint64(index) >= uint64(len(l.books)) {
		return ErrOutOfRange
	}
	if uint64(index) >= uint64(len(l.owners)) {
		return ErrOutOfRange
	}
	if l.owners[index].Owner != caller {
		return ErrNotOwner
	}

	parts := DecodeRecord(l.books[index])
	replacements := [fieldCount]*string{patch.Name, patch.Category, patch.Author}
	for field, value := range replacements {
		if value == nil {
			continue
		}
		if field >= len(parts) {
			return ErrMalformedRecord
		}
		parts[field] = *value
	}

	l.books[index] = strings.Join(parts, Delimiter)
	return nil
}

// BooksByOwner returns the encoded records of every ownership entry held by
// owner, in entry order. Entries pointing past the end of the records are
// skipped. The result is never nil.
func (l *Library) BooksByOwner(owner ir.Identity) []string {
	out := []string{}
	for _, entry := range l.owners {
		if entry.Owner != owner {
			continue
		}
		if uint64(entry.RecordIndex) >= uint64(len(l.books)) {
			continue
		}
		out = append(out, l.books[entry.RecordIndex])
	}
	return out
}

// Len returns the number of records.
func (l *Library) Len() int {
	return len(l.books)
}

// Book returns the encoded record at index.
func (l *Library) Book(index uint32) (string, bool) {
	if uint64(index) >= uint64(len(l.books)) {
		return "", false
	}
	return l.books[index], true
}

// State returns a deep copy of both sequences.
func (l *Library) State() ir.State {
	return ir.State{Books: l.books, Owners: l.owners}.Clone()
}

// Restore replaces the library contents with a copy of s.
func (l *Library) Restore(s ir.State) {
	c := s.Clone()
	l.books, l.owners = c.Books, c.Owners
}

// Digest returns the content digest of the current state.
func (l *Library) Digest() string {
	return ir.StateDigest(ir.State{Books: l.books, Owners: l.owners})
}
