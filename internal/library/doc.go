// Package library implements the book record store: an ordered sequence of
// encoded book records and an ordered sequence of ownership entries.
//
// Three operations mutate or read the store:
//   - CreateBook appends a record and an ownership entry pointing at it
//   - UpdateBook rewrites a record's fields when the caller owns it
//   - BooksByOwner lists the records of one owner in entry order
//
// # Positional ownership
//
// UpdateBook resolves the owner of record i as the i-th ownership entry, not
// as the entry whose stored index equals i. The two sequences therefore must
// stay in lockstep: every append touches both, and nothing is ever removed.
// BooksByOwner, in contrast, follows each entry's stored index.
//
// # Concurrency
//
// A Library has no internal locking. The host serializes all calls; see
// package engine for the reference dispatcher.
package library
