// Package engine hosts a library behind a single-writer dispatcher.
//
// Every call is stamped with a seq from the logical Clock, applied to the
// in-memory library, and committed to a Journal together with the state it
// produced. Calls submitted from many goroutines are serialized through a
// FIFO queue drained by Run, so the library itself needs no locking.
//
// Invocation and completion IDs are content-addressed (see package ir), which
// lets Replay rebuild the library from its seed and journal and confirm that
// every recorded outcome is reproduced exactly.
package engine
