// Package store provides SQLite-backed durable storage for a library.
//
// The store keeps the persisted layout of the record store plus a journal
// of every call the host delivered:
//   - books: encoded records keyed by their stable index
//   - ownerships: ownership entries keyed by their sequence position
//   - invocations / completions: the append-only call journal
//   - meta: the seed batch, kept verbatim for replay
//
// # Ordering
//
// Books and ownerships are read ORDER BY their position column, journal rows
// ORDER BY seq. Positions are never reused: books are upserted in place by
// index, ownerships are insert-only.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
