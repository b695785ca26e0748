package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/library/internal/ir"
)

const metaSeedKey = "seed"

// Initialize stores the seed batch as the library's initial state.
// The seed is also kept verbatim so the journal can be replayed from it.
//
// Returns ir.ErrAlreadyInitialized if the store was seeded before.
func (s *Store) Initialize(ctx context.Context, seed ir.State) error {
	seedJSON, err := json.Marshal(seed.Clone())
	if err != nil {
		return fmt.Errorf("initialize: marshal seed: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("initialize: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO NOTHING
	`, metaSeedKey, string(seedJSON))
	if err != nil {
		return fmt.Errorf("initialize: write seed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("initialize: rows affected: %w", err)
	}
	if rows == 0 {
		return ir.ErrAlreadyInitialized
	}

	if err := writeState(ctx, tx, seed); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("initialize: commit: %w", err)
	}
	return nil
}

// Initialized reports whether a seed has been stored.
func (s *Store) Initialized(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meta WHERE key = ?`, metaSeedKey).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check initialized: %w", err)
	}
	return count > 0, nil
}

// Seed returns the batch the store was initialized with.
// Returns ir.ErrNotInitialized if Initialize was never called.
func (s *Store) Seed(ctx context.Context) (ir.State, error) {
	var seedJSON string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaSeedKey).Scan(&seedJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.State{}, ir.ErrNotInitialized
	}
	if err != nil {
		return ir.State{}, fmt.Errorf("read seed: %w", err)
	}

	var seed ir.State
	if err := json.Unmarshal([]byte(seedJSON), &seed); err != nil {
		return ir.State{}, fmt.Errorf("read seed: %w", err)
	}
	return seed.Clone(), nil
}

// LoadState reads the current books and ownership entries in positional
// order. Returns empty slices (not nil) for an empty store.
func (s *Store) LoadState(ctx context.Context) (ir.State, error) {
	state := ir.State{Books: []string{}, Owners: []ir.Ownership{}}

	rows, err := s.db.QueryContext(ctx, `SELECT encoded FROM books ORDER BY idx ASC`)
	if err != nil {
		return ir.State{}, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return ir.State{}, fmt.Errorf("scan book: %w", err)
		}
		state.Books = append(state.Books, encoded)
	}
	if err := rows.Err(); err != nil {
		return ir.State{}, fmt.Errorf("iterate books: %w", err)
	}

	ownerRows, err := s.db.QueryContext(ctx, `SELECT owner, book_index FROM ownerships ORDER BY pos ASC`)
	if err != nil {
		return ir.State{}, fmt.Errorf("query ownerships: %w", err)
	}
	defer ownerRows.Close()
	for ownerRows.Next() {
		var (
			owner string
			index int64
		)
		if err := ownerRows.Scan(&owner, &index); err != nil {
			return ir.State{}, fmt.Errorf("scan ownership: %w", err)
		}
		state.Owners = append(state.Owners, ir.Ownership{Owner: ir.Identity(owner), RecordIndex: uint32(index)})
	}
	if err := ownerRows.Err(); err != nil {
		return ir.State{}, fmt.Errorf("iterate ownerships: %w", err)
	}

	return state, nil
}

// BooksByOwner answers an owner-scoped query directly from the persisted
// state, following the same rules as the in-memory store: entries in
// position order, dangling indices skipped.
func (s *Store) BooksByOwner(ctx context.Context, owner ir.Identity) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.encoded
		FROM ownerships o
		JOIN books b ON b.idx = o.book_index
		WHERE o.owner = ?
		ORDER BY o.pos ASC
	`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("query books by owner: %w", err)
	}
	defer rows.Close()

	books := []string{}
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, encoded)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books by owner: %w", err)
	}
	return books, nil
}

// writeState persists a full state inside tx. Books are upserted by index
// so in-place updates land on the same row; ownership entries are
// insert-only because they are never rewritten.
func writeState(ctx context.Context, tx *sql.Tx, state ir.State) error {
	bookStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO books (idx, encoded) VALUES (?, ?)
		ON CONFLICT(idx) DO UPDATE SET encoded = excluded.encoded
		WHERE books.encoded != excluded.encoded
	`)
	if err != nil {
		return fmt.Errorf("prepare books: %w", err)
	}
	defer bookStmt.Close()

	for idx, encoded := range state.Books {
		if _, err := bookStmt.ExecContext(ctx, idx, encoded); err != nil {
			return fmt.Errorf("write book %d: %w", idx, err)
		}
	}

	ownerStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ownerships (pos, owner, book_index) VALUES (?, ?, ?)
		ON CONFLICT(pos) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare ownerships: %w", err)
	}
	defer ownerStmt.Close()

	for pos, entry := range state.Owners {
		if _, err := ownerStmt.ExecContext(ctx, pos, string(entry.Owner), int64(entry.RecordIndex)); err != nil {
			return fmt.Errorf("write ownership %d: %w", pos, err)
		}
	}

	return nil
}
