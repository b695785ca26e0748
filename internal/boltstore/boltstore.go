// Package boltstore persists a library in a single bbolt file.
//
// It offers the same contract as package store on an embedded key-value
// engine: buckets keyed by big-endian positions keep books, ownership
// entries and journaled calls in order, and values are msgpack-encoded.
package boltstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/roach88/library/internal/ir"
)

var (
	bucketMeta   = []byte("meta")
	bucketBooks  = []byte("books")
	bucketOwners = []byte("owners")
	bucketCalls  = []byte("calls")
	bucketCallID = []byte("call_ids")

	keySeed = []byte("seed")
)

// Store is a bbolt-backed library store.
type Store struct {
	bdb *bbolt.DB
}

// Open creates or opens the bbolt file at path and ensures every bucket
// exists.
func Open(path string) (*Store, error) {
	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketBooks, bucketOwners, bucketCalls, bucketCallID} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}
	return &Store{bdb: bdb}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	if s.bdb == nil {
		return nil
	}
	return s.bdb.Close()
}

// Initialize stores the seed batch as the initial state.
// Returns ir.ErrAlreadyInitialized if the store was seeded before.
func (s *Store) Initialize(ctx context.Context, seed ir.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := msgpack.Marshal(seed.Clone())
	if err != nil {
		return fmt.Errorf("initialize: marshal seed: %w", err)
	}

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keySeed) != nil {
			return ir.ErrAlreadyInitialized
		}
		if err := meta.Put(keySeed, raw); err != nil {
			return fmt.Errorf("initialize: write seed: %w", err)
		}
		return writeState(tx, seed)
	})
}

// Initialized reports whether a seed has been stored.
func (s *Store) Initialized(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var ok bool
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(bucketMeta).Get(keySeed) != nil
		return nil
	})
	return ok, err
}

// Seed returns the batch the store was initialized with.
func (s *Store) Seed(ctx context.Context) (ir.State, error) {
	if err := ctx.Err(); err != nil {
		return ir.State{}, err
	}
	var seed ir.State
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketMeta).Get(keySeed)
		if raw == nil {
			return ir.ErrNotInitialized
		}
		if err := msgpack.Unmarshal(raw, &seed); err != nil {
			return fmt.Errorf("read seed: %w", err)
		}
		return nil
	})
	if err != nil {
		return ir.State{}, err
	}
	return seed.Clone(), nil
}

// LoadState reads books and ownership entries in positional order.
func (s *Store) LoadState(ctx context.Context) (ir.State, error) {
	if err := ctx.Err(); err != nil {
		return ir.State{}, err
	}
	state := ir.State{Books: []string{}, Owners: []ir.Ownership{}}
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketBooks).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			state.Books = append(state.Books, string(v))
		}

		c = tx.Bucket(bucketOwners).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry ir.Ownership
			if err := msgpack.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("decode ownership %d: %w", binary.BigEndian.Uint64(k), err)
			}
			state.Owners = append(state.Owners, entry)
		}
		return nil
	})
	if err != nil {
		return ir.State{}, err
	}
	return state, nil
}

// BooksByOwner answers an owner-scoped query from the persisted state.
func (s *Store) BooksByOwner(ctx context.Context, owner ir.Identity) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	books := []string{}
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		bookBucket := tx.Bucket(bucketBooks)
		c := tx.Bucket(bucketOwners).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry ir.Ownership
			if err := msgpack.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("decode ownership %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if entry.Owner != owner {
				continue
			}
			if encoded := bookBucket.Get(itob(uint64(entry.RecordIndex))); encoded != nil {
				books = append(books, string(encoded))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return books, nil
}

// writeState persists a full state. Books are overwritten in place,
// ownership entries are written only at positions not yet present.
func writeState(tx *bbolt.Tx, state ir.State) error {
	books := tx.Bucket(bucketBooks)
	for idx, encoded := range state.Books {
		if err := books.Put(itob(uint64(idx)), []byte(encoded)); err != nil {
			return fmt.Errorf("write book %d: %w", idx, err)
		}
	}

	owners := tx.Bucket(bucketOwners)
	for pos, entry := range state.Owners {
		key := itob(uint64(pos))
		if owners.Get(key) != nil {
			continue
		}
		raw, err := msgpack.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode ownership %d: %w", pos, err)
		}
		if err := owners.Put(key, raw); err != nil {
			return fmt.Errorf("write ownership %d: %w", pos, err)
		}
	}
	return nil
}

func itob(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
