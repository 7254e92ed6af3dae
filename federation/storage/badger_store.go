// Package storage is a persistent triple store on BadgerDB and the source
// that serves it to the executor.
package storage

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-federation/federation"
)

// BadgerStore keeps every triple under three index orderings so that any
// pattern with a ground position is answered by a prefix scan
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a store in dir
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable BadgerDB logs

	opts.MemTableSize = 64 << 20
	opts.BlockCacheSize = 128 << 20
	opts.IndexCacheSize = 64 << 20
	opts.DetectConflicts = false
	opts.ValueThreshold = 1 << 10
	return openBadger(opts)
}

// NewInMemoryStore creates a store that lives only as long as the process
func NewInMemoryStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Assert adds triples to the store. Triples with variables are rejected.
func (s *BadgerStore) Assert(triples []federation.Triple) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, t := range triples {
		if !t.IsGround() {
			return fmt.Errorf("cannot store non-ground triple %s", t)
		}
		for _, idx := range allIndices {
			if err := wb.Set(encodeKey(idx, t), nil); err != nil {
				return fmt.Errorf("failed to write to %v index: %w", idx, err)
			}
		}
	}
	return wb.Flush()
}

// Retract removes triples from the store
func (s *BadgerStore) Retract(triples []federation.Triple) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, t := range triples {
			for _, idx := range allIndices {
				if err := txn.Delete(encodeKey(idx, t)); err != nil && err != badger.ErrKeyNotFound {
					return fmt.Errorf("failed to delete from %v index: %w", idx, err)
				}
			}
		}
		return nil
	})
}

// Scan calls fn for every stored triple matching pattern. Variables
// repeated within the pattern are not checked here.
func (s *BadgerStore) Scan(ctx context.Context, pattern federation.Triple, fn func(federation.Triple) error) error {
	idx, n := chooseIndex(pattern)
	prefix := encodePrefix(idx, pattern, n)
	terms := pattern.Terms()

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // the key is the triple
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := decodeKey(it.Item().Key())
			if err != nil {
				return err
			}
			// positions after the prefix may still be ground
			got := t.Terms()
			match := true
			for _, pos := range idx.order()[n:] {
				if !terms[pos].IsVariable() && terms[pos] != got[pos] {
					match = false
					break
				}
			}
			if !match {
				continue
			}
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count counts the triples matching the ground positions of pattern
// without decoding them
func (s *BadgerStore) Count(pattern federation.Triple) (int64, error) {
	idx, n := chooseIndex(pattern)
	if n < groundPositions(pattern) {
		// the prefix does not cover every ground position
		var count int64
		err := s.Scan(context.Background(), pattern, func(federation.Triple) error {
			count++
			return nil
		})
		return count, err
	}
	prefix := encodePrefix(idx, pattern, n)

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var count int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count, nil
}

func groundPositions(pattern federation.Triple) int {
	n := 0
	for _, t := range pattern.Terms() {
		if !t.IsVariable() {
			n++
		}
	}
	return n
}

// Close closes the store
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
