// Package storage provides a BadgerDB-backed item store that the query
// engine can enumerate as a lazy source.
//
// The store keeps gob-encoded items under content-addressed keys, so the
// same item stored twice occupies one slot. Iteration walks BadgerDB key
// order, which is deterministic for a fixed data set: exactly the
// replay-equal guarantee the engine requires of lazy sources.
//
// Example Usage:
//
//	// Create an in-memory store (for testing)
//	store, err := storage.OpenInMemory[Person]()
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	store.PutAll(people...)
//
//	q := cachequery.Must(cachequery.New[Person](store))
package storage

import (
	"fmt"
	"iter"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

// Store is a BadgerDB-backed collection of items of one type. It implements
// the engine's source contract: Items returns a fresh deterministic pass
// over the stored items.
//
// All operations are safe for concurrent use; BadgerDB provides the
// transaction isolation.
type Store[T any] struct {
	db *badger.DB

	mu      sync.Mutex
	lastErr error
}

// Open opens (or creates) a persistent store in the given directory.
//
// Example:
//
//	store, err := storage.Open[Person]("./data")
//	if err != nil {
//		return err
//	}
//	defer store.Close()
func Open[T any](dir string) (*Store[T], error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store at %s: %w", dir, err)
	}
	return &Store[T]{db: db}, nil
}

// OpenInMemory opens a store backed by BadgerDB's in-memory mode. Same code
// path as the persistent store, no disk I/O; intended for tests and
// ephemeral data sets.
func OpenInMemory[T any]() (*Store[T], error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory badger store: %w", err)
	}
	return &Store[T]{db: db}, nil
}

// Put stores one item. Storing an item that is already present is a no-op
// thanks to content-addressed keys.
func (s *Store[T]) Put(item T) error {
	encoded, err := encodeItem(item)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(itemKey(encoded), encoded)
	})
}

// PutAll stores a batch of items in one transaction.
func (s *Store[T]) PutAll(items ...T) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, item := range items {
			encoded, err := encodeItem(item)
			if err != nil {
				return err
			}
			if err := txn.Set(itemKey(encoded), encoded); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of stored (distinct) items.
func (s *Store[T]) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// Items returns a fresh pass over the stored items in key order. A decode
// failure ends the pass early; check Err afterwards. Abandoning the pass by
// breaking out of the range loop is legal.
func (s *Store[T]) Items() iter.Seq[T] {
	return func(yield func(T) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				var item T
				err := it.Item().Value(func(val []byte) error {
					decoded, derr := decodeItem[T](val)
					if derr != nil {
						return derr
					}
					item = decoded
					return nil
				})
				if err != nil {
					return err
				}
				if !yield(item) {
					return nil
				}
			}
			return nil
		})
		s.setErr(err)
	}
}

// Err returns the error from the most recent Items pass, or nil.
func (s *Store[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close releases the underlying BadgerDB handle.
func (s *Store[T]) Close() error {
	return s.db.Close()
}

func (s *Store[T]) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}
