// Package history persists the conversation transcript locally.
// Entries are append-only; the voice session never mutates or deletes them.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/koe-app/koe/internal/types"
)

var keyPrefix = []byte("entry:")

// Store is a badger-backed transcript store.
type Store struct {
	db      *badger.DB
	nextSeq atomic.Uint64
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	s := &Store{db: db}
	if err := s.loadSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Append stores one transcript entry in arrival order.
func (s *Store) Append(entry types.TranscriptEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	seq := s.nextSeq.Add(1)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(seq), value)
	})
	if err != nil {
		return fmt.Errorf("store entry: %w", err)
	}
	return nil
}

// Recent returns up to n of the most recent entries in chronological order.
// n <= 0 returns all entries.
func (s *Store) Recent(n int) ([]types.TranscriptEntry, error) {
	var entries []types.TranscriptEntry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the last possible key, then walk backwards.
		seekKey := append(append([]byte{}, keyPrefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(keyPrefix); it.Next() {
			if n > 0 && len(entries) >= n {
				break
			}
			var entry types.TranscriptEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("decode entry: %w", err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Oldest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Clear removes all stored entries.
func (s *Store) Clear() error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	s.nextSeq.Store(0)
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) loadSeq() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = keyPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := append(append([]byte{}, keyPrefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		it.Seek(seekKey)
		if it.ValidForPrefix(keyPrefix) {
			k := it.Item().Key()
			if len(k) == len(keyPrefix)+8 {
				s.nextSeq.Store(binary.BigEndian.Uint64(k[len(keyPrefix):]))
			}
		}
		return nil
	})
}

func key(seq uint64) []byte {
	k := make([]byte, len(keyPrefix)+8)
	copy(k, keyPrefix)
	binary.BigEndian.PutUint64(k[len(keyPrefix):], seq)
	return k
}
