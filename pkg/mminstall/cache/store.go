package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// errMiss is the store-level not-found signal, mapped to (zero, false, nil)
// by the Cache methods.
var errMiss = errors.New("cache entry not found")

// store is a thin layer over badger.
type store struct {
	db *badger.DB
}

func openStore(path string) (*store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening cache at %s: %w", path, err)
	}
	return &store{db: db}, nil
}

func (s *store) close() error {
	return s.db.Close()
}

func (s *store) get(key []byte, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errMiss
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return decode(val, v) })
	})
}

// put stores v under key; a positive ttl makes badger expire the entry.
func (s *store) put(key []byte, v any, ttl time.Duration) error {
	val, err := encode(v)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, val)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

func (s *store) count(p []byte) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *store) dropAll() error {
	return s.db.DropAll()
}

func (s *store) size() (lsm, vlog int64) {
	return s.db.Size()
}
