// Package cache puts a TTL cache in front of the read-side relationship
// queries. Values are JSON blobs in Badger; store failures never fail a read.
package cache

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"squadgraph/backend/pkg/errors"
)

// Store is a byte-oriented TTL key-value store
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// BadgerStore implements Store on BadgerDB
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a Badger store under dir, or an in-memory one when dir
// is empty
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(16 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.NewStoreUnavailable("cache", "open", fmt.Errorf("failed to open badger: %w", err))
	}
	return &BadgerStore{db: db}, nil
}

// Get returns the value for key. Expired keys are reported as absent.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewStoreUnavailable("cache", "get", err)
	}
	return value, true, nil
}

// Set stores value under key for ttl. A non-positive ttl never expires.
func (s *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return errors.NewStoreUnavailable("cache", "set", err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}); err != nil {
		return errors.NewStoreUnavailable("cache", "delete", err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix
func (s *BadgerStore) DeletePrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return errors.NewStoreUnavailable("cache", "scan", err)
	}

	for _, k := range keys {
		if err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(k)
		}); err != nil {
			return errors.NewStoreUnavailable("cache", "delete", err)
		}
	}
	return nil
}

// Close releases the underlying database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// NopStore never holds anything; it turns the Service into a pass-through
type NopStore struct{}

func (NopStore) Get(context.Context, string) ([]byte, bool, error)         { return nil, false, nil }
func (NopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NopStore) Delete(context.Context, string) error                     { return nil }
func (NopStore) DeletePrefix(context.Context, string) error               { return nil }
func (NopStore) Close() error                                             { return nil }
