// Package keyValStore wraps the badger database that backs the object
// store. It translates badger errors into the engine's error kinds and
// owns the id sequence for new content.
package keyValStore

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/inkwell-cms/inkwell/pkg/types"
)

type StoreConfig struct {
	// Path is the badger data directory.
	Path string
	// MinimumFreeGB refuses startup when the volume holding Path has less
	// free space than this. Zero disables the check.
	MinimumFreeGB int
	Logger        *logrus.Logger
}

type KeyValStore struct {
	config   StoreConfig
	badgerDB *badger.DB
	seq      *badger.Sequence
	log      *logrus.Logger
}

func NewKeyValStore(config StoreConfig) (*KeyValStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log := config.Logger

	if config.Path == "" {
		return nil, fmt.Errorf("keyValStore: no data directory configured")
	}
	if err := ensureFreeSpace(config.Path, config.MinimumFreeGB, log); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("keyValStore: open badger at %s: %w", config.Path, err)
	}

	seq, err := db.GetSequence([]byte("seq:content"), 32)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("keyValStore: content id sequence: %w", err)
	}

	return &KeyValStore{
		config:   config,
		badgerDB: db,
		seq:      seq,
		log:      log,
	}, nil
}

// NextContentID returns a fresh monotonic content id, starting at 1.
func (k *KeyValStore) NextContentID() (int64, error) {
	n, err := k.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next content id: %v: %w", err, types.ErrStorage)
	}
	return int64(n) + 1, nil
}

func (k *KeyValStore) Write(key, content []byte) error {
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(key, content)
	})
	if err != nil {
		return fmt.Errorf("write key %q: %v: %w", key, err, types.ErrStorage)
	}
	return nil
}

// WriteBatch writes key/value pairs in one transaction.
func (k *KeyValStore) WriteBatch(batch [][2][]byte) error {
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		for _, kv := range batch {
			if err := txn.Set(kv[0], kv[1]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write batch of %d keys: %v: %w", len(batch), err, types.ErrStorage)
	}
	return nil
}

func (k *KeyValStore) Read(key []byte) ([]byte, error) {
	var value []byte
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("key %q: %w", key, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read key %q: %v: %w", key, err, types.ErrStorage)
	}
	return value, nil
}

func (k *KeyValStore) Has(key []byte) (bool, error) {
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check key %q: %v: %w", key, err, types.ErrStorage)
	}
	return true, nil
}

func (k *KeyValStore) Delete(key []byte) error {
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete key %q: %v: %w", key, err, types.ErrStorage)
	}
	return nil
}

// GetItemsWithPrefix returns all key/value pairs under the given prefix.
func (k *KeyValStore) GetItemsWithPrefix(prefix []byte) ([][2][]byte, error) {
	var keysAndValues [][2][]byte
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			keysAndValues = append(keysAndValues, [2][]byte{key, value})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan prefix %q: %v: %w", prefix, err, types.ErrStorage)
	}
	return keysAndValues, nil
}

func (k *KeyValStore) Close() error {
	if err := k.seq.Release(); err != nil {
		k.log.WithError(err).Warn("releasing content id sequence")
	}
	if err := k.Clean(); err != nil {
		k.log.WithError(err).Warn("final store cleanup")
	}
	return k.badgerDB.Close()
}

// Clean syncs, flattens and garbage-collects the value log. Safe to call
// periodically while the store is in use.
func (k *KeyValStore) Clean() error {
	if err := k.badgerDB.Sync(); err != nil {
		return fmt.Errorf("syncing db: %w", err)
	}

	if err := k.badgerDB.Flatten(runtime.NumCPU()); err != nil {
		return fmt.Errorf("flattening db: %w", err)
	}

	if err := k.badgerDB.RunValueLogGC(0.1); err != nil && err != badger.ErrNoRewrite {
		return fmt.Errorf("value log gc: %w", err)
	}
	return nil
}
