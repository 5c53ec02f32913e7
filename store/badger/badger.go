// Package badger adapts github.com/dgraph-io/badger/v4 to the store interface.
package badger

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/packstore/packstore/store"
	"github.com/rs/zerolog"
)

type badgerStore struct {
	db     *badger.DB
	log    zerolog.Logger
	chWg   sync.WaitGroup
	chQuit chan struct{}

	// writeMu serializes write transactions when locking is enabled. badger
	// itself runs them optimistically and fails conflicting commits.
	writeMu *sync.Mutex

	gcInterval     time.Duration
	gcDiscardRatio float64
	inMemory       bool

	// badger refreshes its own size figures only periodically, so Size adds
	// the bytes committed since open to the table and value log sizes found
	// at open.
	sizeAtOpen int64
	written    atomic.Int64
}

// Open opens or creates a badger directory. With opts.Lock disabled the
// directory lock guard is bypassed as well.
func Open(dir string, opts store.Options) (store.Store, error) {
	log := opts.Logger.With().Str("component", "badger").Logger()

	badgerOpts := badger.DefaultOptions(dir).
		WithReadOnly(opts.ReadOnly).
		WithSyncWrites(opts.Sync).
		WithBypassLockGuard(!opts.Lock).
		WithNumVersionsToKeep(1).
		WithLogger(logger{log})
	if opts.InMemory {
		badgerOpts = badgerOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	return OpenWithOptions(badgerOpts, opts)
}

func OpenWithOptions(badgerOpts badger.Options, opts store.Options) (store.Store, error) {
	var sizeAtOpen int64
	if !badgerOpts.InMemory {
		var err error
		if sizeAtOpen, err = filesSize(badgerOpts.Dir, badgerOpts.ValueDir); err != nil {
			return nil, err
		}
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}

	dataStore := &badgerStore{
		db:             db,
		log:            opts.Logger.With().Str("component", "badger").Logger(),
		chQuit:         make(chan struct{}, 1),
		gcInterval:     opts.GCReclaimInterval,
		gcDiscardRatio: opts.GCDiscardRatio,
		inMemory:       badgerOpts.InMemory,
		sizeAtOpen:     sizeAtOpen,
	}
	if opts.Lock {
		dataStore.writeMu = &sync.Mutex{}
	}
	if dataStore.gcInterval <= 0 {
		dataStore.gcInterval = time.Minute * 5
	}
	if dataStore.gcDiscardRatio <= 0 {
		dataStore.gcDiscardRatio = 0.5
	}

	if !badgerOpts.ReadOnly && !badgerOpts.InMemory {
		dataStore.startGC()
	}
	return dataStore, nil
}

func (s *badgerStore) Begin(update bool) (store.Tx, error) {
	if update && s.writeMu != nil {
		s.writeMu.Lock()
	}

	tx := &badgerTx{Txn: s.db.NewTransaction(update), update: update}
	if update {
		tx.unlock = s.unlockWriter
		tx.written = &s.written
	}
	return tx, nil
}

func (s *badgerStore) unlockWriter() {
	if s.writeMu != nil {
		s.writeMu.Unlock()
	}
}

func (s *badgerStore) Sync() error {
	// no write-ahead log to sync in memory
	if s.inMemory {
		return nil
	}
	return s.db.Sync()
}

// Size is an upper estimate: space reclaimed by compaction or value log GC
// after open is not subtracted.
func (s *badgerStore) Size() (int64, error) {
	return s.sizeAtOpen + s.written.Load(), nil
}

// filesSize sums the tables and value logs in the given directories. Closed
// value logs are truncated to their content, memtable files are skipped as
// their entries are flushed to tables on close.
func filesSize(dirs ...string) (int64, error) {
	var size int64
	seen := make(map[string]bool)
	for _, dir := range dirs {
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true

		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}

		for _, entry := range entries {
			switch filepath.Ext(entry.Name()) {
			case ".sst", ".vlog":
			default:
				continue
			}
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				return 0, err
			}
			size += info.Size()
		}
	}
	return size, nil
}

func (s *badgerStore) Close() error {
	s.stopGC()
	return s.db.Close()
}

type badgerTx struct {
	*badger.Txn
	update  bool
	done    bool
	unlock  func()
	counter store.Counter

	written *atomic.Int64
	pending int64
}

func (tx *badgerTx) finish() {
	tx.done = true
	if tx.unlock != nil {
		tx.unlock()
		tx.unlock = nil
	}
}

func (tx *badgerTx) exists(key []byte) (bool, error) {
	_, err := tx.Txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Set copies key and value, badger keeps the slices until commit.
func (tx *badgerTx) Set(key, value []byte) error {
	if !tx.update {
		return store.ErrReadOnlyTx
	}

	dataKey := store.DataKey(key)
	existed, err := tx.exists(dataKey)
	if err != nil {
		return err
	}

	v := make([]byte, len(value))
	copy(v, value)
	if err := tx.Txn.Set(dataKey, v); err != nil {
		return err
	}
	tx.pending += int64(len(dataKey) + len(v))
	if !existed {
		tx.counter.Added()
	}
	return nil
}

func (tx *badgerTx) Get(key []byte) ([]byte, error) {
	item, err := tx.Txn.Get(store.DataKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (tx *badgerTx) Delete(key []byte) (bool, error) {
	if !tx.update {
		return false, store.ErrReadOnlyTx
	}

	dataKey := store.DataKey(key)
	existed, err := tx.exists(dataKey)
	if err != nil || !existed {
		return false, err
	}
	if err := tx.Txn.Delete(dataKey); err != nil {
		return false, err
	}
	tx.pending += int64(len(dataKey))
	tx.counter.Removed()
	return true, nil
}

func (tx *badgerTx) Count() (int, error) {
	var stored []byte
	item, err := tx.Txn.Get(store.CountKey)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, err
	default:
		if stored, err = item.ValueCopy(nil); err != nil {
			return 0, err
		}
	}

	n, err := store.DecodeCount(stored)
	if err != nil {
		return 0, err
	}
	return tx.counter.Apply(n), nil
}

func (tx *badgerTx) Commit() error {
	if tx.done {
		return store.ErrTxDone
	}
	defer tx.finish()

	if tx.counter.Dirty() {
		n, err := tx.Count()
		if err != nil {
			tx.Txn.Discard()
			return err
		}
		if err := tx.Txn.Set(store.CountKey, store.EncodeCount(n)); err != nil {
			tx.Txn.Discard()
			return err
		}
	}
	if err := tx.Txn.Commit(); err != nil {
		return err
	}
	if tx.written != nil {
		tx.written.Add(tx.pending)
	}
	return nil
}

func (tx *badgerTx) Rollback() error {
	if tx.done {
		return store.ErrTxDone
	}
	tx.Txn.Discard()
	tx.finish()
	return nil
}

func (tx *badgerTx) Cursor() (store.Cursor, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte{store.DataPrefix}
	return &badgerCursor{it: tx.NewIterator(opts)}, nil
}

type badgerCursor struct {
	it *badger.Iterator
}

func (cursor *badgerCursor) Seek(key []byte) error {
	if key == nil {
		cursor.it.Rewind()
		return nil
	}
	cursor.it.Seek(store.DataKey(key))
	return nil
}

func (cursor *badgerCursor) Next() {
	cursor.it.Next()
}

func (cursor *badgerCursor) Valid() bool {
	return cursor.it.Valid()
}

func (cursor *badgerCursor) Item() (store.Item, error) {
	item := cursor.it.Item()

	value, err := item.ValueCopy(nil)
	return store.Item{Key: store.UserKey(item.Key()), Value: value}, err
}

func (cursor *badgerCursor) Close() error {
	cursor.it.Close()
	return nil
}

func (s *badgerStore) startGC() {
	s.chWg.Add(1)

	go func() {
		defer s.chWg.Done()

		ticker := time.NewTicker(s.gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.chQuit:
				return

			case <-ticker.C:
				err := s.db.RunValueLogGC(s.gcDiscardRatio)
				if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
					s.log.Warn().Err(err).Msg("value log gc failed")
				}
			}
		}
	}()
}

func (s *badgerStore) stopGC() {
	s.chQuit <- struct{}{}
	s.chWg.Wait()
	close(s.chQuit)
}
