// Package pebble adapts github.com/cockroachdb/pebble to the store interface.
// Write transactions are indexed batches, read transactions are snapshots.
package pebble

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/packstore/packstore/store"
	"github.com/rs/zerolog"
)

type pebbleStore struct {
	db      *pebble.DB
	log     zerolog.Logger
	sync    *pebble.WriteOptions
	writeMu *sync.Mutex
}

func Open(dir string, opts store.Options) (store.Store, error) {
	log := opts.Logger.With().Str("component", "pebble").Logger()

	db, err := pebble.Open(dir, &pebble.Options{
		ReadOnly: opts.ReadOnly,
		Logger:   logger{log},
	})
	if err != nil {
		return nil, err
	}

	s := &pebbleStore{db: db, log: log, sync: pebble.NoSync}
	if opts.Sync {
		s.sync = pebble.Sync
	}
	if opts.Lock {
		s.writeMu = &sync.Mutex{}
	}
	return s, nil
}

func (s *pebbleStore) Begin(update bool) (store.Tx, error) {
	if !update {
		return &snapshotTx{snap: s.db.NewSnapshot()}, nil
	}

	if s.writeMu != nil {
		s.writeMu.Lock()
	}
	return &batchTx{store: s, batch: s.db.NewIndexedBatch()}, nil
}

func (s *pebbleStore) unlockWriter() {
	if s.writeMu != nil {
		s.writeMu.Unlock()
	}
}

// Sync writes an empty synced WAL record, which syncs everything before it.
func (s *pebbleStore) Sync() error {
	return s.db.LogData(nil, pebble.Sync)
}

func (s *pebbleStore) Size() (int64, error) {
	return int64(s.db.Metrics().DiskSpaceUsage()), nil
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}

// reader is the read side shared by batches and snapshots.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

func get(r reader, key []byte) ([]byte, error) {
	value, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func count(r reader) (int, error) {
	stored, err := get(r, store.CountKey)
	if err != nil {
		return 0, err
	}
	return store.DecodeCount(stored)
}

func cursor(r reader) (store.Cursor, error) {
	lower, upper := store.DataBounds()
	iter, err := r.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("pebble iterator: %w", err)
	}
	return &pebbleCursor{iter: iter}, nil
}

type snapshotTx struct {
	snap *pebble.Snapshot
	done bool
}

func (tx *snapshotTx) Get(key []byte) ([]byte, error) {
	return get(tx.snap, store.DataKey(key))
}

func (tx *snapshotTx) Set(key, value []byte) error     { return store.ErrReadOnlyTx }
func (tx *snapshotTx) Delete(key []byte) (bool, error) { return false, store.ErrReadOnlyTx }
func (tx *snapshotTx) Cursor() (store.Cursor, error)   { return cursor(tx.snap) }
func (tx *snapshotTx) Count() (int, error)             { return count(tx.snap) }

func (tx *snapshotTx) Commit() error {
	return tx.Rollback()
}

func (tx *snapshotTx) Rollback() error {
	if tx.done {
		return store.ErrTxDone
	}
	tx.done = true
	return tx.snap.Close()
}

type batchTx struct {
	store   *pebbleStore
	batch   *pebble.Batch
	done    bool
	counter store.Counter
}

func (tx *batchTx) Get(key []byte) ([]byte, error) {
	return get(tx.batch, store.DataKey(key))
}

func (tx *batchTx) exists(dataKey []byte) (bool, error) {
	_, closer, err := tx.batch.Get(dataKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func (tx *batchTx) Set(key, value []byte) error {
	dataKey := store.DataKey(key)
	existed, err := tx.exists(dataKey)
	if err != nil {
		return err
	}
	if err := tx.batch.Set(dataKey, value, nil); err != nil {
		return err
	}
	if !existed {
		tx.counter.Added()
	}
	return nil
}

func (tx *batchTx) Delete(key []byte) (bool, error) {
	dataKey := store.DataKey(key)
	existed, err := tx.exists(dataKey)
	if err != nil || !existed {
		return false, err
	}
	if err := tx.batch.Delete(dataKey, nil); err != nil {
		return false, err
	}
	tx.counter.Removed()
	return true, nil
}

func (tx *batchTx) Cursor() (store.Cursor, error) { return cursor(tx.batch) }

func (tx *batchTx) Count() (int, error) {
	n, err := count(tx.batch)
	if err != nil {
		return 0, err
	}
	return tx.counter.Apply(n), nil
}

func (tx *batchTx) Commit() error {
	if tx.done {
		return store.ErrTxDone
	}
	defer tx.finish()

	if tx.counter.Dirty() {
		n, err := tx.Count()
		if err != nil {
			return err
		}
		if err := tx.batch.Set(store.CountKey, store.EncodeCount(n), nil); err != nil {
			return err
		}
	}
	return tx.batch.Commit(tx.store.sync)
}

func (tx *batchTx) Rollback() error {
	if tx.done {
		return store.ErrTxDone
	}
	tx.finish()
	return nil
}

func (tx *batchTx) finish() {
	tx.done = true
	tx.batch.Close()
	tx.store.unlockWriter()
}

type pebbleCursor struct {
	iter *pebble.Iterator
}

func (c *pebbleCursor) Seek(key []byte) error {
	if key == nil {
		c.iter.First()
	} else {
		c.iter.SeekGE(store.DataKey(key))
	}
	return c.iter.Error()
}

func (c *pebbleCursor) Next() {
	c.iter.Next()
}

func (c *pebbleCursor) Valid() bool {
	return c.iter.Valid()
}

func (c *pebbleCursor) Item() (store.Item, error) {
	value, err := c.iter.ValueAndErr()
	if err != nil {
		return store.Item{}, err
	}
	return store.Item{Key: store.UserKey(c.iter.Key()), Value: value}, nil
}

func (c *pebbleCursor) Close() error {
	return c.iter.Close()
}
