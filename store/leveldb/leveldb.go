// Package leveldb adapts github.com/syndtr/goleveldb to the store interface.
// Write transactions are leveldb transactions, read transactions are
// snapshots.
package leveldb

import (
	"errors"
	"fmt"

	"github.com/packstore/packstore/store"
	"github.com/rs/zerolog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB implements store.Store using LevelDB.
type LevelDB struct {
	db  *leveldb.DB
	log zerolog.Logger
}

// Open opens (or creates) a LevelDB database at path. Transactions write their
// tables directly and are durable once committed, whatever opts.Sync says.
// leveldb serializes transactions itself, so opts.Lock has no effect.
func Open(path string, opts store.Options) (store.Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		ReadOnly:       opts.ReadOnly,
		ErrorIfMissing: opts.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	l := &LevelDB{db: db, log: opts.Logger.With().Str("component", "leveldb").Logger()}
	l.log.Debug().Str("path", path).Bool("readonly", opts.ReadOnly).Msg("store opened")
	return l, nil
}

func (l *LevelDB) Begin(update bool) (store.Tx, error) {
	if !update {
		snap, err := l.db.GetSnapshot()
		if err != nil {
			return nil, err
		}
		return &snapshotTx{snap: snap}, nil
	}

	tr, err := l.db.OpenTransaction()
	if err != nil {
		return nil, err
	}
	return &transactionTx{tr: tr}, nil
}

// Sync is a no-op, committed transactions are already on stable storage.
func (l *LevelDB) Sync() error {
	return nil
}

func (l *LevelDB) Size() (int64, error) {
	sizes, err := l.db.SizeOf([]util.Range{{Start: []byte{0x00}, Limit: []byte{0xff}}})
	if err != nil {
		return 0, err
	}
	return sizes.Sum(), nil
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

// reader is the read side shared by transactions and snapshots.
type reader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

func get(r reader, key []byte) ([]byte, error) {
	val, err := r.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	return val, err
}

func count(r reader) (int, error) {
	stored, err := get(r, store.CountKey)
	if err != nil {
		return 0, err
	}
	return store.DecodeCount(stored)
}

func cursor(r reader) store.Cursor {
	lower, upper := store.DataBounds()
	return &levelCursor{it: r.NewIterator(&util.Range{Start: lower, Limit: upper}, nil)}
}

type snapshotTx struct {
	snap *leveldb.Snapshot
	done bool
}

func (tx *snapshotTx) Get(key []byte) ([]byte, error) {
	return get(tx.snap, store.DataKey(key))
}

func (tx *snapshotTx) Set(key, value []byte) error     { return store.ErrReadOnlyTx }
func (tx *snapshotTx) Delete(key []byte) (bool, error) { return false, store.ErrReadOnlyTx }
func (tx *snapshotTx) Cursor() (store.Cursor, error)   { return cursor(tx.snap), nil }
func (tx *snapshotTx) Count() (int, error)             { return count(tx.snap) }

func (tx *snapshotTx) Commit() error {
	return tx.Rollback()
}

func (tx *snapshotTx) Rollback() error {
	if tx.done {
		return store.ErrTxDone
	}
	tx.done = true
	tx.snap.Release()
	return nil
}

type transactionTx struct {
	tr      *leveldb.Transaction
	done    bool
	counter store.Counter
}

func (tx *transactionTx) Get(key []byte) ([]byte, error) {
	return get(tx.tr, store.DataKey(key))
}

func (tx *transactionTx) Set(key, value []byte) error {
	dataKey := store.DataKey(key)
	existed, err := tx.tr.Has(dataKey, nil)
	if err != nil {
		return err
	}
	if err := tx.tr.Put(dataKey, value, nil); err != nil {
		return err
	}
	if !existed {
		tx.counter.Added()
	}
	return nil
}

func (tx *transactionTx) Delete(key []byte) (bool, error) {
	dataKey := store.DataKey(key)
	existed, err := tx.tr.Has(dataKey, nil)
	if err != nil || !existed {
		return false, err
	}
	if err := tx.tr.Delete(dataKey, nil); err != nil {
		return false, err
	}
	tx.counter.Removed()
	return true, nil
}

func (tx *transactionTx) Cursor() (store.Cursor, error) { return cursor(tx.tr), nil }

func (tx *transactionTx) Count() (int, error) {
	n, err := count(tx.tr)
	if err != nil {
		return 0, err
	}
	return tx.counter.Apply(n), nil
}

func (tx *transactionTx) Commit() error {
	if tx.done {
		return store.ErrTxDone
	}
	tx.done = true

	if tx.counter.Dirty() {
		n, err := tx.Count()
		if err == nil {
			err = tx.tr.Put(store.CountKey, store.EncodeCount(n), nil)
		}
		if err != nil {
			tx.tr.Discard()
			return err
		}
	}

	if err := tx.tr.Commit(); err != nil {
		tx.tr.Discard()
		return err
	}
	return nil
}

func (tx *transactionTx) Rollback() error {
	if tx.done {
		return store.ErrTxDone
	}
	tx.done = true
	tx.tr.Discard()
	return nil
}

type levelCursor struct {
	it iterator.Iterator
}

func (c *levelCursor) Seek(key []byte) error {
	if key == nil {
		c.it.First()
	} else {
		c.it.Seek(store.DataKey(key))
	}
	return c.it.Error()
}

func (c *levelCursor) Next() {
	c.it.Next()
}

func (c *levelCursor) Valid() bool {
	return c.it.Valid()
}

func (c *levelCursor) Item() (store.Item, error) {
	return store.Item{Key: store.UserKey(c.it.Key()), Value: c.it.Value()}, c.it.Error()
}

func (c *levelCursor) Close() error {
	c.it.Release()
	return c.it.Error()
}
