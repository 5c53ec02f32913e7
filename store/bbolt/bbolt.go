// Package bbolt adapts go.etcd.io/bbolt, a memory-mapped B+tree with a single
// writer and MVCC readers, to the store interface.
package bbolt

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/packstore/packstore/store"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

type boltStore struct {
	db  *bbolt.DB
	log zerolog.Logger
}

const (
	dbFileName = "data.db"
	dataBucket = "data"
	metaBucket = "meta"
	countKey   = "count"
)

// Open opens or creates the bolt file inside dir. bolt always serializes write
// transactions, so opts.Lock has no effect.
func Open(dir string, opts store.Options) (store.Store, error) {
	if !opts.ReadOnly {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bbolt.Open(filepath.Join(dir, dbFileName), 0o666, &bbolt.Options{
		Timeout:    opts.LockTimeout,
		NoGrowSync: !opts.MetaSync,
		NoSync:     !opts.Sync,
		ReadOnly:   opts.ReadOnly,
		MmapFlags:  mmapFlags(opts.WriteMap),

		InitialMmapSize: initialMmapSize(opts.MaxSize),
	})
	if err != nil {
		return nil, err
	}

	s := &boltStore{db: db, log: opts.Logger.With().Str("component", "bolt").Logger()}
	if !opts.ReadOnly {
		if err := s.createBucketsIfNotExist(); err != nil {
			db.Close()
			return nil, err
		}
	}

	s.log.Debug().Str("path", db.Path()).Bool("readonly", opts.ReadOnly).Msg("store opened")
	return s, nil
}

// initialMmapSize maps the whole size limit at open. A remap has to wait for
// every open read transaction, so a writer growing the file past the mapped
// region would block behind readers. On windows bolt truncates the file to the
// mapped size, so the map grows on demand there.
func initialMmapSize(maxSize int64) int {
	if maxSize <= 0 || runtime.GOOS == "windows" {
		return 0
	}
	if maxSize > math.MaxInt {
		return math.MaxInt
	}
	return int(maxSize)
}

func (s *boltStore) createBucketsIfNotExist() error {
	tx, err := s.db.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, name := range []string{dataBucket, metaBucket} {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *boltStore) Begin(update bool) (store.Tx, error) {
	tx, err := s.db.Begin(update)
	if err != nil {
		return nil, err
	}
	return &boltTx{
		tx:   tx,
		data: tx.Bucket([]byte(dataBucket)),
		meta: tx.Bucket([]byte(metaBucket)),
	}, nil
}

func (s *boltStore) Sync() error {
	return s.db.Sync()
}

func (s *boltStore) Size() (int64, error) {
	var size int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size, err
}

func (s *boltStore) Close() error {
	s.log.Debug().Msg("closing store")
	return s.db.Close()
}

type boltTx struct {
	tx      *bbolt.Tx
	data    *bbolt.Bucket
	meta    *bbolt.Bucket
	counter store.Counter
}

func (tx *boltTx) Get(key []byte) ([]byte, error) {
	if tx.data == nil {
		return nil, nil
	}
	return tx.data.Get(key), nil
}

func (tx *boltTx) Set(key, value []byte) error {
	if !tx.tx.Writable() {
		return store.ErrReadOnlyTx
	}

	existed := tx.data.Get(key) != nil
	if err := tx.data.Put(key, value); err != nil {
		return err
	}
	if !existed {
		tx.counter.Added()
	}
	return nil
}

func (tx *boltTx) Delete(key []byte) (bool, error) {
	if !tx.tx.Writable() {
		return false, store.ErrReadOnlyTx
	}

	if tx.data.Get(key) == nil {
		return false, nil
	}
	if err := tx.data.Delete(key); err != nil {
		return false, err
	}
	tx.counter.Removed()
	return true, nil
}

func (tx *boltTx) Count() (int, error) {
	if tx.meta == nil {
		return 0, nil
	}
	n, err := store.DecodeCount(tx.meta.Get([]byte(countKey)))
	if err != nil {
		return 0, err
	}
	return tx.counter.Apply(n), nil
}

func (tx *boltTx) Cursor() (store.Cursor, error) {
	if tx.data == nil {
		return &boltCursor{}, nil
	}
	return &boltCursor{c: tx.data.Cursor()}, nil
}

func (tx *boltTx) Commit() error {
	if tx.counter.Dirty() {
		n, err := tx.Count()
		if err != nil {
			return err
		}
		if err := tx.meta.Put([]byte(countKey), store.EncodeCount(n)); err != nil {
			return err
		}
	}

	if err := tx.tx.Commit(); err != nil {
		return fmt.Errorf("bolt commit: %w", err)
	}
	return nil
}

func (tx *boltTx) Rollback() error {
	if tx.tx.DB() == nil {
		return store.ErrTxDone
	}
	return tx.tx.Rollback()
}

type boltCursor struct {
	c          *bbolt.Cursor
	key, value []byte
}

func (c *boltCursor) Seek(seek []byte) error {
	if c.c == nil {
		return nil
	}
	if seek == nil {
		c.key, c.value = c.c.First()
	} else {
		c.key, c.value = c.c.Seek(seek)
	}
	return nil
}

func (c *boltCursor) Next() {
	if c.c == nil || c.key == nil {
		return
	}
	c.key, c.value = c.c.Next()
}

func (c *boltCursor) Valid() bool {
	return c.key != nil
}

func (c *boltCursor) Item() (store.Item, error) {
	return store.Item{Key: c.key, Value: c.value}, nil
}

func (c *boltCursor) Close() error {
	return nil
}
