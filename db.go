// Package packstore is a key/value store for structured values. Keys and values
// are encoded with MessagePack and values are compressed before they reach a
// transactional on-disk engine (bolt by default).
//
// Writes are not durable until Flush is called, unless the store is opened
// with WithSync(true). Close must be called to release the engine.
package packstore

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/packstore/packstore/codec"
	"github.com/packstore/packstore/store"
	"github.com/rs/zerolog"
)

// DB is an open store. It is safe for concurrent use.
type DB struct {
	path    string
	conf    *Config
	store   store.Store
	comp    codec.Compressor
	pool    *txPool
	metrics *dbMetrics
	log     zerolog.Logger
	closed  atomic.Bool
}

// Open opens the store at path, creating it if needed. Errors are wrapped in
// ErrStoreOpen.
func Open(path string, opts ...Option) (*DB, error) {
	conf, err := defaultConfig().applyOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreOpen, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreOpen, err)
	}

	log := conf.Logger.With().Str("component", "packstore").Logger()

	comp, err := codec.NewCompressor(conf.Compression, conf.SpareTxns)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreOpen, err)
	}

	s, err := openStore(absPath, conf)
	if err != nil {
		comp.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrStoreOpen, absPath, err)
	}

	db := &DB{
		path:    absPath,
		conf:    conf,
		store:   s,
		comp:    comp,
		pool:    newTxPool(conf.SpareTxns, conf.KeyEncoding, comp),
		metrics: newDBMetrics(conf.Metrics, absPath),
		log:     log,
	}

	log.Info().
		Str("path", absPath).
		Stringer("engine", conf.Engine).
		Stringer("compression", conf.Compression).
		Bool("readonly", conf.ReadOnly).
		Msg("store opened")
	return db, nil
}

// Path returns the absolute path of the store.
func (db *DB) Path() string {
	return db.path
}

// Config returns a copy of the configuration the store was opened with.
func (db *DB) Config() Config {
	return *db.conf
}

// writeTx is a write transaction that tracks the bytes it writes.
type writeTx struct {
	store.Tx
	ctx     *txContext
	pending int64
}

func (tx *writeTx) set(key, value []byte) error {
	if err := tx.Tx.Set(key, value); err != nil {
		return writeErr(err)
	}
	tx.pending += int64(len(key) + len(value))
	return nil
}

// view runs fn in a read transaction. The transaction is always released.
func (db *DB) view(fn func(tx store.Tx, c *txContext) error) error {
	if db.closed.Load() {
		return ErrClosed
	}

	c := db.pool.get()
	defer db.pool.put(c)

	tx, err := db.store.Begin(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	return fn(tx, c)
}

// update runs fn in a write transaction and commits it if fn succeeds. Errors
// from the engine are wrapped in ErrWrite, errors from fn are returned as is.
func (db *DB) update(fn func(tx *writeTx) error) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if db.conf.ReadOnly {
		return writeErr(ErrReadOnly)
	}

	c := db.pool.get()
	defer db.pool.put(c)

	tx, err := db.store.Begin(true)
	if err != nil {
		db.metrics.writeErrors.Inc()
		return writeErr(err)
	}
	defer tx.Rollback()

	wtx := &writeTx{Tx: tx, ctx: c}
	if err := fn(wtx); err != nil {
		return err
	}

	if err := db.checkSize(wtx.pending); err != nil {
		db.metrics.writeErrors.Inc()
		return err
	}

	start := time.Now()
	if err := tx.Commit(); err != nil {
		db.metrics.writeErrors.Inc()
		return writeErr(err)
	}
	db.metrics.commits.UpdateDuration(start)
	return nil
}

// checkSize fails when writing pending more bytes would take the store past
// its size limit.
func (db *DB) checkSize(pending int64) error {
	if pending == 0 {
		return nil
	}

	size, err := db.store.Size()
	if err != nil {
		return writeErr(err)
	}
	if size+pending > db.conf.MaxSize {
		return fmt.Errorf("%w: %w: %d bytes used, %d pending, limit %d",
			ErrWrite, ErrMapFull, size, pending, db.conf.MaxSize)
	}
	return nil
}

// Flush forces all committed writes to stable storage.
func (db *DB) Flush() error {
	if db.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	if err := db.store.Sync(); err != nil {
		return writeErr(err)
	}
	db.log.Debug().Dur("took", time.Since(start)).Msg("store flushed")
	return nil
}

// Close releases the engine. Iterators must be closed before. Writes that were
// not flushed may be lost if the engine does not sync on close. A second Close
// returns ErrClosed.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	err := db.store.Close()
	if cerr := db.comp.Close(); err == nil {
		err = cerr
	}
	db.log.Info().Str("path", db.path).Err(err).Msg("store closed")
	return err
}

// CreateNamedDatabase is reserved for named sub-databases, which are not
// supported.
func (db *DB) CreateNamedDatabase(name string) error {
	return fmt.Errorf("%w: named database %q", ErrNotImplemented, name)
}

// Stats is a snapshot of the store state.
type Stats struct {
	Path        string
	Engine      Engine
	Compression codec.Compression
	Entries     int
	Size        int64
	MaxSize     int64
}

func (db *DB) Stats() (Stats, error) {
	entries, err := db.Len()
	if err != nil {
		return Stats{}, err
	}

	size, err := db.store.Size()
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Path:        db.path,
		Engine:      db.conf.Engine,
		Compression: db.conf.Compression,
		Entries:     entries,
		Size:        size,
		MaxSize:     db.conf.MaxSize,
	}, nil
}
