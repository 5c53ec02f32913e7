// Package store defines the transactional key/value engine interface that
// packstore runs on, and the helpers shared by the engine adapters.
package store

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrTxDone is returned when a transaction is used after Commit or Rollback.
	ErrTxDone = errors.New("transaction already committed or rolled back")

	// ErrReadOnlyTx is returned when a read transaction is asked to write.
	ErrReadOnlyTx = errors.New("write in a read-only transaction")
)

// Options are the engine settings derived from the packstore configuration.
// Engines ignore the settings they have no equivalent for.
type Options struct {
	ReadOnly bool
	// Sync syncs every commit to stable storage.
	Sync bool
	// MetaSync syncs file growth and metadata on commit.
	MetaSync bool
	// WriteMap pre-faults the memory map (bolt).
	WriteMap bool
	// Lock serializes write transactions inside the adapter. When disabled the
	// caller must guarantee that only one write transaction runs at a time.
	Lock bool
	// LockTimeout bounds the wait for the file lock at open (bolt). Zero waits
	// forever.
	LockTimeout time.Duration
	// InMemory keeps all data in memory (badger).
	InMemory bool
	// MaxSize is the size limit of the store. bolt maps this much of the file
	// up front so that growing the file never waits for open readers.
	MaxSize int64

	GCReclaimInterval time.Duration
	GCDiscardRatio    float64

	Logger zerolog.Logger
}

// Store is an open engine.
type Store interface {
	// Begin starts a transaction. At most one write transaction is active at a
	// time; a second Begin(true) blocks until the first one ends.
	Begin(update bool) (Tx, error)
	// Sync forces all committed writes to stable storage.
	Sync() error
	// Size reports the space used by the engine, in bytes. Some engines only
	// provide an estimate.
	Size() (int64, error)
	Close() error
}

// Tx is a read or write transaction. Set may keep references to key and value
// until the transaction ends, callers must not modify them.
type Tx interface {
	// Get returns nil, nil when the key is absent.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	// Delete reports whether the key was present.
	Delete(key []byte) (bool, error)
	// Cursor iterates the keys in byte order.
	Cursor() (Cursor, error)
	// Count returns the number of stored keys, including the changes of the
	// transaction itself.
	Count() (int, error)
	Commit() error
	Rollback() error
}

// Cursor walks the keys of a transaction in byte order. Item contents are only
// valid until the next call to Seek, Next or Close.
type Cursor interface {
	// Seek moves to the first key greater than or equal to key. A nil key moves
	// to the first key.
	Seek(key []byte) error
	Next()
	Valid() bool
	Item() (Item, error)
	Close() error
}

type Item struct {
	Key, Value []byte
}
