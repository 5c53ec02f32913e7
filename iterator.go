package packstore

import (
	"errors"
	"fmt"

	"github.com/packstore/packstore/codec"
	"github.com/packstore/packstore/store"
)

type iterMode uint8

const (
	iterKeys iterMode = 1 << iota
	iterValues

	iterItems = iterKeys | iterValues
)

// Iterator is a forward-only sequence of keys, values or key/value pairs. It
// holds a read transaction, and so a consistent snapshot, from its creation
// until it is exhausted or closed. An Iterator cannot be restarted.
//
// Close must be called when the iteration is abandoned early. A held read
// transaction can keep the bolt engine from growing its file.
//
//	it, err := db.Items()
//	if err != nil {
//		return err
//	}
//	defer it.Close()
//	for it.Next() {
//		fmt.Println(it.Key(), it.Value())
//	}
//	return it.Err()
type Iterator struct {
	db     *DB
	tx     store.Tx
	ctx    *txContext
	mode   iterMode
	closed bool
	err    error

	// cursor based iteration
	cursor  store.Cursor
	started bool

	// point lookups
	keys        []codec.Value
	encodedKeys [][]byte
	pos         int

	key   codec.Value
	value codec.Value
}

// Keys iterates the stored keys in the byte order of their encoding.
func (db *DB) Keys() (*Iterator, error) {
	return db.newCursorIterator(iterKeys)
}

// Values iterates the stored values in the byte order of their key encoding.
func (db *DB) Values() (*Iterator, error) {
	return db.newCursorIterator(iterValues)
}

// Items iterates the stored pairs in the byte order of the key encoding.
func (db *DB) Items() (*Iterator, error) {
	return db.newCursorIterator(iterItems)
}

// ForEach calls fn for every stored pair, in key order, and stops at the first
// error.
func (db *DB) ForEach(fn func(key, value codec.Value) error) error {
	it, err := db.Items()
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Err()
}

func (db *DB) beginIterator(mode iterMode) (*Iterator, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}

	c := db.pool.get()
	tx, err := db.store.Begin(false)
	if err != nil {
		db.pool.put(c)
		return nil, err
	}

	db.metrics.openIterators.Inc()
	return &Iterator{db: db, tx: tx, ctx: c, mode: mode}, nil
}

func (db *DB) newCursorIterator(mode iterMode) (*Iterator, error) {
	it, err := db.beginIterator(mode)
	if err != nil {
		return nil, err
	}

	it.cursor, err = it.tx.Cursor()
	if err != nil {
		it.Close()
		return nil, err
	}
	return it, nil
}

// Next advances the iterator and reports whether a new element is available.
// It returns false once the sequence is exhausted or an error occurred, the
// iterator is then closed.
func (it *Iterator) Next() bool {
	if it.closed {
		return false
	}

	var (
		ok  bool
		err error
	)
	if it.cursor != nil {
		ok, err = it.nextFromCursor()
	} else {
		ok, err = it.nextFromKeys()
	}

	if err != nil {
		it.err = err
		if errors.Is(err, ErrDecode) {
			it.db.metrics.decodeErrors.Inc()
		}
	}
	if !ok || err != nil {
		it.Close()
		return false
	}
	return true
}

func (it *Iterator) nextFromCursor() (bool, error) {
	if !it.started {
		it.started = true
		if err := it.cursor.Seek(nil); err != nil {
			return false, err
		}
	} else {
		it.cursor.Next()
	}

	if !it.cursor.Valid() {
		return false, nil
	}

	item, err := it.cursor.Item()
	if err != nil {
		return false, err
	}

	it.key, it.value = codec.Value{}, codec.Value{}
	if it.mode&iterKeys != 0 {
		if it.key, err = it.ctx.decodeKey(item.Key); err != nil {
			return false, fmt.Errorf("stored key %x: %w", item.Key, err)
		}
	}
	if it.mode&iterValues != 0 {
		if it.value, err = it.ctx.decodeValue(item.Value); err != nil {
			return false, fmt.Errorf("value of stored key %x: %w", item.Key, err)
		}
	}
	return true, nil
}

func (it *Iterator) nextFromKeys() (bool, error) {
	if it.pos >= len(it.encodedKeys) {
		return false, nil
	}

	raw, err := it.tx.Get(it.encodedKeys[it.pos])
	if err != nil {
		return false, err
	}

	it.key = it.keys[it.pos]
	if it.value, err = it.ctx.decodeValue(raw); err != nil {
		return false, fmt.Errorf("key %s: %w", it.key, err)
	}
	it.pos++
	return true, nil
}

// Key returns the current key. It is the nil Value when iterating values only.
func (it *Iterator) Key() codec.Value {
	return it.key
}

// Value returns the current value. It is the nil Value when iterating keys only.
func (it *Iterator) Value() codec.Value {
	return it.value
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the read transaction. It is safe to call Close more than once.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true

	var err error
	if it.cursor != nil {
		err = it.cursor.Close()
	}
	if rerr := it.tx.Rollback(); err == nil && !errors.Is(rerr, store.ErrTxDone) {
		err = rerr
	}

	it.db.pool.put(it.ctx)
	it.ctx = nil
	it.db.metrics.openIterators.Dec()
	return err
}
