package packstore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/packstore/packstore/codec"
	"github.com/packstore/packstore/store"
)

// Get returns the value stored under key. A key that is not stored yields a new
// empty list and no error.
func (db *DB) Get(key interface{}) (codec.Value, error) {
	k, err := codec.ValueOf(key)
	if err != nil {
		return codec.Value{}, err
	}

	var value codec.Value
	err = db.view(func(tx store.Tx, c *txContext) error {
		encodedKey, err := c.encodeKey(k)
		if err != nil {
			return err
		}

		raw, err := tx.Get(encodedKey)
		if err != nil {
			return err
		}
		if raw == nil {
			db.metrics.misses.Inc()
		}

		value, err = c.decodeValue(raw)
		if err != nil {
			return fmt.Errorf("key %s: %w", k, err)
		}
		return nil
	})

	db.metrics.gets.Inc()
	if errors.Is(err, ErrDecode) {
		db.metrics.decodeErrors.Inc()
	}
	return value, err
}

// Set stores value under key, replacing any previous value.
func (db *DB) Set(key, value interface{}) error {
	k, err := codec.ValueOf(key)
	if err != nil {
		return err
	}
	v, err := codec.ValueOf(value)
	if err != nil {
		return err
	}

	err = db.update(func(tx *writeTx) error {
		encodedKey, err := tx.ctx.encodeKey(k)
		if err != nil {
			return err
		}
		encodedValue, err := tx.ctx.encodeValue(v)
		if err != nil {
			return err
		}
		return tx.set(encodedKey, encodedValue)
	})
	if err == nil {
		db.metrics.sets.Inc()
	}
	return err
}

// Delete removes key. It fails with ErrKeyNotFound if key is not stored.
func (db *DB) Delete(key interface{}) error {
	k, err := codec.ValueOf(key)
	if err != nil {
		return err
	}

	err = db.update(func(tx *writeTx) error {
		encodedKey, err := tx.ctx.encodeKey(k)
		if err != nil {
			return err
		}

		existed, err := tx.Delete(encodedKey)
		if err != nil {
			return writeErr(err)
		}
		if !existed {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, k)
		}
		return nil
	})
	if err == nil {
		db.metrics.deletes.Inc()
	}
	return err
}

// Contains reports whether key is stored.
func (db *DB) Contains(key interface{}) (bool, error) {
	k, err := codec.ValueOf(key)
	if err != nil {
		return false, err
	}

	var found bool
	err = db.view(func(tx store.Tx, c *txContext) error {
		encodedKey, err := c.encodeKey(k)
		if err != nil {
			return err
		}

		cursor, err := tx.Cursor()
		if err != nil {
			return err
		}
		defer cursor.Close()

		if err := cursor.Seek(encodedKey); err != nil {
			return err
		}
		if !cursor.Valid() {
			return nil
		}

		item, err := cursor.Item()
		if err != nil {
			return err
		}
		found = bytes.Equal(item.Key, encodedKey)
		return nil
	})
	return found, err
}

// Len returns the number of stored keys. It reads a counter kept up to date by
// every write, it does not scan the store.
func (db *DB) Len() (int, error) {
	var n int
	err := db.view(func(tx store.Tx, _ *txContext) error {
		var err error
		n, err = tx.Count()
		return err
	})
	return n, err
}
