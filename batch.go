package packstore

import (
	"fmt"

	"github.com/packstore/packstore/codec"
)

// GetMulti looks up keys, in order, within a single read transaction. Keys that
// are not stored yield a new empty list. The returned iterator holds the
// transaction until it is exhausted or closed.
func (db *DB) GetMulti(keys []interface{}) (*Iterator, error) {
	values, err := valuesOf(keys)
	if err != nil {
		return nil, err
	}

	it, err := db.beginIterator(iterItems)
	if err != nil {
		return nil, err
	}

	it.keys = values
	it.encodedKeys = make([][]byte, len(values))
	for i, k := range values {
		if it.encodedKeys[i], err = it.ctx.encodeKey(k); err != nil {
			it.Close()
			return nil, err
		}
	}
	return it, nil
}

// SetMulti appends values[i] to the list stored under keys[i], for every i, in
// one atomic write transaction. A key that is not stored starts a new list.
//
// Unlike Set, SetMulti accumulates: calling it twice with the same key and the
// values 1 and 2 stores [1, 2]. If a key holds something other than a list,
// for example a value written by Set, the whole call fails with ErrNotList and
// nothing is written.
func (db *DB) SetMulti(keys, values []interface{}) error {
	if len(keys) != len(values) {
		return fmt.Errorf("%w: %d keys, %d values", ErrLengthMismatch, len(keys), len(values))
	}

	ks, err := valuesOf(keys)
	if err != nil {
		return err
	}
	vs, err := valuesOf(values)
	if err != nil {
		return err
	}

	err = db.update(func(tx *writeTx) error {
		for i, k := range ks {
			if err := appendValue(tx, k, vs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		db.metrics.batchWrites.Inc()
	}
	return err
}

func appendValue(tx *writeTx, key, value codec.Value) error {
	encodedKey, err := tx.ctx.encodeKey(key)
	if err != nil {
		return err
	}

	raw, err := tx.Get(encodedKey)
	if err != nil {
		return err
	}

	stored, err := tx.ctx.decodeValue(raw)
	if err != nil {
		return fmt.Errorf("key %s: %w", key, err)
	}
	if stored.Kind() != codec.KindList {
		return fmt.Errorf("%w: key %s holds a %s", ErrNotList, key, stored.Kind())
	}

	encodedValue, err := tx.ctx.encodeValue(stored.Append(value))
	if err != nil {
		return err
	}
	return tx.set(encodedKey, encodedValue)
}

func valuesOf(items []interface{}) ([]codec.Value, error) {
	values := make([]codec.Value, len(items))
	for i, item := range items {
		v, err := codec.ValueOf(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}
