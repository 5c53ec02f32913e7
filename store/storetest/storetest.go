// Package storetest is the behavior every store adapter must show. Adapter
// packages call Run from their tests.
package storetest

import (
	"bytes"
	"sort"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/packstore/packstore/store"
	"github.com/stretchr/testify/require"
)

// Opener returns a fresh, empty store. Run closes it.
type Opener func(t *testing.T) store.Store

func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"get_set_delete", testGetSetDelete},
		{"count", testCount},
		{"rollback", testRollback},
		{"cursor_order", testCursorOrder},
		{"cursor_seek", testCursorSeek},
		{"snapshot_isolation", testSnapshotIsolation},
		{"write_under_reader", testWriteUnderReader},
		{"read_only_tx", testReadOnlyTx},
		{"tx_done", testTxDone},
		{"sync", testSync},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			defer func() {
				require.NoError(t, s.Close())
			}()

			tc.fn(t, s)
		})
	}
}

func update(t *testing.T, s store.Store, fn func(tx store.Tx)) {
	tx, err := s.Begin(true)
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit())
}

func view(t *testing.T, s store.Store, fn func(tx store.Tx)) {
	tx, err := s.Begin(false)
	require.NoError(t, err)
	defer tx.Rollback()
	fn(tx)
}

func newKey() []byte {
	return uuid.Must(uuid.NewV4()).Bytes()
}

func testGetSetDelete(t *testing.T, s store.Store) {
	key := newKey()

	view(t, s, func(tx store.Tx) {
		value, err := tx.Get(key)
		require.NoError(t, err)
		require.Nil(t, value)
	})

	update(t, s, func(tx store.Tx) {
		require.NoError(t, tx.Set(key, []byte("v1")))

		value, err := tx.Get(key)
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), value)

		require.NoError(t, tx.Set(key, []byte("v2")))
	})

	view(t, s, func(tx store.Tx) {
		value, err := tx.Get(key)
		require.NoError(t, err)
		require.Equal(t, []byte("v2"), value)
	})

	update(t, s, func(tx store.Tx) {
		existed, err := tx.Delete(key)
		require.NoError(t, err)
		require.True(t, existed)

		existed, err = tx.Delete(key)
		require.NoError(t, err)
		require.False(t, existed)
	})

	view(t, s, func(tx store.Tx) {
		value, err := tx.Get(key)
		require.NoError(t, err)
		require.Nil(t, value)
	})
}

func testCount(t *testing.T, s store.Store) {
	keys := [][]byte{newKey(), newKey(), newKey()}

	update(t, s, func(tx store.Tx) {
		for _, k := range keys {
			require.NoError(t, tx.Set(k, []byte("x")))
		}
		require.NoError(t, tx.Set(keys[0], []byte("y")))

		n, err := tx.Count()
		require.NoError(t, err)
		require.Equal(t, 3, n)
	})

	update(t, s, func(tx store.Tx) {
		_, err := tx.Delete(keys[1])
		require.NoError(t, err)
		_, err = tx.Delete(newKey())
		require.NoError(t, err)
	})

	view(t, s, func(tx store.Tx) {
		n, err := tx.Count()
		require.NoError(t, err)
		require.Equal(t, 2, n)
	})
}

func testRollback(t *testing.T, s store.Store) {
	key := newKey()

	tx, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.Set(key, []byte("v")))
	require.NoError(t, tx.Rollback())

	view(t, s, func(tx store.Tx) {
		value, err := tx.Get(key)
		require.NoError(t, err)
		require.Nil(t, value)

		n, err := tx.Count()
		require.NoError(t, err)
		require.Equal(t, 0, n)
	})
}

func collect(t *testing.T, c store.Cursor) [][]byte {
	keys := make([][]byte, 0)
	for ; c.Valid(); c.Next() {
		item, err := c.Item()
		require.NoError(t, err)
		keys = append(keys, append([]byte(nil), item.Key...))
	}
	return keys
}

func testCursorOrder(t *testing.T, s store.Store) {
	keys := make([][]byte, 0, 50)
	update(t, s, func(tx store.Tx) {
		for i := 0; i < 50; i++ {
			k := newKey()
			keys = append(keys, k)
			require.NoError(t, tx.Set(k, k))
		}
	})
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	view(t, s, func(tx store.Tx) {
		c, err := tx.Cursor()
		require.NoError(t, err)
		defer c.Close()

		require.NoError(t, c.Seek(nil))
		require.Equal(t, keys, collect(t, c))
	})
}

func testCursorSeek(t *testing.T, s store.Store) {
	update(t, s, func(tx store.Tx) {
		for _, k := range []string{"a", "c", "e"} {
			require.NoError(t, tx.Set([]byte(k), []byte(k)))
		}
	})

	view(t, s, func(tx store.Tx) {
		c, err := tx.Cursor()
		require.NoError(t, err)
		defer c.Close()

		require.NoError(t, c.Seek([]byte("c")))
		require.True(t, c.Valid())
		item, err := c.Item()
		require.NoError(t, err)
		require.Equal(t, []byte("c"), item.Key)
		require.Equal(t, []byte("c"), item.Value)

		require.NoError(t, c.Seek([]byte("d")))
		require.Equal(t, [][]byte{[]byte("e")}, collect(t, c))

		require.NoError(t, c.Seek([]byte("f")))
		require.False(t, c.Valid())
	})
}

func testSnapshotIsolation(t *testing.T, s store.Store) {
	key := newKey()
	update(t, s, func(tx store.Tx) {
		require.NoError(t, tx.Set(key, []byte("old")))
	})

	reader, err := s.Begin(false)
	require.NoError(t, err)
	defer reader.Rollback()

	update(t, s, func(tx store.Tx) {
		require.NoError(t, tx.Set(key, []byte("new")))
		require.NoError(t, tx.Set(newKey(), []byte("other")))
	})

	value, err := reader.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("old"), value)

	n, err := reader.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

// testWriteUnderReader grows the store well past its initial size while a read
// transaction stays open.
func testWriteUnderReader(t *testing.T, s store.Store) {
	reader, err := s.Begin(false)
	require.NoError(t, err)
	defer reader.Rollback()

	value := bytes.Repeat([]byte{'v'}, 64<<10)
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 32; i++ {
			tx, err := s.Begin(true)
			if err != nil {
				done <- err
				return
			}
			if err := tx.Set(newKey(), value); err != nil {
				tx.Rollback()
				done <- err
				return
			}
			if err := tx.Commit(); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("writer blocked by an open read transaction")
	}

	n, err := reader.Count()
	require.NoError(t, err)
	require.Zero(t, n)
}

func testReadOnlyTx(t *testing.T, s store.Store) {
	view(t, s, func(tx store.Tx) {
		require.ErrorIs(t, tx.Set(newKey(), []byte("v")), store.ErrReadOnlyTx)

		_, err := tx.Delete(newKey())
		require.ErrorIs(t, err, store.ErrReadOnlyTx)
	})
}

func testTxDone(t *testing.T, s store.Store) {
	tx, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.Set(newKey(), []byte("v")))
	require.NoError(t, tx.Commit())
	require.ErrorIs(t, tx.Rollback(), store.ErrTxDone)

	// a second writer must not be blocked by the finished one
	tx, err = s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
}

func testSync(t *testing.T, s store.Store) {
	update(t, s, func(tx store.Tx) {
		require.NoError(t, tx.Set(newKey(), []byte("v")))
	})
	require.NoError(t, s.Sync())

	size, err := s.Size()
	require.NoError(t, err)
	require.GreaterOrEqual(t, size, int64(0))
}
