package packstore

import (
	"sync"
	"testing"

	"github.com/packstore/packstore/codec"
	"github.com/stretchr/testify/require"
)

func TestSetMultiLengthMismatch(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		err := db.SetMulti([]interface{}{"a", "b"}, []interface{}{1})
		require.ErrorIs(t, err, ErrLengthMismatch)

		n, err := db.Len()
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

func TestSetMultiAppends(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		require.NoError(t, db.SetMulti([]interface{}{"k"}, []interface{}{1}))
		require.NoError(t, db.SetMulti([]interface{}{"k"}, []interface{}{2}))

		v, err := db.Get("k")
		require.NoError(t, err)
		require.True(t, codec.List(codec.Int(1), codec.Int(2)).Equal(v), v.String())
	})
}

func TestSetMultiSameKeyTwice(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		keys := []interface{}{"k", "other", "k"}
		values := []interface{}{"first", "x", "second"}
		require.NoError(t, db.SetMulti(keys, values))

		v, err := db.Get("k")
		require.NoError(t, err)
		require.True(t, codec.List(codec.String("first"), codec.String("second")).Equal(v), v.String())

		n, err := db.Len()
		require.NoError(t, err)
		require.Equal(t, 2, n)
	})
}

func TestSetMultiNotList(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		require.NoError(t, db.Set("scalar", 5))

		err := db.SetMulti([]interface{}{"fresh", "scalar"}, []interface{}{1, 2})
		require.ErrorIs(t, err, ErrNotList)

		ok, err := db.Contains("fresh")
		require.NoError(t, err)
		require.False(t, ok)

		v, err := db.Get("scalar")
		require.NoError(t, err)
		require.Equal(t, int64(5), v.AsInt())
	})
}

func TestSetMultiAfterSetList(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		require.NoError(t, db.Set("k", []int{1}))
		require.NoError(t, db.SetMulti([]interface{}{"k"}, []interface{}{[]int{2}}))

		v, err := db.Get("k")
		require.NoError(t, err)
		require.True(t, codec.MustValueOf([]interface{}{1, []int{2}}).Equal(v), v.String())
	})
}

func TestSetMultiConcurrent(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		const writers, writes = 4, 25

		var wg sync.WaitGroup
		errs := make(chan error, writers*writes)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < writes; i++ {
					errs <- db.SetMulti([]interface{}{"log"}, []interface{}{w*writes + i})
				}
			}(w)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}

		v, err := db.Get("log")
		require.NoError(t, err)
		require.Equal(t, writers*writes, v.Len())
	})
}

func TestGetMulti(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		require.NoError(t, db.Set("a", 1))
		require.NoError(t, db.Set("c", 3))

		it, err := db.GetMulti([]interface{}{"c", "missing", "a", "c"})
		require.NoError(t, err)
		defer it.Close()

		var (
			keys   []string
			values []codec.Value
		)
		for it.Next() {
			keys = append(keys, it.Key().AsString())
			values = append(values, it.Value())
		}
		require.NoError(t, it.Err())

		require.Equal(t, []string{"c", "missing", "a", "c"}, keys)
		require.Equal(t, int64(3), values[0].AsInt())
		require.Equal(t, codec.KindList, values[1].Kind())
		require.Equal(t, 0, values[1].Len())
		require.Equal(t, int64(1), values[2].AsInt())
		require.Equal(t, int64(3), values[3].AsInt())
	})
}

func TestGetMultiEmpty(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		it, err := db.GetMulti(nil)
		require.NoError(t, err)
		require.False(t, it.Next())
		require.NoError(t, it.Err())
	})
}
