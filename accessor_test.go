package packstore

import (
	"math/rand"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/packstore/packstore/codec"
	"github.com/stretchr/testify/require"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(42)).Read(b)
	return b
}

type article struct {
	Title     string            `pack:"title"`
	Author    string            `pack:"author"`
	Views     int               `pack:"views"`
	Score     float64           `pack:"score"`
	Published time.Time         `pack:"published"`
	Tags      []string          `pack:"tags"`
	Meta      map[string]string `pack:"meta,omitempty"`
}

func fakeArticle() article {
	return article{
		Title:     gofakeit.Sentence(5),
		Author:    gofakeit.Name(),
		Views:     gofakeit.Number(0, 1e6),
		Score:     gofakeit.Float64Range(0, 5),
		Published: gofakeit.Date().UTC(),
		Tags:      []string{gofakeit.Word(), gofakeit.Word()},
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		values := []interface{}{
			nil,
			true,
			int64(-7),
			uint64(1 << 63),
			3.25,
			"value",
			[]byte{0, 1, 2},
			time.Date(2024, 2, 29, 12, 30, 0, 123, time.UTC),
			[]interface{}{1, "two", 3.0},
			map[string]interface{}{"nested": map[string]interface{}{"list": []int{1, 2}}},
		}

		for i, value := range values {
			require.NoError(t, db.Set(i, value))
		}
		for i, value := range values {
			v, err := db.Get(i)
			require.NoError(t, err)
			require.True(t, codec.MustValueOf(value).Equal(v), "key %d: %s", i, v)
		}
	})
}

func TestSetGetStruct(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		articles := make([]article, 20)
		for i := range articles {
			articles[i] = fakeArticle()
			require.NoError(t, db.Set(articles[i].Title, articles[i]))
		}

		for _, a := range articles {
			v, err := db.Get(a.Title)
			require.NoError(t, err)

			var out article
			require.NoError(t, v.Decode(&out))
			out.Published = out.Published.UTC()
			require.Equal(t, a, out)
		}
	})
}

func TestSetOverwrites(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		require.NoError(t, db.Set("k", 1))
		require.NoError(t, db.Set("k", "one"))

		v, err := db.Get("k")
		require.NoError(t, err)
		require.Equal(t, "one", v.AsString())

		n, err := db.Len()
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})
}

func TestGetMissingKey(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		v, err := db.Get("missing")
		require.NoError(t, err)
		require.Equal(t, codec.KindList, v.Kind())
		require.Equal(t, 0, v.Len())

		other, err := db.Get("missing")
		require.NoError(t, err)
		extended := v.Append(codec.Int(1))
		require.Equal(t, 1, extended.Len())
		require.Equal(t, 0, other.Len())
		require.Equal(t, 0, v.Len())
	})
}

func TestComplexKeys(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		keys := []interface{}{
			[]interface{}{"user", 42},
			map[string]interface{}{"id": 1},
			3.5,
			[]byte("raw"),
		}
		for i, k := range keys {
			require.NoError(t, db.Set(k, i))
		}
		for i, k := range keys {
			v, err := db.Get(k)
			require.NoError(t, err)
			require.Equal(t, int64(i), v.AsInt())
		}

		_, err := db.Get(make(chan int))
		require.ErrorIs(t, err, ErrUnsupported)
		require.ErrorIs(t, db.Set("k", func() {}), ErrUnsupported)
	})
}

func TestDelete(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		require.NoError(t, db.Set("k", "v"))
		require.NoError(t, db.Delete("k"))

		ok, err := db.Contains("k")
		require.NoError(t, err)
		require.False(t, ok)

		v, err := db.Get("k")
		require.NoError(t, err)
		require.Equal(t, 0, v.Len())

		err = db.Delete("k")
		require.ErrorIs(t, err, ErrKeyNotFound)
		require.Contains(t, err.Error(), `"k"`)
	})
}

func TestContains(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		require.NoError(t, db.Set("ab", 1))

		for key, want := range map[string]bool{"a": false, "ab": true, "abc": false, "b": false} {
			ok, err := db.Contains(key)
			require.NoError(t, err)
			require.Equal(t, want, ok, key)
		}
	})
}

func TestLen(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		n, err := db.Len()
		require.NoError(t, err)
		require.Zero(t, n)

		const inserted, deleted = 50, 20
		for i := 0; i < inserted; i++ {
			require.NoError(t, db.Set(i, i))
		}
		for i := 0; i < deleted; i++ {
			require.NoError(t, db.Delete(i))
		}
		require.Error(t, db.Delete(0))

		n, err = db.Len()
		require.NoError(t, err)
		require.Equal(t, inserted-deleted, n)
	})
}

func TestCorruptValue(t *testing.T) {
	runPackTest(t, func(t *testing.T, db *DB) {
		require.NoError(t, db.Set("good", "value"))

		key, err := codec.EncodeKey(codec.KeyMsgpack, codec.String("bad"))
		require.NoError(t, err)

		tx, err := db.store.Begin(true)
		require.NoError(t, err)
		require.NoError(t, tx.Set(key, []byte("not a frame")))
		require.NoError(t, tx.Commit())

		_, err = db.Get("bad")
		require.ErrorIs(t, err, ErrDecode)

		v, err := db.Get("good")
		require.NoError(t, err)
		require.Equal(t, "value", v.AsString())

		require.Equal(t, uint64(1), db.metrics.decodeErrors.Get())
	})
}
