package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataKey(t *testing.T) {
	key := []byte("user")
	dataKey := DataKey(key)

	require.Equal(t, DataPrefix, dataKey[0])
	require.Equal(t, key, UserKey(dataKey))

	dataKey[1] = 'U'
	require.Equal(t, []byte("user"), key)
}

func TestDataBoundsExcludeMeta(t *testing.T) {
	lower, upper := DataBounds()

	require.True(t, bytes.Compare(DataKey(nil), lower) >= 0)
	require.True(t, bytes.Compare(DataKey([]byte{0xff, 0xff}), upper) < 0)
	require.False(t, bytes.Compare(CountKey, lower) >= 0 && bytes.Compare(CountKey, upper) < 0)
}

func TestCountEncoding(t *testing.T) {
	n, err := DecodeCount(nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	n, err = DecodeCount(EncodeCount(12345))
	require.NoError(t, err)
	require.Equal(t, 12345, n)

	_, err = DecodeCount([]byte{1, 2})
	require.Error(t, err)
}

func TestCounter(t *testing.T) {
	var c Counter
	require.False(t, c.Dirty())

	c.Added()
	c.Added()
	c.Removed()
	require.True(t, c.Dirty())
	require.Equal(t, 11, c.Apply(10))

	c.Removed()
	require.False(t, c.Dirty())
}
