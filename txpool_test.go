package packstore

import (
	"testing"

	"github.com/packstore/packstore/codec"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, size int) *txPool {
	comp, err := codec.NewCompressor(codec.Zstd, 1)
	require.NoError(t, err)
	t.Cleanup(func() { comp.Close() })
	return newTxPool(size, codec.KeyMsgpack, comp)
}

func TestTxPoolReuse(t *testing.T) {
	p := newTestPool(t, 2)

	a, b := p.get(), p.get()
	require.NotSame(t, a, b)

	// the pool is drained, a fresh context is made
	c := p.get()
	require.NotNil(t, c)

	p.put(a)
	require.Same(t, a, p.get())

	p.put(a)
	p.put(b)
	p.put(c) // dropped, the pool is full
	require.Same(t, a, p.get())
	require.Same(t, b, p.get())
	require.NotSame(t, c, p.get())
}

func TestTxPoolDisabled(t *testing.T) {
	p := newTestPool(t, 0)

	a := p.get()
	p.put(a)
	require.NotSame(t, a, p.get())
}

func TestTxContextValues(t *testing.T) {
	c := newTestPool(t, 1).get()

	v := codec.MustValueOf(map[string]interface{}{"list": []int{1, 2, 3}})
	data, err := c.encodeValue(v)
	require.NoError(t, err)

	decoded, err := c.decodeValue(data)
	require.NoError(t, err)
	require.True(t, v.Equal(decoded))

	empty, err := c.decodeValue(nil)
	require.NoError(t, err)
	require.Equal(t, codec.KindList, empty.Kind())
	require.Zero(t, empty.Len())

	_, err = c.decodeValue([]byte("garbage"))
	require.ErrorIs(t, err, ErrDecode)
}

func TestTxContextKeyIsNotShared(t *testing.T) {
	c := newTestPool(t, 1).get()

	k1, err := c.encodeKey(codec.String("first"))
	require.NoError(t, err)
	k2, err := c.encodeKey(codec.String("second"))
	require.NoError(t, err)

	decoded, err := c.decodeKey(k1)
	require.NoError(t, err)
	require.Equal(t, "first", decoded.AsString())

	decoded, err = c.decodeKey(k2)
	require.NoError(t, err)
	require.Equal(t, "second", decoded.AsString())
}
