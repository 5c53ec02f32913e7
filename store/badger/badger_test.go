package badger

import (
	"testing"

	"github.com/packstore/packstore/store"
	"github.com/packstore/packstore/store/storetest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(t.TempDir(), store.Options{Lock: true, Logger: zerolog.Nop()})
		require.NoError(t, err)
		return s
	})
}

func TestBadgerInMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open("", store.Options{Lock: true, InMemory: true, Logger: zerolog.Nop()})
		require.NoError(t, err)
		return s
	})
}

func TestBadgerSize(t *testing.T) {
	dir := t.TempDir()
	opts := store.Options{Lock: true, Logger: zerolog.Nop()}

	s, err := Open(dir, opts)
	require.NoError(t, err)

	size, err := s.Size()
	require.NoError(t, err)
	require.Zero(t, size)

	value := make([]byte, 64<<10)
	for i := 0; i < 4; i++ {
		tx, err := s.Begin(true)
		require.NoError(t, err)
		require.NoError(t, tx.Set([]byte{byte(i)}, value))
		require.NoError(t, tx.Commit())
	}

	size, err = s.Size()
	require.NoError(t, err)
	require.GreaterOrEqual(t, size, int64(4*len(value)))

	tx, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.Set([]byte("discarded"), value))
	require.NoError(t, tx.Rollback())

	discarded, err := s.Size()
	require.NoError(t, err)
	require.Equal(t, size, discarded)
	require.NoError(t, s.Close())

	s, err = Open(dir, opts)
	require.NoError(t, err)
	defer s.Close()

	size, err = s.Size()
	require.NoError(t, err)
	require.Greater(t, size, int64(0))
}
