package pebble

import (
	"testing"

	"github.com/packstore/packstore/store"
	"github.com/packstore/packstore/store/storetest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPebbleStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(t.TempDir(), store.Options{Lock: true, Logger: zerolog.Nop()})
		require.NoError(t, err)
		return s
	})
}

func TestPebbleSyncCommits(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(t.TempDir(), store.Options{Lock: true, Sync: true, Logger: zerolog.Nop()})
		require.NoError(t, err)
		return s
	})
}
