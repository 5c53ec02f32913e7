package packstore

import (
	"fmt"

	"github.com/packstore/packstore/store"
	badgerstore "github.com/packstore/packstore/store/badger"
	boltstore "github.com/packstore/packstore/store/bbolt"
	levelstore "github.com/packstore/packstore/store/leveldb"
	pebblestore "github.com/packstore/packstore/store/pebble"
)

func openStore(path string, c *Config) (store.Store, error) {
	opts := store.Options{
		ReadOnly:          c.ReadOnly,
		Sync:              c.Sync,
		MetaSync:          c.MetaSync,
		WriteMap:          c.WriteMap,
		Lock:              c.Lock,
		LockTimeout:       c.LockTimeout,
		InMemory:          c.InMemory,
		MaxSize:           c.MaxSize,
		GCReclaimInterval: c.GCReclaimInterval,
		GCDiscardRatio:    c.GCDiscardRatio,
		Logger:            c.Logger,
	}

	switch c.Engine {
	case EngineBolt:
		return boltstore.Open(path, opts)
	case EngineBadger:
		if c.InMemory {
			return badgerstore.Open("", opts)
		}
		return badgerstore.Open(path, opts)
	case EngineLevelDB:
		return levelstore.Open(path, opts)
	case EnginePebble:
		return pebblestore.Open(path, opts)
	}
	return nil, fmt.Errorf("unknown engine %s", c.Engine)
}
