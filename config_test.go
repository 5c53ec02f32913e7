package packstore

import (
	"runtime"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/packstore/packstore/codec"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := defaultConfig()

	require.Equal(t, DefaultMaxSize, c.MaxSize)
	require.False(t, c.ReadOnly)
	require.True(t, c.Lock)
	require.False(t, c.Sync)
	require.False(t, c.MetaSync)
	require.Equal(t, runtime.GOOS == "linux", c.WriteMap)
	require.Equal(t, runtime.NumCPU(), c.SpareTxns)
	require.Equal(t, EngineBolt, c.Engine)
	require.Equal(t, codec.Zstd, c.Compression)
	require.Equal(t, codec.KeyMsgpack, c.KeyEncoding)
}

func TestApplyOptions(t *testing.T) {
	set := metrics.NewSet()
	c, err := defaultConfig().applyOptions([]Option{
		WithMaxSize(64 << 20),
		WithReadOnly(true),
		WithLock(false),
		WithSync(true),
		WithMetaSync(true),
		WithWriteMap(false),
		WithSpareTxns(0),
		WithLockTimeout(time.Second),
		WithEngine(EnginePebble),
		WithCompression(codec.LZ4),
		WithKeyEncoding(codec.KeyOrdered),
		WithGCReclaimInterval(time.Minute),
		WithGCDiscardRatio(0.7),
		WithMetrics(set),
	})
	require.NoError(t, err)

	require.Equal(t, int64(64<<20), c.MaxSize)
	require.True(t, c.ReadOnly)
	require.False(t, c.Lock)
	require.True(t, c.Sync)
	require.True(t, c.MetaSync)
	require.False(t, c.WriteMap)
	require.Zero(t, c.SpareTxns)
	require.Equal(t, time.Second, c.LockTimeout)
	require.Equal(t, EnginePebble, c.Engine)
	require.Equal(t, codec.LZ4, c.Compression)
	require.Equal(t, codec.KeyOrdered, c.KeyEncoding)
	require.Equal(t, time.Minute, c.GCReclaimInterval)
	require.Equal(t, 0.7, c.GCDiscardRatio)
	require.Same(t, set, c.Metrics)
}

func TestInvalidOptions(t *testing.T) {
	for name, opt := range map[string]Option{
		"max_size":       WithMaxSize(MinMaxSize - 1),
		"spare_txns":     WithSpareTxns(-1),
		"engine":         WithEngine(Engine(9)),
		"compression":    WithCompression(codec.Compression(9)),
		"key_encoding":   WithKeyEncoding(codec.KeyEncoding(9)),
		"gc_interval":    WithGCReclaimInterval(0),
		"gc_ratio_low":   WithGCDiscardRatio(0),
		"gc_ratio_high":  WithGCDiscardRatio(1),
		"in_memory_bolt": InMemoryMode(true),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := defaultConfig().applyOptions([]Option{opt})
			require.Error(t, err)
		})
	}

	_, err := defaultConfig().applyOptions([]Option{WithEngine(EngineBadger), InMemoryMode(true), WithReadOnly(true)})
	require.Error(t, err)

	_, err = defaultConfig().applyOptions([]Option{WithEngine(EngineBadger), InMemoryMode(true)})
	require.NoError(t, err)
}

func TestParseEngine(t *testing.T) {
	for _, e := range engines {
		parsed, err := ParseEngine(e.String())
		require.NoError(t, err)
		require.Equal(t, e, parsed)
	}

	parsed, err := ParseEngine("BOLT")
	require.NoError(t, err)
	require.Equal(t, EngineBolt, parsed)

	_, err = ParseEngine("lmdb")
	require.Error(t, err)
	require.Equal(t, "engine(9)", Engine(9).String())
}
