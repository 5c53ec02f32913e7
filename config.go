package packstore

import (
	"errors"
	"fmt"
	"math/bits"
	"runtime"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/packstore/packstore/codec"
	"github.com/rs/zerolog"
)

const (
	GCReclaimIntervalDefault = time.Minute * 5
	GCDiscardRatioDefault    = 0.5

	// MinMaxSize is the smallest accepted size limit.
	MinMaxSize = 1 << 20
)

// DefaultMaxSize is 2 TiB where the address space allows it and 1 GiB on
// 32-bit platforms.
var DefaultMaxSize int64 = defaultMaxSize(bits.UintSize)

func defaultMaxSize(wordSize int) int64 {
	if wordSize < 64 {
		return 1 << 30
	}
	return 2 << 40
}

// Engine selects the storage engine.
type Engine uint8

const (
	// EngineBolt is the memory-mapped B+tree of go.etcd.io/bbolt.
	EngineBolt Engine = iota
	EngineBadger
	EngineLevelDB
	EnginePebble
)

var engineNames = map[Engine]string{
	EngineBolt:    "bolt",
	EngineBadger:  "badger",
	EngineLevelDB: "leveldb",
	EnginePebble:  "pebble",
}

func (e Engine) String() string {
	if name, ok := engineNames[e]; ok {
		return name
	}
	return fmt.Sprintf("engine(%d)", uint8(e))
}

// ParseEngine is the inverse of Engine.String.
func ParseEngine(s string) (Engine, error) {
	for e, name := range engineNames {
		if strings.EqualFold(s, name) {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown engine %q", s)
}

// Config contains packstore configuration parameters
type Config struct {
	// MaxSize bounds the space used by the store. Commits that would exceed
	// it fail with ErrMapFull.
	MaxSize  int64
	ReadOnly bool
	// Lock makes the engine serialize writers. When disabled, the caller must
	// ensure that writes never overlap.
	Lock bool
	// Sync and MetaSync are off by default: committed writes only become
	// durable after Flush.
	Sync     bool
	MetaSync bool
	WriteMap bool
	// SpareTxns is the number of pre-allocated transaction contexts.
	SpareTxns   int
	LockTimeout time.Duration

	Engine      Engine
	Compression codec.Compression
	KeyEncoding codec.KeyEncoding

	InMemory          bool
	GCReclaimInterval time.Duration
	GCDiscardRatio    float64

	Logger  zerolog.Logger
	Metrics *metrics.Set
}

func defaultConfig() *Config {
	return &Config{
		MaxSize:           DefaultMaxSize,
		ReadOnly:          false,
		Lock:              true,
		Sync:              false,
		MetaSync:          false,
		WriteMap:          runtime.GOOS == "linux",
		SpareTxns:         runtime.NumCPU(),
		Engine:            EngineBolt,
		Compression:       codec.Zstd,
		KeyEncoding:       codec.KeyMsgpack,
		GCReclaimInterval: GCReclaimIntervalDefault,
		GCDiscardRatio:    GCDiscardRatioDefault,
		Logger:            zerolog.Nop(),
	}
}

func (c *Config) applyOptions(opts []Option) (*Config, error) {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, c.validate()
}

func (c *Config) validate() error {
	if c.InMemory && c.Engine != EngineBadger {
		return fmt.Errorf("in-memory mode is not supported by the %s engine", c.Engine)
	}
	if c.InMemory && c.ReadOnly {
		return errors.New("in-memory mode cannot be read-only")
	}
	return nil
}

// Option is a function that takes a config struct and modifies it
type Option func(c *Config) error

// WithMaxSize sets the upper bound on the storage size, in bytes. A commit
// fails with ErrMapFull when the engine's reported size plus the commit's
// bytes would exceed it. The files may still overshoot by the engine's
// allocation step (bolt grows its file in chunks). bolt maps this much
// address space at open.
func WithMaxSize(size int64) Option {
	return func(c *Config) error {
		if size < MinMaxSize {
			return fmt.Errorf("max size %d is below the minimum of %d bytes", size, MinMaxSize)
		}
		c.MaxSize = size
		return nil
	}
}

// WithReadOnly forbids write transactions.
func WithReadOnly(enable bool) Option {
	return func(c *Config) error {
		c.ReadOnly = enable
		return nil
	}
}

// WithLock enables or disables writer serialization by the engine.
func WithLock(enable bool) Option {
	return func(c *Config) error {
		c.Lock = enable
		return nil
	}
}

// WithSync syncs every commit to stable storage.
func WithSync(enable bool) Option {
	return func(c *Config) error {
		c.Sync = enable
		return nil
	}
}

// WithMetaSync syncs file growth and metadata on every commit.
func WithMetaSync(enable bool) Option {
	return func(c *Config) error {
		c.MetaSync = enable
		return nil
	}
}

// WithWriteMap pre-faults the memory map of the bolt engine. It is only
// effective on Linux.
func WithWriteMap(enable bool) Option {
	return func(c *Config) error {
		c.WriteMap = enable
		return nil
	}
}

// WithSpareTxns sets how many transaction contexts are kept ready for reuse.
func WithSpareTxns(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return fmt.Errorf("negative spare transaction count %d", n)
		}
		c.SpareTxns = n
		return nil
	}
}

// WithLockTimeout bounds the wait for the file lock at open time.
func WithLockTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		c.LockTimeout = timeout
		return nil
	}
}

func WithEngine(engine Engine) Option {
	return func(c *Config) error {
		if _, ok := engineNames[engine]; !ok {
			return fmt.Errorf("unknown engine %s", engine)
		}
		c.Engine = engine
		return nil
	}
}

func WithCompression(compression codec.Compression) Option {
	return func(c *Config) error {
		if compression > codec.NoCompression {
			return fmt.Errorf("%w: %s", codec.ErrUnsupported, compression)
		}
		c.Compression = compression
		return nil
	}
}

// WithKeyEncoding selects how keys are encoded, which decides the iteration
// order. Changing it for an existing store makes its keys unreadable.
func WithKeyEncoding(encoding codec.KeyEncoding) Option {
	return func(c *Config) error {
		if encoding > codec.KeyOrdered {
			return fmt.Errorf("%w: %s", codec.ErrUnsupported, encoding)
		}
		c.KeyEncoding = encoding
		return nil
	}
}

// InMemoryMode allows to enable/disable in-memory mode. Only the badger
// engine supports it, nothing is written to the path.
func InMemoryMode(enable bool) Option {
	return func(c *Config) error {
		c.InMemory = enable
		return nil
	}
}

// WithGCReclaimInterval sets how often the badger value log is garbage
// collected.
func WithGCReclaimInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return fmt.Errorf("invalid gc interval %s", interval)
		}
		c.GCReclaimInterval = interval
		return nil
	}
}

func WithGCDiscardRatio(ratio float64) Option {
	return func(c *Config) error {
		if ratio <= 0 || ratio >= 1 {
			return fmt.Errorf("gc discard ratio %v not in (0, 1)", ratio)
		}
		c.GCDiscardRatio = ratio
		return nil
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithMetrics registers the store metrics on set instead of a private set.
func WithMetrics(set *metrics.Set) Option {
	return func(c *Config) error {
		c.Metrics = set
		return nil
	}
}
