package store

import (
	"encoding/binary"
	"fmt"
)

// Engines without buckets split their key space in two: user keys live under
// DataPrefix, bookkeeping keys under MetaPrefix.
const (
	DataPrefix byte = 'd'
	MetaPrefix byte = 'm'
)

// CountKey holds the number of stored user keys.
var CountKey = []byte{MetaPrefix, 'c', 'o', 'u', 'n', 't'}

// DataKey returns a new slice holding key under the data prefix.
func DataKey(key []byte) []byte {
	k := make([]byte, len(key)+1)
	k[0] = DataPrefix
	copy(k[1:], key)
	return k
}

// UserKey strips the data prefix. The result aliases dataKey.
func UserKey(dataKey []byte) []byte {
	return dataKey[1:]
}

// DataBounds returns the lower (inclusive) and upper (exclusive) bounds of the
// data key space.
func DataBounds() (lower, upper []byte) {
	return []byte{DataPrefix}, []byte{DataPrefix + 1}
}

func EncodeCount(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// DecodeCount decodes a counter written by EncodeCount. A missing counter is 0.
func DecodeCount(data []byte) (int, error) {
	if data == nil {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid entry counter of %d bytes", len(data))
	}
	return int(binary.BigEndian.Uint64(data)), nil
}

// Counter accumulates the change to the entry count made by a write
// transaction. Adapters flush it into CountKey right before committing.
type Counter struct {
	delta int
}

func (c *Counter) Added()   { c.delta++ }
func (c *Counter) Removed() { c.delta-- }

// Apply returns stored adjusted by the pending change.
func (c *Counter) Apply(stored int) int { return stored + c.delta }

func (c *Counter) Dirty() bool { return c.delta != 0 }
