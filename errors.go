package packstore

import (
	"errors"
	"fmt"

	"github.com/packstore/packstore/codec"
)

var (
	// ErrStoreOpen is returned by Open when the path or configuration is unusable.
	ErrStoreOpen = errors.New("cannot open store")

	// ErrWrite is returned when a write transaction cannot be started or
	// committed. The engine cause is wrapped along with it.
	ErrWrite = errors.New("write failed")

	ErrKeyNotFound    = errors.New("key not found")
	ErrLengthMismatch = errors.New("number of keys and values differ")
	ErrReadOnly       = errors.New("store opened read-only")
	ErrMapFull        = errors.New("store size limit reached")
	ErrNotList        = errors.New("stored value is not a list")
	ErrClosed         = errors.New("store is closed")
	ErrNotImplemented = errors.New("not implemented")

	// ErrDecode is returned for stored bytes that cannot be decompressed or
	// decoded. Only the affected read fails.
	ErrDecode = codec.ErrDecode

	// ErrUnsupported is returned for keys or values with no codec.Value form.
	ErrUnsupported = codec.ErrUnsupported
)

func writeErr(err error) error {
	if errors.Is(err, ErrWrite) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrWrite, err)
}
