package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the algorithm applied to encoded values.
type Compression uint8

const (
	// Zstd is Zstandard at level 9, favoring ratio over speed.
	Zstd Compression = iota
	// LZ4 is the LZ4 frame format at level 9.
	LZ4
	// Snappy is the Snappy block format.
	Snappy
	// NoCompression stores encoded values as they are.
	NoCompression
)

// ZstdLevel is the zstd level used for values.
const ZstdLevel = 9

func (c Compression) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	case Snappy:
		return "snappy"
	case NoCompression:
		return "none"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression is the inverse of Compression.String.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "zstd", "zstandard":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	case "snappy":
		return Snappy, nil
	case "none", "":
		return NoCompression, nil
	}
	return 0, fmt.Errorf("%w: compression %q", ErrUnsupported, s)
}

// Compressor compresses encoded values. Implementations are safe for
// concurrent use. Decompressing an empty input yields an empty output.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
	Close() error
}

// NewCompressor returns the compressor for c. concurrency bounds the number of
// concurrent zstd operations that keep pre-allocated state, values below 1
// select the library default.
func NewCompressor(c Compression, concurrency int) (Compressor, error) {
	switch c {
	case Zstd:
		return newZstdCompressor(concurrency)
	case LZ4:
		return lz4Compressor{}, nil
	case Snappy:
		return snappyCompressor{}, nil
	case NoCompression:
		return noCompressor{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, c)
}

type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCompressor(concurrency int) (*zstdCompressor, error) {
	eopts := []zstd.EOption{zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(ZstdLevel))}
	dopts := []zstd.DOption{}
	if concurrency > 0 {
		eopts = append(eopts, zstd.WithEncoderConcurrency(concurrency))
		dopts = append(dopts, zstd.WithDecoderConcurrency(concurrency))
	}

	encoder, err := zstd.NewWriter(nil, eopts...)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, dopts...)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (c *zstdCompressor) Compress(src []byte) ([]byte, error) {
	return c.encoder.EncodeAll(src, nil), nil
}

func (c *zstdCompressor) Decompress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	out, err := c.decoder.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrDecode, err)
	}
	return out, nil
}

func (c *zstdCompressor) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}

type lz4Compressor struct{}

func (lz4Compressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
		return nil, fmt.Errorf("lz4 apply level: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(src)))
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrDecode, err)
	}
	return out, nil
}

func (lz4Compressor) Close() error { return nil }

type snappyCompressor struct{}

func (snappyCompressor) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCompressor) Decompress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy: %v", ErrDecode, err)
	}
	return out, nil
}

func (snappyCompressor) Close() error { return nil }

type noCompressor struct{}

func (noCompressor) Compress(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func (noCompressor) Decompress(src []byte) ([]byte, error) {
	return src, nil
}

func (noCompressor) Close() error { return nil }
