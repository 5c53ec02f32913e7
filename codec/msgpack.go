package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

var (
	// ErrDecode is returned for malformed, truncated or corrupt input.
	ErrDecode = errors.New("decode error")

	// ErrUnsupported is returned when a Go value has no Value representation.
	ErrUnsupported = errors.New("unsupported value")
)

// maxDepth bounds the nesting accepted by the decoder, so that corrupt input
// cannot exhaust the stack.
const maxDepth = 512

var (
	_ msgpack.CustomEncoder = Value{}
	_ msgpack.CustomDecoder = (*Value)(nil)
)

func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeValue(enc, v)
}

func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	value, err := decodeValue(dec, 0)
	if err != nil {
		return err
	}
	*v = value
	return nil
}

// Encoder serializes values to MessagePack, reusing its buffer across calls.
// It is not safe for concurrent use.
type Encoder struct {
	buf bytes.Buffer
	enc *msgpack.Encoder
}

func NewEncoder() *Encoder {
	e := &Encoder{}
	e.enc = msgpack.NewEncoder(&e.buf)
	return e
}

// Encode returns the encoding of v. The returned slice is only valid until the
// next call to Encode.
func (e *Encoder) Encode(v Value) ([]byte, error) {
	e.buf.Reset()
	if err := encodeValue(e.enc, v); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// Decoder parses MessagePack into values. It is not safe for concurrent use.
type Decoder struct {
	r   bytes.Reader
	dec *msgpack.Decoder
}

func NewDecoder() *Decoder {
	d := &Decoder{}
	d.dec = msgpack.NewDecoder(&d.r)
	return d
}

// Decode parses exactly one value from data. Trailing bytes are an error.
func (d *Decoder) Decode(data []byte) (Value, error) {
	d.r.Reset(data)
	d.dec.Reset(&d.r)

	v, err := decodeValue(d.dec, 0)
	if err != nil {
		return Value{}, wrapDecodeErr(err)
	}
	if d.r.Len() > 0 {
		return Value{}, fmt.Errorf("%w: %d trailing bytes", ErrDecode, d.r.Len())
	}
	return v, nil
}

// Encode returns the MessagePack encoding of v. Map keys are written in sorted
// order, so equal values always produce equal bytes.
func Encode(v Value) ([]byte, error) {
	data, err := NewEncoder().Encode(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (Value, error) {
	return NewDecoder().Decode(data)
}

func wrapDecodeErr(err error) error {
	if errors.Is(err, ErrDecode) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDecode, err)
}

func encodeValue(enc *msgpack.Encoder, v Value) error {
	switch v.kind {
	case KindNil:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(v.AsBool())
	case KindInt:
		return enc.EncodeInt(int64(v.num))
	case KindUint:
		return enc.EncodeUint(v.num)
	case KindFloat:
		return enc.EncodeFloat64(v.AsFloat())
	case KindString:
		return enc.EncodeString(v.str)
	case KindBytes:
		if err := enc.EncodeBytesLen(len(v.str)); err != nil {
			return err
		}
		_, err := enc.Writer().Write([]byte(v.str))
		return err
	case KindTime:
		return enc.EncodeTime(v.t)
	case KindList:
		if err := enc.EncodeArrayLen(len(v.list)); err != nil {
			return err
		}
		for _, item := range v.list {
			if err := encodeValue(enc, item); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		if err := enc.EncodeMapLen(len(v.fields)); err != nil {
			return err
		}
		for _, k := range v.Keys() {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := encodeValue(enc, v.fields[k]); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: kind %s", ErrUnsupported, v.kind)
}

func decodeValue(dec *msgpack.Decoder, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, fmt.Errorf("%w: nesting deeper than %d", ErrDecode, maxDepth)
	}

	c, err := dec.PeekCode()
	if err != nil {
		return Value{}, err
	}

	switch {
	case msgpcode.IsFixedNum(c):
		i, err := dec.DecodeInt64()
		return Int(i), err
	case msgpcode.IsFixedMap(c):
		return decodeMap(dec, depth)
	case msgpcode.IsFixedArray(c):
		return decodeList(dec, depth)
	case msgpcode.IsFixedString(c):
		s, err := dec.DecodeString()
		return String(s), err
	}

	switch c {
	case msgpcode.Nil:
		return Nil(), dec.DecodeNil()
	case msgpcode.False, msgpcode.True:
		b, err := dec.DecodeBool()
		return Bool(b), err
	case msgpcode.Float, msgpcode.Double:
		f, err := dec.DecodeFloat64()
		return Float(f), err
	case msgpcode.Uint8, msgpcode.Uint16, msgpcode.Uint32, msgpcode.Uint64:
		u, err := dec.DecodeUint64()
		return Uint(u), err
	case msgpcode.Int8, msgpcode.Int16, msgpcode.Int32, msgpcode.Int64:
		i, err := dec.DecodeInt64()
		return Int(i), err
	case msgpcode.Str8, msgpcode.Str16, msgpcode.Str32:
		s, err := dec.DecodeString()
		return String(s), err
	case msgpcode.Bin8, msgpcode.Bin16, msgpcode.Bin32:
		b, err := dec.DecodeBytes()
		return Bytes(b), err
	case msgpcode.Array16, msgpcode.Array32:
		return decodeList(dec, depth)
	case msgpcode.Map16, msgpcode.Map32:
		return decodeMap(dec, depth)
	case msgpcode.FixExt1, msgpcode.FixExt2, msgpcode.FixExt4, msgpcode.FixExt8, msgpcode.FixExt16,
		msgpcode.Ext8, msgpcode.Ext16, msgpcode.Ext32:
		t, err := dec.DecodeTime()
		return Time(t), err
	}
	return Value{}, fmt.Errorf("%w: unknown code %x", ErrDecode, c)
}

// capHint limits preallocation for lengths read from untrusted input.
func capHint(n int) int {
	if n > 1024 {
		return 1024
	}
	return n
}

func decodeList(dec *msgpack.Decoder, depth int) (Value, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return Value{}, err
	}

	list := make([]Value, 0, capHint(n))
	for i := 0; i < n; i++ {
		item, err := decodeValue(dec, depth+1)
		if err != nil {
			return Value{}, err
		}
		list = append(list, item)
	}
	return Value{kind: KindList, list: list}, nil
}

func decodeMap(dec *msgpack.Decoder, depth int) (Value, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return Value{}, err
	}

	fields := make(map[string]Value, capHint(n))
	for i := 0; i < n; i++ {
		key, err := decodeMapKey(dec)
		if err != nil {
			return Value{}, err
		}
		item, err := decodeValue(dec, depth+1)
		if err != nil {
			return Value{}, err
		}
		fields[key] = item
	}
	return Value{kind: KindMap, fields: fields}, nil
}

func decodeMapKey(dec *msgpack.Decoder) (string, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return "", err
	}
	if msgpcode.IsString(c) {
		return dec.DecodeString()
	}
	if msgpcode.IsBin(c) {
		b, err := dec.DecodeBytes()
		return string(b), err
	}
	return "", fmt.Errorf("%w: map key with code %x is not a string", ErrDecode, c)
}
