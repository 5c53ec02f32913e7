package codec

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/orderedcode"
)

// KeyEncoding selects how keys are turned into bytes. The storage engines order
// keys by those bytes, so the encoding decides the iteration order.
type KeyEncoding uint8

const (
	// KeyMsgpack encodes keys with MessagePack, like values. Strings of equal
	// length class sort lexicographically, numbers do not sort numerically.
	KeyMsgpack KeyEncoding = iota
	// KeyOrdered encodes keys with orderedcode: values of the same kind sort in
	// their natural order, and lists and maps sort element by element.
	KeyOrdered
)

func (e KeyEncoding) String() string {
	switch e {
	case KeyMsgpack:
		return "msgpack"
	case KeyOrdered:
		return "ordered"
	default:
		return fmt.Sprintf("keyencoding(%d)", uint8(e))
	}
}

// ParseKeyEncoding is the inverse of KeyEncoding.String.
func ParseKeyEncoding(s string) (KeyEncoding, error) {
	switch strings.ToLower(s) {
	case "msgpack", "":
		return KeyMsgpack, nil
	case "ordered":
		return KeyOrdered, nil
	}
	return 0, fmt.Errorf("%w: key encoding %q", ErrUnsupported, s)
}

// EncodeKey returns the bytes under which k is stored.
func EncodeKey(e KeyEncoding, k Value) ([]byte, error) {
	switch e {
	case KeyMsgpack:
		return Encode(k)
	case KeyOrdered:
		return orderedCode(nil, k)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, e)
}

// DecodeKey is the inverse of EncodeKey.
func DecodeKey(e KeyEncoding, data []byte) (Value, error) {
	switch e {
	case KeyMsgpack:
		return Decode(data)
	case KeyOrdered:
		v, rest, err := parseOrderedCode(string(data), 0)
		if err != nil {
			return Value{}, wrapDecodeErr(err)
		}
		if rest != "" {
			return Value{}, fmt.Errorf("%w: %d trailing bytes", ErrDecode, len(rest))
		}
		return v, nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnsupported, e)
}

func orderedCode(buf []byte, v Value) ([]byte, error) {
	buf, err := orderedcode.Append(buf, uint64(v.kind))
	if err != nil {
		return nil, err
	}

	switch v.kind {
	case KindNil:
		return buf, nil
	case KindBool, KindUint:
		return orderedcode.Append(buf, v.num)
	case KindInt:
		return orderedcode.Append(buf, int64(v.num))
	case KindFloat:
		return orderedcode.Append(buf, v.AsFloat())
	case KindString, KindBytes:
		return orderedcode.Append(buf, v.str)
	case KindTime:
		return orderedcode.Append(buf, v.t.Unix(), int64(v.t.Nanosecond()))
	case KindList:
		return orderedCodeSlice(buf, v.list)
	case KindMap:
		return orderedCodeObject(buf, v)
	}
	return nil, fmt.Errorf("%w: kind %s", ErrUnsupported, v.kind)
}

func orderedCodeSlice(buf []byte, s []Value) ([]byte, error) {
	sliceEncoding := make([]byte, 0)
	for _, item := range s {
		var err error
		sliceEncoding, err = orderedCode(sliceEncoding, item)
		if err != nil {
			return nil, err
		}
	}
	return orderedcode.Append(buf, string(sliceEncoding))
}

func orderedCodeObject(buf []byte, o Value) ([]byte, error) {
	objEncoding := make([]byte, 0)
	for _, key := range o.Keys() {
		encoded, err := orderedcode.Append(objEncoding, key)
		if err != nil {
			return nil, err
		}

		objEncoding, err = orderedCode(encoded, o.fields[key])
		if err != nil {
			return nil, err
		}
	}
	return orderedcode.Append(buf, string(objEncoding))
}

func parseOrderedCode(s string, depth int) (Value, string, error) {
	if depth > maxDepth {
		return Value{}, "", fmt.Errorf("%w: nesting deeper than %d", ErrDecode, maxDepth)
	}

	var tag uint64
	s, err := orderedcode.Parse(s, &tag)
	if err != nil {
		return Value{}, "", err
	}

	switch Kind(tag) {
	case KindNil:
		return Nil(), s, nil
	case KindBool:
		var b uint64
		s, err = orderedcode.Parse(s, &b)
		return Bool(b == 1), s, err
	case KindUint:
		var u uint64
		s, err = orderedcode.Parse(s, &u)
		return Uint(u), s, err
	case KindInt:
		var i int64
		s, err = orderedcode.Parse(s, &i)
		return Int(i), s, err
	case KindFloat:
		var f float64
		s, err = orderedcode.Parse(s, &f)
		return Float(f), s, err
	case KindString:
		var str string
		s, err = orderedcode.Parse(s, &str)
		return String(str), s, err
	case KindBytes:
		var str string
		s, err = orderedcode.Parse(s, &str)
		return Value{kind: KindBytes, str: str}, s, err
	case KindTime:
		var sec, nsec int64
		s, err = orderedcode.Parse(s, &sec, &nsec)
		return Time(time.Unix(sec, nsec)), s, err
	case KindList:
		var inner string
		if s, err = orderedcode.Parse(s, &inner); err != nil {
			return Value{}, "", err
		}
		list := make([]Value, 0)
		for inner != "" {
			var item Value
			item, inner, err = parseOrderedCode(inner, depth+1)
			if err != nil {
				return Value{}, "", err
			}
			list = append(list, item)
		}
		return Value{kind: KindList, list: list}, s, nil
	case KindMap:
		var inner string
		if s, err = orderedcode.Parse(s, &inner); err != nil {
			return Value{}, "", err
		}
		fields := make(map[string]Value)
		for inner != "" {
			var key string
			if inner, err = orderedcode.Parse(inner, &key); err != nil {
				return Value{}, "", err
			}
			var item Value
			item, inner, err = parseOrderedCode(inner, depth+1)
			if err != nil {
				return Value{}, "", err
			}
			fields[key] = item
		}
		return Value{kind: KindMap, fields: fields}, s, nil
	}
	return Value{}, "", fmt.Errorf("%w: unknown kind tag %d", ErrDecode, tag)
}
