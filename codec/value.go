// Package codec converts structured values to and from the bytes stored by
// packstore: MessagePack for encoding, a general purpose compressor on top.
package codec

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindTime
	KindList
	KindMap
)

var kindNames = [...]string{
	KindNil:    "nil",
	KindBool:   "bool",
	KindInt:    "int",
	KindUint:   "uint",
	KindFloat:  "float",
	KindString: "string",
	KindBytes:  "bytes",
	KindTime:   "time",
	KindList:   "list",
	KindMap:    "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a structured value: a scalar, an ordered list of values or a
// string-keyed map of values. The zero Value is nil.
//
// Values are treated as immutable. Accessors returning lists, maps or byte
// slices return copies.
type Value struct {
	kind   Kind
	num    uint64
	str    string
	t      time.Time
	list   []Value
	fields map[string]Value
}

func Nil() Value { return Value{} }

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

func Int(i int64) Value { return Value{kind: KindInt, num: uint64(i)} }

// Uint returns an Int value when u fits in an int64, so that every number has a
// single representation.
func Uint(u uint64) Value {
	if u <= math.MaxInt64 {
		return Int(int64(u))
	}
	return Value{kind: KindUint, num: u}
}

func Float(f float64) Value { return Value{kind: KindFloat, num: math.Float64bits(f)} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Bytes(b []byte) Value { return Value{kind: KindBytes, str: string(b)} }

// Time values are kept in UTC with the monotonic reading stripped.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t.UTC()} }

// List returns a list holding a copy of items.
func List(items ...Value) Value {
	list := make([]Value, len(items))
	copy(list, items)
	return Value{kind: KindList, list: list}
}

// EmptyList returns a new empty list. It is the value read back for keys that
// are not stored.
func EmptyList() Value { return Value{kind: KindList, list: make([]Value, 0)} }

// Map returns a map holding a copy of fields.
func Map(fields map[string]Value) Value {
	m := make(map[string]Value, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	return Value{kind: KindMap, fields: m}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool { return v.kind == KindNil }

func (v Value) AsBool() bool { return v.kind == KindBool && v.num == 1 }

// AsInt returns the integer held by v. Floats are truncated, other kinds yield 0.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInt, KindUint:
		return int64(v.num)
	case KindFloat:
		return int64(v.AsFloat())
	}
	return 0
}

func (v Value) AsUint() uint64 {
	switch v.kind {
	case KindInt, KindUint:
		return v.num
	case KindFloat:
		return uint64(v.AsFloat())
	}
	return 0
}

func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindFloat:
		return math.Float64frombits(v.num)
	case KindInt:
		return float64(int64(v.num))
	case KindUint:
		return float64(v.num)
	}
	return 0
}

func (v Value) AsString() string {
	if v.kind == KindString || v.kind == KindBytes {
		return v.str
	}
	return ""
}

func (v Value) AsBytes() []byte {
	if v.kind == KindString || v.kind == KindBytes {
		return []byte(v.str)
	}
	return nil
}

func (v Value) AsTime() time.Time {
	if v.kind == KindTime {
		return v.t
	}
	return time.Time{}
}

// AsList returns a copy of the items of a list, or nil for any other kind.
func (v Value) AsList() []Value {
	if v.kind != KindList {
		return nil
	}
	list := make([]Value, len(v.list))
	copy(list, v.list)
	return list
}

// AsMap returns a copy of the fields of a map, or nil for any other kind.
func (v Value) AsMap() map[string]Value {
	if v.kind != KindMap {
		return nil
	}
	m := make(map[string]Value, len(v.fields))
	for k, f := range v.fields {
		m[k] = f
	}
	return m
}

// Len returns the number of items of a list or map, the length of a string or
// byte string, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.fields)
	case KindString, KindBytes:
		return len(v.str)
	}
	return 0
}

// Index returns the i-th item of a list.
func (v Value) Index(i int) Value {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Value{}
	}
	return v.list[i]
}

// Field returns the field stored under key and whether it was present.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	f, ok := v.fields[key]
	return f, ok
}

// Keys returns the sorted keys of a map.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Append returns a new list made of the items of v followed by item.
// v is left untouched. It panics if v is not a list.
func (v Value) Append(item Value) Value {
	if v.kind != KindList {
		panic("codec: Append on " + v.kind.String())
	}
	list := make([]Value, len(v.list), len(v.list)+1)
	copy(list, v.list)
	return Value{kind: KindList, list: append(list, item)}
}

// Equal reports whether v and o hold the same value. Times are compared with
// time.Time.Equal, floats by bit pattern.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool, KindInt, KindUint, KindFloat:
		return v.num == o.num
	case KindString, KindBytes:
		return v.str == o.str
	case KindTime:
		return v.t.Equal(o.t)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for k, f := range v.fields {
			of, ok := o.fields[k]
			if !ok || !f.Equal(of) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts v into plain Go values: nil, bool, int64, uint64, float64,
// string, []byte, time.Time, []interface{} and map[string]interface{}.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNil:
		return nil
	case KindBool:
		return v.AsBool()
	case KindInt:
		return int64(v.num)
	case KindUint:
		return v.num
	case KindFloat:
		return v.AsFloat()
	case KindString:
		return v.str
	case KindBytes:
		return []byte(v.str)
	case KindTime:
		return v.t
	case KindList:
		s := make([]interface{}, len(v.list))
		for i, item := range v.list {
			s[i] = item.Interface()
		}
		return s
	case KindMap:
		m := make(map[string]interface{}, len(v.fields))
		for k, f := range v.fields {
			m[k] = f.Interface()
		}
		return m
	}
	return nil
}

// String renders v in a compact, JSON-like form.
func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case KindNil:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.AsBool()))
	case KindInt:
		sb.WriteString(strconv.FormatInt(int64(v.num), 10))
	case KindUint:
		sb.WriteString(strconv.FormatUint(v.num, 10))
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(v.AsFloat(), 'g', -1, 64))
	case KindString:
		sb.WriteString(strconv.Quote(v.str))
	case KindBytes:
		fmt.Fprintf(sb, "b%q", v.str)
	case KindTime:
		sb.WriteString(v.t.Format(time.RFC3339Nano))
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.format(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			v.fields[k].format(sb)
		}
		sb.WriteByte('}')
	}
}

// Compare orders values first by kind, then by content. It is used to sort
// values deterministically, not to mirror the byte order of encoded keys.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindBool, KindUint:
		return compareUint(a.num, b.num)
	case KindInt:
		return compareInt(int64(a.num), int64(b.num))
	case KindFloat:
		fa, fb := a.AsFloat(), b.AsFloat()
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case KindString, KindBytes:
		return strings.Compare(a.str, b.str)
	case KindTime:
		return a.t.Compare(b.t)
	case KindList:
		for i := 0; i < len(a.list) && i < len(b.list); i++ {
			if c := Compare(a.list[i], b.list[i]); c != 0 {
				return c
			}
		}
		return compareInt(int64(len(a.list)), int64(len(b.list)))
	case KindMap:
		ka, kb := a.Keys(), b.Keys()
		for i := 0; i < len(ka) && i < len(kb); i++ {
			if c := strings.Compare(ka[i], kb[i]); c != 0 {
				return c
			}
			if c := Compare(a.fields[ka[i]], b.fields[kb[i]]); c != 0 {
				return c
			}
		}
		return compareInt(int64(len(ka)), int64(len(kb)))
	}
	return 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
