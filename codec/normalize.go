package codec

import (
	"bytes"
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// StructTag is the struct tag consulted when converting structs, both by
// ValueOf and by Value.Decode. The syntax is `pack:"name,omitempty"`.
const StructTag = "pack"

var (
	timeType  = reflect.TypeOf(time.Time{})
	valueType = reflect.TypeOf(Value{})
)

func processStructTag(tagStr string) (string, bool) {
	tags := strings.Split(tagStr, ",")
	name := tags[0] // when tagStr is "", tags[0] will also be ""
	omitempty := len(tags) > 1 && tags[1] == "omitempty"
	return name, omitempty
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface().(time.Time).IsZero()
		}
	}
	return false
}

// ValueOf converts a Go value into a Value. Supported inputs are nil, booleans,
// integers, floats, strings, byte slices, time.Time, slices and arrays,
// string-keyed maps, structs (exported fields, honoring the pack tag),
// pointers to any of those and Value itself.
func ValueOf(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Nil(), nil
	case Value:
		return x, nil
	case *Value:
		if x == nil {
			return Nil(), nil
		}
		return *x, nil
	case time.Time:
		return Time(x), nil
	case []byte:
		return Bytes(x), nil
	case encoding.BinaryMarshaler:
		data, err := x.MarshalBinary()
		if err != nil {
			return Value{}, err
		}
		return Bytes(data), nil
	}
	return valueOf(reflect.ValueOf(v))
}

// MustValueOf is like ValueOf but panics on error.
func MustValueOf(v interface{}) Value {
	value, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return value
}

func valueOf(rv reflect.Value) (Value, error) {
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Nil(), nil
		}
		rv = rv.Elem()
	}

	switch rv.Type() {
	case timeType:
		return Time(rv.Interface().(time.Time)), nil
	case valueType:
		return rv.Interface().(Value), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice, reflect.Array:
		return sliceValueOf(rv)
	case reflect.Map:
		return mapValueOf(rv)
	case reflect.Struct:
		return structValueOf(rv)
	}
	return Value{}, fmt.Errorf("%w: unsupported type %s", ErrUnsupported, rv.Type())
}

func sliceValueOf(rv reflect.Value) (Value, error) {
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		if rv.Kind() == reflect.Slice {
			return Bytes(rv.Bytes()), nil
		}
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return Bytes(b), nil
	}

	list := make([]Value, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := valueOf(rv.Index(i))
		if err != nil {
			return Value{}, err
		}
		list = append(list, item)
	}
	return Value{kind: KindList, list: list}, nil
}

func mapValueOf(rv reflect.Value) (Value, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return Value{}, fmt.Errorf("%w: map key type must be a string, got %s", ErrUnsupported, rv.Type().Key())
	}

	fields := make(map[string]Value, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		item, err := valueOf(iter.Value())
		if err != nil {
			return Value{}, err
		}
		fields[iter.Key().String()] = item
	}
	return Value{kind: KindMap, fields: fields}, nil
}

func structValueOf(rv reflect.Value) (Value, error) {
	fields := make(map[string]Value)
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		fieldType := rt.Field(i)
		if fieldType.PkgPath != "" {
			continue
		}

		fieldName := fieldType.Name
		tag := fieldType.Tag.Get(StructTag)
		if tag == "-" {
			continue
		}

		name, omitempty := processStructTag(tag)
		if name != "" {
			fieldName = name
		}

		fieldValue := rv.Field(i)
		if omitempty && isEmptyValue(fieldValue) {
			continue
		}

		item, err := valueOf(fieldValue)
		if err != nil {
			return Value{}, err
		}

		if fieldType.Anonymous && name == "" && item.kind == KindMap {
			for k, f := range item.fields {
				fields[k] = f
			}
			continue
		}
		fields[fieldName] = item
	}
	return Value{kind: KindMap, fields: fields}, nil
}

// Decode stores v into the Go value pointed to by out, following the msgpack
// conversion rules and the pack struct tag.
func (v Value) Decode(out interface{}) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}

	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)

	dec.Reset(bytes.NewReader(data))
	dec.SetCustomStructTag(StructTag)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
