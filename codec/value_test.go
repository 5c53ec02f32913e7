package codec

import (
	"math"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

func randomScalar(f *gofakeit.Faker) Value {
	switch f.IntRange(0, 7) {
	case 0:
		return Nil()
	case 1:
		return Bool(f.Bool())
	case 2:
		return Int(f.Int64())
	case 3:
		return Uint(f.Uint64())
	case 4:
		return Float(f.Float64())
	case 5:
		return String(f.Sentence(f.IntRange(0, 8)))
	case 6:
		return Bytes([]byte(f.Word()))
	default:
		return Time(f.Date())
	}
}

func randomValue(f *gofakeit.Faker, depth int) Value {
	if depth <= 0 {
		return randomScalar(f)
	}

	switch f.IntRange(0, 2) {
	case 0:
		n := f.IntRange(0, 5)
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, randomValue(f, depth-1))
		}
		return List(items...)
	case 1:
		n := f.IntRange(0, 5)
		fields := make(map[string]Value, n)
		for i := 0; i < n; i++ {
			fields[f.Word()] = randomValue(f, depth-1)
		}
		return Map(fields)
	}
	return randomScalar(f)
}

func TestUintIsCanonical(t *testing.T) {
	require.Equal(t, KindInt, Uint(42).Kind())
	require.Equal(t, KindInt, Uint(math.MaxInt64).Kind())
	require.Equal(t, KindUint, Uint(math.MaxUint64).Kind())
	require.True(t, Uint(7).Equal(Int(7)))
}

func TestEmptyListIsFresh(t *testing.T) {
	a := EmptyList()
	b := EmptyList()
	require.Equal(t, KindList, a.Kind())
	require.Equal(t, 0, a.Len())

	a = a.Append(Int(1))
	require.Equal(t, 1, a.Len())
	require.Equal(t, 0, b.Len())
	require.Equal(t, 0, EmptyList().Len())
}

func TestAppendDoesNotAlias(t *testing.T) {
	base := List(Int(1), Int(2))
	x := base.Append(Int(3))
	y := base.Append(Int(4))

	require.Equal(t, 2, base.Len())
	require.True(t, x.Equal(List(Int(1), Int(2), Int(3))))
	require.True(t, y.Equal(List(Int(1), Int(2), Int(4))))
	require.Panics(t, func() { Int(1).Append(Int(2)) })
}

func TestAccessorsReturnCopies(t *testing.T) {
	list := List(String("a"))
	items := list.AsList()
	items[0] = String("b")
	require.Equal(t, "a", list.Index(0).AsString())

	m := Map(map[string]Value{"k": Int(1)})
	fields := m.AsMap()
	fields["k"] = Int(2)
	f, ok := m.Field("k")
	require.True(t, ok)
	require.Equal(t, int64(1), f.AsInt())

	b := Bytes([]byte("xy"))
	raw := b.AsBytes()
	raw[0] = 'z'
	require.Equal(t, "xy", string(b.AsBytes()))
}

func TestTimeIsUTC(t *testing.T) {
	loc := time.FixedZone("test", 3600)
	now := time.Date(2023, 5, 1, 10, 0, 0, 123, loc)

	v := Time(now)
	require.Equal(t, time.UTC, v.AsTime().Location())
	require.True(t, now.Equal(v.AsTime()))
}

func TestValueString(t *testing.T) {
	v := Map(map[string]Value{
		"b": List(Int(1), Bool(true), Nil()),
		"a": String("x"),
	})
	require.Equal(t, `{"a": "x", "b": [1, true, null]}`, v.String())
}

func TestCompare(t *testing.T) {
	require.Equal(t, -1, Compare(Int(1), Int(2)))
	require.Equal(t, 1, Compare(String("b"), String("a")))
	require.Equal(t, 0, Compare(List(Int(1)), List(Int(1))))
	require.Equal(t, -1, Compare(List(Int(1)), List(Int(1), Int(0))))
	require.Equal(t, -1, Compare(Nil(), Bool(false)))
}

type Base struct {
	Tag string `pack:"tag"`
}

type record struct {
	Base
	Name    string            `pack:"name"`
	Age     int               `pack:"age,omitempty"`
	Scores  []float64         `pack:"scores"`
	Labels  map[string]string `pack:"labels"`
	Ignored string            `pack:"-"`
	private int
}

func TestValueOfStruct(t *testing.T) {
	r := record{
		Base:    Base{Tag: "t1"},
		Name:    "alice",
		Scores:  []float64{1.5, 2},
		Labels:  map[string]string{"x": "y"},
		Ignored: "nope",
		private: 3,
	}

	v, err := ValueOf(&r)
	require.NoError(t, err)
	require.Equal(t, KindMap, v.Kind())
	require.Equal(t, []string{"labels", "name", "scores", "tag"}, v.Keys())

	name, _ := v.Field("name")
	require.Equal(t, "alice", name.AsString())

	_, ok := v.Field("age")
	require.False(t, ok)

	var out record
	require.NoError(t, v.Decode(&out))
	require.Equal(t, r.Name, out.Name)
	require.Equal(t, r.Tag, out.Tag)
	require.Equal(t, r.Scores, out.Scores)
	require.Equal(t, r.Labels, out.Labels)
	require.Empty(t, out.Ignored)
}

func TestValueOfScalars(t *testing.T) {
	cases := []struct {
		in   interface{}
		kind Kind
	}{
		{nil, KindNil},
		{true, KindBool},
		{int8(-3), KindInt},
		{uint32(3), KindInt},
		{uint64(math.MaxUint64), KindUint},
		{float32(1.5), KindFloat},
		{"s", KindString},
		{[]byte("b"), KindBytes},
		{[2]byte{1, 2}, KindBytes},
		{time.Now(), KindTime},
		{[]interface{}{1, "a"}, KindList},
		{map[string]int{"a": 1}, KindMap},
		{Int(1), KindInt},
	}

	for _, c := range cases {
		v, err := ValueOf(c.in)
		require.NoError(t, err)
		require.Equal(t, c.kind, v.Kind(), "%#v", c.in)
	}
}

func TestValueOfUnsupported(t *testing.T) {
	_, err := ValueOf(map[int]string{1: "a"})
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = ValueOf(make(chan int))
	require.ErrorIs(t, err, ErrUnsupported)

	require.Panics(t, func() { MustValueOf(func() {}) })
}

func TestInterface(t *testing.T) {
	v := MustValueOf(map[string]interface{}{
		"n": 1,
		"l": []string{"a"},
	})

	require.Equal(t, map[string]interface{}{
		"n": int64(1),
		"l": []interface{}{"a"},
	}, v.Interface())
}
