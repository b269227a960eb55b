package value

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status string

func TestFromGo(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input any
		want  Value
	}{
		{"nil", nil, Null{}},
		{"string", "hello", String("hello")},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int8", int8(-3), Int(-3)},
		{"int32", int32(7), Int(7)},
		{"uint16", uint16(9), Int(9)},
		{"uint64", uint64(10), Int(10)},
		{"float64", 2.5, Float(2.5)},
		{"float32", float32(0.5), Float(0.5)},
		{"time", when, Time(when)},
		{"bytes", []byte{1, 2}, Bytes{1, 2}},
		{"existing value", Int(5), Int(5)},
		{"named string", status("open"), String("open")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGoRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"struct", struct{}{}},
		{"slice", []int{1}},
		{"pointer", new(int)},
		{"map", map[string]int{}},
		{"NaN", math.NaN()},
		{"infinity", math.Inf(1)},
		{"uint overflow", uint64(math.MaxUint64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromGo(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestFromGoUnsupportedTypeError(t *testing.T) {
	_, err := FromGo(struct{ A int }{})
	var ute *UnsupportedTypeError
	require.ErrorAs(t, err, &ute)
	assert.Contains(t, ute.Type, "struct")
}

func TestFromGoCopiesBytes(t *testing.T) {
	raw := []byte("abc")
	v, err := FromGo(raw)
	require.NoError(t, err)

	raw[0] = 'z'
	assert.Equal(t, Bytes("abc"), v, "later writes to the source slice must not leak into the literal")
}

func TestParam(t *testing.T) {
	when := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input Value
		want  any
	}{
		{"null", Null{}, nil},
		{"string", String("x"), "x"},
		{"int", Int(3), int64(3)},
		{"float", Float(1.5), 1.5},
		{"bool", Bool(false), false},
		{"time", Time(when), when},
		{"bytes", Bytes{0xff}, []byte{0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Param(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("array rejected", func(t *testing.T) {
		_, err := Param(Array{Int(1)})
		assert.Error(t, err)
	})
	t.Run("object rejected", func(t *testing.T) {
		_, err := Param(Object{})
		assert.Error(t, err)
	})
}

func TestKind(t *testing.T) {
	assert.Equal(t, "null", Kind(Null{}))
	assert.Equal(t, "string", Kind(String("")))
	assert.Equal(t, "int", Kind(Int(0)))
	assert.Equal(t, "float", Kind(Float(0)))
	assert.Equal(t, "time", Kind(Time{}))
	assert.Equal(t, "object", Kind(Object{}))
}

func TestSortedKeysUTF16(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...), which sorts before
	// U+FF5E in UTF-16 but after it in UTF-8.
	obj := Object{"～": Int(1), "\U0001F600": Int(2), "a": Int(3)}
	assert.Equal(t, []string{"a", "\U0001F600", "～"}, obj.SortedKeys())
}
