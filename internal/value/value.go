package value

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"time"
	"unicode/utf16"
)

// Value is a sealed interface representing a literal payload.
// Only the types in this package implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents SQL NULL.
type Null struct{}

func (Null) value() {}

// String represents a text literal.
type String string

func (String) value() {}

// Int represents an integer literal.
// All integer kinds are widened to int64.
type Int int64

func (Int) value() {}

// Float represents a floating point literal.
// NaN and infinities are rejected by FromGo.
type Float float64

func (Float) value() {}

// Bool represents a boolean literal.
type Bool bool

func (Bool) value() {}

// Time represents a timestamp literal.
type Time time.Time

func (Time) value() {}

// Bytes represents a binary literal.
type Bytes []byte

func (Bytes) value() {}

// Array is an ordered list of values, used by snapshot documents.
type Array []Value

func (Array) value() {}

// Object maps string keys to values, used by snapshot documents.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) value() {}

// UnsupportedTypeError reports a host value with no literal representation.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported literal type: %s", e.Type)
}

// FromGo converts a host value to a Value.
//
// Supported: nil, string, bool, every integer kind, float32/float64,
// time.Time, []byte, and values that already implement Value. Unsigned values
// larger than math.MaxInt64 are rejected.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint64:
		return fromUint(val)
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case time.Time:
		return Time(val), nil
	case []byte:
		return Bytes(slices.Clone(val)), nil
	}

	// Named types over a supported kind (type Status string) are accepted too.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fromUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return fromFloat(rv.Float())
	}
	return nil, &UnsupportedTypeError{Type: fmt.Sprintf("%T", v)}
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("unsigned value %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

func fromFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v has no SQL literal", f)
	}
	return Float(f), nil
}

// Param converts a Value to the Go type handed to database/sql drivers.
// Array and Object cannot be bound and return an error.
func Param(v Value) (any, error) {
	switch val := v.(type) {
	case Null:
		return nil, nil
	case String:
		return string(val), nil
	case Int:
		return int64(val), nil
	case Float:
		return float64(val), nil
	case Bool:
		return bool(val), nil
	case Time:
		return time.Time(val), nil
	case Bytes:
		return []byte(val), nil
	case Array:
		return nil, fmt.Errorf("Array cannot be used as SQL parameter directly")
	case Object:
		return nil, fmt.Errorf("Object cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported Value type for SQL parameter: %T", v)
	}
}

// Kind returns a short lowercase name for the value's type.
func Kind(v Value) string {
	switch v.(type) {
	case Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Time:
		return "time"
	case Bytes:
		return "bytes"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings orders by UTF-8 bytes, which differs for astral characters.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
