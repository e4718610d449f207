package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface. Only Null, String, Int, Float, Bool, Array and
// Object implement it.
type Value interface {
	value()
}

// Null represents a JSON null.
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string value.
type String string

func (String) value() {}

// Int is an integer value. JSON numbers without a fraction or exponent decode
// to Int when they fit in int64.
type Int int64

func (Int) value() {}

// Float is a finite floating point value.
type Float float64

func (Float) value() {}

// MarshalJSON implements json.Marshaler for Float using ES6 number formatting.
func (f Float) MarshalJSON() ([]byte, error) {
	s, err := formatFloat(float64(f))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Array is an ordered sequence of values.
type Array []Value

func (Array) value() {}

// Object maps string keys to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) value() {}

// Pair is a key/value pair for ordered Object construction.
type Pair struct {
	Key   string
	Value Value
}

// P is shorthand for Pair.
// Example: ObjectOf(P("id", String("a")), P("count", Int(2)))
func P(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// ObjectOf builds an Object from pairs. Later pairs overwrite earlier keys.
func ObjectOf(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// ArrayOf builds an Array from values.
func ArrayOf(vals ...Value) Array {
	return Array(vals)
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's native string order compares UTF-8 bytes, which differs for
// characters outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// Get returns the value stored under key, or nil.
func (obj Object) Get(key string) Value {
	if obj == nil {
		return nil
	}
	return obj[key]
}

// Clone returns a deep copy of the object.
func (obj Object) Clone() Object {
	if obj == nil {
		return nil
	}
	return Clone(obj).(Object)
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Clone returns a deep copy of v. Scalars are returned as is.
func Clone(v Value) Value {
	switch val := v.(type) {
	case Array:
		if val == nil {
			return Array(nil)
		}
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Object:
		if val == nil {
			return Object(nil)
		}
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether a and b are structurally equal.
// Int(1) and Float(1) are not equal.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, elem := range av {
			other, found := bv[k]
			if !found || !Equal(elem, other) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON implements json.Marshaler for Object with sorted keys.
// Strings are written as given, without HTML escaping or normalization.
// Use MarshalCanonical for digests.
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalString(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := Marshal(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for Array.
func (arr Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := Marshal(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Marshal encodes v as JSON. A nil Value encodes as null.
func Marshal(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return marshalString(string(val))
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Float:
		return val.MarshalJSON()
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		return val.MarshalJSON()
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown value type: %T", v)
	}
}

// marshalString encodes s as a JSON string without HTML escaping.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	o, ok := v.(Object)
	if !ok {
		return fmt.Errorf("expected JSON object, got %s", Kind(v))
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	a, ok := v.(Array)
	if !ok {
		return fmt.Errorf("expected JSON array, got %s", Kind(v))
	}
	*arr = a
	return nil
}

// Kind returns a short name for the dynamic type of v.
func Kind(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
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
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
