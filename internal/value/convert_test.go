package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  Value
	}{
		{"42", Int(42)},
		{"-7", Int(-7)},
		{"1.5", Float(1.5)},
		{"1e3", Float(1000)},
		{"9223372036854775808", Float(9223372036854775808)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Unmarshal([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalNested(t *testing.T) {
	got, err := Unmarshal([]byte(`{"a":[1,"two",null,{"b":false}]}`))
	require.NoError(t, err)

	want := Object{
		"a": Array{Int(1), String("two"), Null{}, Object{"b": Bool(false)}},
	}
	assert.True(t, Equal(want, got), "got %#v", got)
}

func TestUnmarshalRejectsTrailingData(t *testing.T) {
	_, err := Unmarshal([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)
}

func TestFromAny(t *testing.T) {
	type point struct {
		X int    `json:"x"`
		Y int    `json:"y"`
		L string `json:"label,omitempty"`
	}

	tests := []struct {
		name  string
		input any
		want  Value
	}{
		{"nil", nil, Null{}},
		{"string", "s", String("s")},
		{"int", 3, Int(3)},
		{"uint8", uint8(200), Int(200)},
		{"float", 2.5, Float(2.5)},
		{"bool", true, Bool(true)},
		{"json number", json.Number("12"), Int(12)},
		{"slice", []any{1, "a"}, Array{Int(1), String("a")}},
		{"map", map[string]any{"k": false}, Object{"k": Bool(false)}},
		{"struct", point{X: 1, Y: 2}, Object{"x": Int(1), "y": Int(2)}},
		{"nil pointer", (*point)(nil), Null{}},
		{"value passthrough", String("v"), String("v")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.input)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "got %#v", got)
		})
	}
}

func TestFromAnyRejectsNonFinite(t *testing.T) {
	_, err := FromAny(math.NaN())
	require.Error(t, err)

	_, err = FromAny(map[string]any{"x": math.Inf(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `object["x"]`)
}

func TestFromAnyRejectsLargeUnsigned(t *testing.T) {
	_, err := FromAny(uint64(math.MaxUint64))
	require.Error(t, err)
}

func TestToAny(t *testing.T) {
	v := Object{
		"n":    Null{},
		"i":    Int(1),
		"f":    Float(1.5),
		"list": Array{String("x")},
	}

	got := ToAny(v)
	assert.Equal(t, map[string]any{
		"n":    nil,
		"i":    int64(1),
		"f":    1.5,
		"list": []any{"x"},
	}, got)
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{1, "1"},
		{-1.5, "-1.5"},
		{0.1, "0.1"},
		{1e21, "1e+21"},
		{1e20, "100000000000000000000"},
		{1e-7, "1e-7"},
		{0.000001, "0.000001"},
		{123456789.125, "123456789.125"},
	}

	for _, tt := range tests {
		got, err := formatFloat(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "formatFloat(%v)", tt.in)
	}
}
