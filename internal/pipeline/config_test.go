package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipejournal/internal/value"
)

func TestMergeConfig_DeepMergesObjects(t *testing.T) {
	defaults := value.Object{
		"model": value.Object{"name": value.String("small"), "temperature": value.Float(0.5)},
		"limit": value.Int(10),
	}
	overrides := value.Object{
		"model": value.Object{"name": value.String("large")},
		"extra": value.Bool(true),
	}

	got := MergeConfig(defaults, overrides)

	assert.Equal(t, value.Object{
		"model": value.Object{"name": value.String("large"), "temperature": value.Float(0.5)},
		"limit": value.Int(10),
		"extra": value.Bool(true),
	}, got)
	assert.Equal(t, value.String("small"), defaults["model"].(value.Object)["name"], "defaults must not be modified")
}

func TestMergeConfig_NonObjectOverrideReplaces(t *testing.T) {
	defaults := value.Object{"model": value.Object{"name": value.String("small")}}
	got := MergeConfig(defaults, value.Object{"model": value.String("flat")})
	assert.Equal(t, value.Object{"model": value.String("flat")}, got)
}

func TestMergeConfig_NilDefaults(t *testing.T) {
	got := MergeConfig(nil, value.Object{"a": value.Int(1)})
	assert.Equal(t, value.Object{"a": value.Int(1)}, got)
	assert.Equal(t, value.Object{}, MergeConfig(nil, nil))
}

func TestLookup(t *testing.T) {
	cfg := value.Object{"a": value.Object{"b": value.Int(2)}, "c": value.String("x")}

	tests := []struct {
		path string
		want value.Value
		ok   bool
	}{
		{"a.b", value.Int(2), true},
		{"c", value.String("x"), true},
		{"a.missing", nil, false},
		{"c.b", nil, false},
		{"missing", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Lookup(cfg, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOverrides(t *testing.T) {
	got, err := ParseOverrides([]string{
		"model.name=large",
		"model.temperature=0.25",
		"limit=3",
		"strict=true",
		"tags=[\"a\",\"b\"]",
		"note=hello world",
	})
	require.NoError(t, err)

	assert.Equal(t, value.Object{
		"model":  value.Object{"name": value.String("large"), "temperature": value.Float(0.25)},
		"limit":  value.Int(3),
		"strict": value.Bool(true),
		"tags":   value.Array{value.String("a"), value.String("b")},
		"note":   value.String("hello world"),
	}, got)
}

func TestParseOverrides_Invalid(t *testing.T) {
	for _, in := range []string{"noequals", "=value", "a..b=1", ".a=1"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseOverrides([]string{in})
			assert.Error(t, err)
		})
	}
}

func TestMissingFields(t *testing.T) {
	required := map[string]string{
		"model.name": "Which model should be used?",
		"limit":      "How many documents?",
		"source":     "Where do documents come from?",
	}
	cfg := value.Object{
		"model":  value.Object{"name": value.String("large")},
		"source": value.Null{},
	}

	assert.Equal(t, []string{
		"limit: How many documents?",
		"source: Where do documents come from?",
	}, MissingFields(cfg, required))

	assert.Empty(t, MissingFields(cfg, nil))
}
