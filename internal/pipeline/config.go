package pipeline

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/pipejournal/internal/value"
)

// MergeConfig deep-merges overrides into a copy of defaults. Nested objects
// merge key by key; any other override value replaces the default. Neither
// input is modified.
func MergeConfig(defaults, overrides value.Object) value.Object {
	out := defaults.Clone()
	if out == nil {
		out = value.Object{}
	}
	for k, v := range overrides {
		if dst, ok := out[k].(value.Object); ok {
			if src, ok := v.(value.Object); ok {
				out[k] = MergeConfig(dst, src)
				continue
			}
		}
		out[k] = value.Clone(v)
	}
	return out
}

// Lookup returns the value at a dotted path such as "model.name".
func Lookup(cfg value.Object, path string) (value.Value, bool) {
	var cur value.Value = cfg
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(value.Object)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath stores v at a dotted path, creating intermediate objects and
// replacing non-object intermediates.
func SetPath(cfg value.Object, path string, v value.Value) {
	keys := strings.Split(path, ".")
	cur := cfg
	for _, key := range keys[:len(keys)-1] {
		next, ok := cur[key].(value.Object)
		if !ok {
			next = value.Object{}
			cur[key] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = v
}

// ParseOverrides parses "path=value" assignments, as given on a command
// line, into an override object. A value that parses as JSON is used as
// such; anything else is taken as a string.
func ParseOverrides(assignments []string) (value.Object, error) {
	out := value.Object{}
	for _, a := range assignments {
		path, raw, ok := strings.Cut(a, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid override %q: want path=value", a)
		}
		for _, key := range strings.Split(path, ".") {
			if key == "" {
				return nil, fmt.Errorf("invalid override %q: empty path segment", a)
			}
		}
		SetPath(out, path, parseScalar(raw))
	}
	return out, nil
}

func parseScalar(raw string) value.Value {
	if json.Valid([]byte(raw)) {
		if v, err := value.Unmarshal([]byte(raw)); err == nil {
			return v
		}
	}
	return value.String(raw)
}

// MissingFields lists the required paths absent or null in cfg, each with
// its prompt message, in path order.
func MissingFields(cfg value.Object, required map[string]string) []string {
	var missing []string
	for _, path := range slices.Sorted(maps.Keys(required)) {
		v, ok := Lookup(cfg, path)
		if _, isNull := v.(value.Null); !ok || isNull {
			missing = append(missing, fmt.Sprintf("%s: %s", path, required[path]))
		}
	}
	return missing
}
