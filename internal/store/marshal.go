package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/pipejournal/internal/value"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// storedJSON converts v to JSON TEXT for storage. Object keys are sorted
// and strings are kept byte for byte: no HTML escaping and no Unicode
// normalization, so a loaded journal holds exactly what was recorded.
// Custom MarshalJSON methods are honored.
func storedJSON(v any) (string, error) {
	val, ok := v.(value.Value)
	if !ok {
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		if val, err = value.Unmarshal(data); err != nil {
			return "", err
		}
	}
	out, err := value.Marshal(val)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
