package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/pipeline"
	"github.com/roach88/pipejournal/internal/store"
	"github.com/roach88/pipejournal/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes the journal's outcomes to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Entries  []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nJournal:\n")
	for _, line := range e.Entries {
		fmt.Fprintf(&buf, "  %s\n", line)
	}
	return buf.String()
}

// describeEntries renders one line per entry for AssertionError.
func describeEntries(j *pipeline.Journal) []string {
	lines := make([]string, 0, j.Len())
	for _, e := range j.All() {
		lines = append(lines, fmt.Sprintf("[%d] %s %s", e.Metadata().Seq, e.Input().ID, e.Status()))
	}
	return lines
}

// assertEntryCount checks the number of entries, optionally of one status.
func assertEntryCount(j *pipeline.Journal, assertion Assertion) error {
	count := 0
	for _, e := range j.All() {
		if assertion.Status == "" || string(e.Status()) == assertion.Status {
			count++
		}
	}

	if count != assertion.Count {
		what := "entries"
		if assertion.Status != "" {
			what = assertion.Status + " entries"
		}
		return &AssertionError{
			Type:     AssertEntryCount,
			Expected: fmt.Sprintf("%d %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Entries:  describeEntries(j),
		}
	}
	return nil
}

// assertEntryOrder checks that the listed input ids appear in order.
// Other entries may appear in between.
func assertEntryOrder(j *pipeline.Journal, assertion Assertion) error {
	positions := make(map[string]int)
	for i, e := range j.All() {
		id := string(e.Input().ID)
		if positions[id] == 0 {
			positions[id] = i + 1
		}
	}

	for _, id := range assertion.IDs {
		if positions[id] == 0 {
			return &AssertionError{
				Type:     AssertEntryOrder,
				Expected: fmt.Sprintf("all ids present: %v", assertion.IDs),
				Actual:   fmt.Sprintf("missing id: %s", id),
				Entries:  describeEntries(j),
			}
		}
	}

	for i := 1; i < len(assertion.IDs); i++ {
		prev, curr := assertion.IDs[i-1], assertion.IDs[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEntryOrder,
				Expected: fmt.Sprintf("ids in order: %v", assertion.IDs),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Entries: describeEntries(j),
			}
		}
	}
	return nil
}

// assertStored saves the journal, loads it back and compares digests and
// the stored summary.
func assertStored(ctx context.Context, st *store.Store, result *Result, assertion Assertion) error {
	j := result.Journal
	if err := store.Save(ctx, st, j); err != nil {
		return fmt.Errorf("stored: save: %w", err)
	}

	loaded, err := store.Load[value.Object, pipeline.Document, value.Value](ctx, st, j.ID())
	if err != nil {
		return fmt.Errorf("stored: load: %w", err)
	}
	digest, err := journal.Digest(loaded)
	if err != nil {
		return fmt.Errorf("stored: digest: %w", err)
	}
	if digest != result.Digest {
		return &AssertionError{
			Type:     AssertStored,
			Expected: "digest " + result.Digest,
			Actual:   "digest " + digest,
			Entries:  describeEntries(j),
		}
	}

	if len(assertion.Expect) == 0 {
		return nil
	}

	summary, err := st.GetSummary(ctx, j.ID())
	if err != nil {
		return fmt.Errorf("stored: summary: %w", err)
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	actual, err := value.Unmarshal(data)
	if err != nil {
		return err
	}
	want, err := value.FromAny(assertion.Expect)
	if err != nil {
		return fmt.Errorf("stored: invalid expect: %w", err)
	}
	if !matchSubset(actual, want) {
		return &AssertionError{
			Type:     AssertStored,
			Expected: "summary containing " + formatValue(want),
			Actual:   formatValue(actual),
			Entries:  describeEntries(j),
		}
	}
	return nil
}

// matchSubset reports whether actual contains expected: objects match key
// by key with extra keys in actual ignored; everything else must be equal.
func matchSubset(actual, expected value.Value) bool {
	wantObj, ok := expected.(value.Object)
	if !ok {
		return valuesEqual(actual, expected)
	}
	gotObj, ok := actual.(value.Object)
	if !ok {
		return false
	}
	for key, want := range wantObj {
		got, exists := gotObj[key]
		if !exists || !matchSubset(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values, treating Int and Float as numbers so
// that YAML's "2" matches JSON's 2.0.
func valuesEqual(actual, expected value.Value) bool {
	switch a := actual.(type) {
	case value.Int:
		if f, ok := expected.(value.Float); ok {
			return float64(a) == float64(f)
		}
	case value.Float:
		if i, ok := expected.(value.Int); ok {
			return float64(a) == float64(i)
		}
	}
	return value.Equal(actual, expected)
}

func formatValue(v value.Value) string {
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// AssertionContext provides context for evaluating assertions.
// Store is used by stored assertions; a fresh in-memory store is opened
// when it is nil.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	ctx := context.Background()
	if actx != nil && actx.Ctx != nil {
		ctx = actx.Ctx
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEntryCount:
			err = assertEntryCount(result.Journal, assertion)
		case AssertEntryOrder:
			err = assertEntryOrder(result.Journal, assertion)
		case AssertStored:
			err = withStore(actx, func(st *store.Store) error {
				return assertStored(ctx, st, result, assertion)
			})
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func withStore(actx *AssertionContext, fn func(*store.Store) error) error {
	if actx != nil && actx.Store != nil {
		return fn(actx.Store)
	}
	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	return fn(st)
}
