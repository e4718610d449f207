package pipeline

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/value"
)

// Row is one entry as seen by a summary column.
type Row struct {
	Entry Entry

	// ShortID is the entry's input id shortened to the minimal unique
	// prefix across the journal.
	ShortID string
}

// Column renders one cell of a summary table.
type Column struct {
	Name string
	Cell func(r Row) string
}

// IDColumn shows the short input id.
var IDColumn = Column{Name: "ID", Cell: func(r Row) string { return r.ShortID }}

// StatusColumn shows "success" or "error".
var StatusColumn = Column{Name: "Status", Cell: func(r Row) string { return string(r.Entry.Status()) }}

// SeqColumn shows the entry position.
var SeqColumn = Column{Name: "Seq", Cell: func(r Row) string { return fmt.Sprint(r.Entry.Metadata().Seq) }}

// DurationColumn shows how long the processor took.
var DurationColumn = Column{Name: "Duration", Cell: func(r Row) string { return r.Entry.Metadata().Duration.String() }}

// ErrorTypeColumn shows the error type of a failure entry, blank for
// successes.
var ErrorTypeColumn = Column{Name: "Error", Cell: func(r Row) string {
	if err := r.Entry.Err(); err != nil {
		return err.Type
	}
	return ""
}}

// DefaultColumns returns ID, Status, Seq and Duration.
func DefaultColumns() []Column {
	return []Column{IDColumn, StatusColumn, SeqColumn, DurationColumn}
}

// FieldColumn shows a top-level field of a success entry's output, blank
// for failures and for outputs without the field.
func FieldColumn(name, field string) Column {
	return Column{
		Name: name,
		Cell: func(r Row) string {
			out, ok := r.Entry.Output()
			if !ok {
				return ""
			}
			obj, ok := out.(value.Object)
			if !ok {
				return ""
			}
			v, ok := obj[field]
			if !ok {
				return ""
			}
			if s, ok := v.(value.String); ok {
				return string(s)
			}
			data, err := value.MarshalCanonical(v)
			if err != nil {
				return ""
			}
			return string(data)
		},
	}
}

// DefaultMetrics reports whether the entry completed.
func DefaultMetrics(e Entry) map[string]float64 {
	if e.Succeeded() {
		return map[string]float64{"complete": 1}
	}
	return map[string]float64{"complete": 0}
}

// Table is a rendered summary: a header and one row of cells per entry.
type Table struct {
	Header []string
	Rows   [][]string
}

// Aggregate is the summary of a whole journal.
type Aggregate struct {
	Entries   int
	Succeeded int
	Failed    int

	// Metrics sums every per-entry metric over the journal.
	Metrics map[string]float64
}

// MetricNames returns the aggregated metric names in sorted order.
func (a Aggregate) MetricNames() []string {
	return slices.Sorted(maps.Keys(a.Metrics))
}

// Summarize renders the spec's columns for every entry and aggregates the
// spec's metrics.
func Summarize(s Spec, j *Journal) (Table, Aggregate, error) {
	short, err := ShortIDs(j)
	if err != nil {
		return Table{}, Aggregate{}, err
	}

	cols := s.SummaryColumns()
	table := Table{Header: make([]string, len(cols))}
	for i, c := range cols {
		table.Header[i] = c.Name
	}

	agg := Aggregate{Metrics: map[string]float64{}}
	for _, e := range j.All() {
		row := Row{Entry: e, ShortID: short(e.Input().ID)}
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = c.Cell(row)
		}
		table.Rows = append(table.Rows, cells)

		agg.Entries++
		if e.Succeeded() {
			agg.Succeeded++
		} else {
			agg.Failed++
		}
		for k, v := range s.EntryMetrics(e) {
			agg.Metrics[k] += v
		}
	}
	return table, agg, nil
}

// ShortIDs returns the short form of every input id in the journal: the
// shortest prefix, at least journal.MinShortIDLength long, that is unique
// across the journal's distinct inputs.
func ShortIDs(j *Journal) (func(journal.ID) string, error) {
	ids := make([]journal.ID, 0, j.Len())
	seen := make(map[journal.ID]bool, j.Len())
	for _, e := range j.All() {
		if id := e.Input().ID; !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return journal.ShortIDs(ids)
}
