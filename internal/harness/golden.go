package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/pipeline"
	"github.com/roach88/pipejournal/internal/value"
)

// Snapshot is the golden form of a scenario's journal. Per-entry timing
// and attempt ids are left out so snapshots are stable under concurrency.
type Snapshot struct {
	Scenario  string
	Pipeline  string
	JournalID journal.ID
	Config    value.Object
	Digest    string
	Entries   value.Array
}

// NewSnapshot captures a result.
func NewSnapshot(scenarioName string, result *Result) (*Snapshot, error) {
	j := result.Journal
	entries := make(value.Array, 0, j.Len())
	for _, e := range j.All() {
		v, err := journal.EntryValue(e)
		if err != nil {
			return nil, err
		}
		entries = append(entries, v)
	}
	return &Snapshot{
		Scenario:  scenarioName,
		Pipeline:  j.Metadata().Pipeline,
		JournalID: j.ID(),
		Config:    j.Config(),
		Digest:    result.Digest,
		Entries:   entries,
	}, nil
}

// Canonical returns the snapshot as canonical JSON.
func (s *Snapshot) Canonical() ([]byte, error) {
	return value.MarshalCanonical(value.Object{
		"scenario":   value.String(s.Scenario),
		"pipeline":   value.String(s.Pipeline),
		"journal_id": value.String(s.JournalID),
		"config":     s.Config,
		"digest":     value.String(s.Digest),
		"entries":    s.Entries,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, reg *pipeline.Registry, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), reg, scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := NewSnapshot(scenarioName, result)
	if err != nil {
		return err
	}
	data, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
