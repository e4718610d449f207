package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/pipejournal/internal/journal"
)

// verifyPragma reports whether pragma name reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if got != expected {
		return fmt.Errorf("%s = %q, expected %q", name, got, expected)
	}
	return nil
}

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type doc struct {
	journal.Ident
	Text string `json:"text"`
}

type result struct {
	Length int `json:"length"`
}

type config struct {
	Mode string `json:"mode"`
}

var baseTime = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

// createTestJournal builds a journal whose entries fail for inputs whose
// text is empty.
func createTestJournal(t *testing.T, id, pipeline string, started time.Time, texts ...string) *journal.Journal[config, doc, result] {
	t.Helper()
	b := journal.NewBuilder[config, doc, result](journal.ID(id), journal.RunMetadata{
		Timestamp: started,
		Pipeline:  pipeline,
		Labels:    map[string]string{"env": "test"},
	}, config{Mode: "count"})

	for i, text := range texts {
		seq := int64(i + 1)
		meta := journal.EntryMetadata{
			Seq:       seq,
			AttemptID: journal.ID(id + "-attempt-" + string(rune('0'+seq))),
			Timestamp: started.Add(time.Duration(seq) * time.Millisecond),
			Duration:  time.Duration(seq) * time.Microsecond,
		}
		in := doc{Ident: journal.Ident{ID: journal.ChildID(journal.ID(id), int(seq))}, Text: text}

		var e journal.Entry[doc, result]
		if text == "" {
			e = journal.Failed[doc, result](meta, in, journal.NewError("empty text").WithType("validation"))
		} else {
			e = journal.Succeeded(meta, in, result{Length: len(text)})
		}
		if err := b.Append(e); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}
	return b.Finish(started.Add(time.Second))
}
