package journal

import (
	"time"
)

type doc struct {
	Ident
	Text string `json:"text,omitempty"`
}

type result struct {
	V int `json:"v"`
}

type config struct {
	Scale int `json:"scale"`
}

var baseTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func meta(seq int64) EntryMetadata {
	return EntryMetadata{
		Seq:       seq,
		AttemptID: ID("attempt-" + string(rune('0'+seq))),
		Timestamp: baseTime.Add(time.Duration(seq) * 100 * time.Millisecond),
		Duration:  time.Duration(seq) * time.Millisecond,
	}
}

func newDoc(id string) doc {
	return doc{Ident: Ident{ID: ID(id)}}
}

// buildScenario builds the two-entry journal: "a" succeeds with {v:1}, "b"
// fails with "boom".
func buildScenario() *Journal[config, doc, result] {
	b := NewBuilder[config, doc, result]("journal-0001", RunMetadata{
		Timestamp: baseTime,
		Pipeline:  "demo",
	}, config{Scale: 2})
	if err := b.Append(Succeeded(meta(1), newDoc("a"), result{V: 1})); err != nil {
		panic(err)
	}
	if err := b.Append(Failed[doc, result](meta(2), newDoc("b"), NewError("boom"))); err != nil {
		panic(err)
	}
	return b.Finish(baseTime.Add(time.Second))
}
