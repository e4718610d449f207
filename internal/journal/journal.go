package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/roach88/pipejournal/internal/value"
)

// Journal is the immutable record of one run.
//
// INVARIANTS:
//   - entries are in insertion order, which is input-stream order
//   - entries[i].Metadata().Seq == i+1
//   - nothing mutates a Journal after Builder.Finish returns it
type Journal[C any, I Identified, O any] struct {
	id      ID
	meta    RunMetadata
	config  C
	entries []Entry[I, O]
}

// ID returns the journal identifier.
func (j *Journal[C, I, O]) ID() ID {
	return j.id
}

// Metadata returns a copy of the run metadata.
func (j *Journal[C, I, O]) Metadata() RunMetadata {
	return j.meta.clone()
}

// Config returns the configuration every processor in the run was bound to.
func (j *Journal[C, I, O]) Config() C {
	return j.config
}

// Len returns the number of entries.
func (j *Journal[C, I, O]) Len() int {
	return len(j.entries)
}

// Entry returns the i-th entry (0-based). Panics if i is out of range.
func (j *Journal[C, I, O]) Entry(i int) Entry[I, O] {
	return j.entries[i]
}

// Entries returns a copy of the entry slice.
func (j *Journal[C, I, O]) Entries() []Entry[I, O] {
	out := make([]Entry[I, O], len(j.entries))
	copy(out, j.entries)
	return out
}

// All iterates entries in insertion order with their 0-based index.
func (j *Journal[C, I, O]) All() iter.Seq2[int, Entry[I, O]] {
	return func(yield func(int, Entry[I, O]) bool) {
		for i, e := range j.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Counts returns the number of success and failure entries.
func (j *Journal[C, I, O]) Counts() (succeeded, failed int) {
	for _, e := range j.entries {
		if e.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// ErrFrozen is returned when appending to a finished Builder.
var ErrFrozen = errors.New("journal: builder already finished")

// Builder assembles a journal during a run. It is owned by exactly one
// runner invocation and is not safe for concurrent use.
type Builder[C any, I Identified, O any] struct {
	j        *Journal[C, I, O]
	finished bool
}

// NewBuilder starts an empty journal.
func NewBuilder[C any, I Identified, O any](id ID, meta RunMetadata, config C) *Builder[C, I, O] {
	return &Builder[C, I, O]{
		j: &Journal[C, I, O]{
			id:      id,
			meta:    meta.clone(),
			config:  config,
			entries: []Entry[I, O]{},
		},
	}
}

// Append adds an entry. The entry's Seq must be the next position.
func (b *Builder[C, I, O]) Append(e Entry[I, O]) error {
	if b.finished {
		return ErrFrozen
	}
	if want := int64(len(b.j.entries) + 1); e.meta.Seq != want {
		return fmt.Errorf("journal: entry seq %d out of order, want %d", e.meta.Seq, want)
	}
	b.j.entries = append(b.j.entries, e)
	return nil
}

// Len returns the number of entries appended so far.
func (b *Builder[C, I, O]) Len() int {
	return len(b.j.entries)
}

// Finish freezes the builder and returns the journal. Calling Finish again
// returns the same journal.
func (b *Builder[C, I, O]) Finish(finished time.Time) *Journal[C, I, O] {
	if !b.finished {
		b.j.meta.Finished = finished
		b.finished = true
	}
	return b.j
}

// Restore rebuilds a journal from persisted parts, validating entry order.
func Restore[C any, I Identified, O any](id ID, meta RunMetadata, config C, entries []Entry[I, O]) (*Journal[C, I, O], error) {
	if id == "" {
		return nil, fmt.Errorf("restore journal: %w", ErrMissingIdentifier)
	}
	b := NewBuilder[C, I, O](id, meta, config)
	for _, e := range entries {
		if err := b.Append(e); err != nil {
			return nil, fmt.Errorf("restore journal %s: %w", id, err)
		}
	}
	b.finished = true
	return b.j, nil
}

type journalJSON[C any, I Identified, O any] struct {
	ID       ID            `json:"id"`
	Metadata RunMetadata   `json:"metadata"`
	Config   C             `json:"config"`
	Entries  []Entry[I, O] `json:"entries"`
}

// MarshalJSON implements json.Marshaler.
func (j *Journal[C, I, O]) MarshalJSON() ([]byte, error) {
	return json.Marshal(journalJSON[C, I, O]{
		ID:       j.id,
		Metadata: j.meta,
		Config:   j.config,
		Entries:  j.entries,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *Journal[C, I, O]) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       ID              `json:"id"`
		Metadata RunMetadata     `json:"metadata"`
		Config   json.RawMessage `json:"config"`
		Entries  []Entry[I, O]   `json:"entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var config C
	if len(raw.Config) > 0 {
		if err := decodeJSON(raw.Config, &config); err != nil {
			return fmt.Errorf("unmarshal journal config: %w", err)
		}
	}
	restored, err := Restore(raw.ID, raw.Metadata, config, raw.Entries)
	if err != nil {
		return err
	}
	*j = *restored
	return nil
}

// Digest returns a content digest of the journal: its id, a sub-digest of
// its config and the outcome of every entry (status, seq, input and output
// or error). Run and attempt metadata (timestamps, durations, attempt ids)
// are excluded, so two runs over the same inputs with deterministic
// processors and the same journal id share a digest.
func Digest[C any, I Identified, O any](j *Journal[C, I, O]) (string, error) {
	cfg, err := toValue(j.config)
	if err != nil {
		return "", fmt.Errorf("digest config: %w", err)
	}
	cfgDigest, err := value.Digest(value.DomainConfig, cfg)
	if err != nil {
		return "", err
	}

	outcomes := make(value.Array, 0, len(j.entries))
	for _, e := range j.entries {
		v, err := EntryValue(e)
		if err != nil {
			return "", fmt.Errorf("digest entry %d: %w", e.meta.Seq, err)
		}
		outcomes = append(outcomes, v)
	}
	return value.Digest(value.DomainJournal, value.Object{
		"id":      value.String(j.id),
		"config":  value.String(cfgDigest),
		"entries": outcomes,
	})
}

// EntryValue converts the outcome of an entry into a value.Object with keys
// status, seq, input and output or error.
func EntryValue[I Identified, O any](e Entry[I, O]) (value.Object, error) {
	input, err := toValue(e.input)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	obj := value.Object{
		"status": value.String(e.Status()),
		"seq":    value.Int(e.meta.Seq),
		"input":  input,
	}
	if e.err != nil {
		errVal, err := toValue(*e.err)
		if err != nil {
			return nil, fmt.Errorf("error: %w", err)
		}
		obj["error"] = errVal
		return obj, nil
	}
	output, err := toValue(e.output)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	obj["output"] = output
	return obj, nil
}

func toValue(v any) (value.Value, error) {
	if vv, ok := v.(value.Value); ok {
		return vv, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return value.Unmarshal(data)
}
