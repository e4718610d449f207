package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/pipejournal/internal/value"
)

// Status is the outcome tag of an entry.
type Status string

const (
	// StatusSuccess tags an entry carrying an output.
	StatusSuccess Status = "success"
	// StatusFailure tags an entry carrying an Error.
	StatusFailure Status = "error"
)

// Entry records one processing attempt. It is exactly one of:
//   - success: metadata, input and output
//   - failure: metadata, input and error
//
// The fields are unexported so an entry can only be built through Succeeded
// or Failed and never changes afterwards. Whether Err is nil is the sole
// signal of outcome.
type Entry[I Identified, O any] struct {
	meta   EntryMetadata
	input  I
	output O
	err    *Error
}

// Succeeded builds a success entry.
func Succeeded[I Identified, O any](meta EntryMetadata, input I, output O) Entry[I, O] {
	return Entry[I, O]{meta: meta, input: input, output: output}
}

// Failed builds a failure entry. A nil err is replaced with a generic Error
// so the entry can never end up with neither outcome.
func Failed[I Identified, O any](meta EntryMetadata, input I, err *Error) Entry[I, O] {
	if err == nil {
		err = NewError("unknown error")
	}
	return Entry[I, O]{meta: meta, input: input, err: err}
}

// Status returns StatusFailure if the entry carries an error, StatusSuccess
// otherwise.
func (e Entry[I, O]) Status() Status {
	if e.err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// Succeeded reports whether the entry is a success.
func (e Entry[I, O]) Succeeded() bool {
	return e.err == nil
}

// Metadata returns the attempt metadata.
func (e Entry[I, O]) Metadata() EntryMetadata {
	return e.meta
}

// Input returns the input the attempt was made with.
func (e Entry[I, O]) Input() I {
	return e.input
}

// Output returns the produced output. ok is false for failure entries, in
// which case the returned value is the zero O.
func (e Entry[I, O]) Output() (out O, ok bool) {
	if e.err != nil {
		return out, false
	}
	return e.output, true
}

// Err returns the recorded error, or nil for success entries.
func (e Entry[I, O]) Err() *Error {
	return e.err
}

// Match calls exactly one of onSuccess or onFailure.
func Match[I Identified, O, R any](e Entry[I, O], onSuccess func(I, O) R, onFailure func(I, *Error) R) R {
	if e.err != nil {
		return onFailure(e.input, e.err)
	}
	return onSuccess(e.input, e.output)
}

type entryJSON struct {
	Status   Status          `json:"status"`
	Metadata EntryMetadata   `json:"metadata"`
	Input    json.RawMessage `json:"input"`
	Output   json.RawMessage `json:"output,omitempty"`
	Error    *Error          `json:"error,omitempty"`
}

// MarshalJSON encodes the entry with a "status" discriminator and exactly
// one of "output" or "error".
func (e Entry[I, O]) MarshalJSON() ([]byte, error) {
	input, err := json.Marshal(e.input)
	if err != nil {
		return nil, fmt.Errorf("marshal entry input: %w", err)
	}

	out := entryJSON{
		Status:   e.Status(),
		Metadata: e.meta,
		Input:    input,
	}
	if e.err != nil {
		out.Error = e.err
	} else {
		output, err := json.Marshal(e.output)
		if err != nil {
			return nil, fmt.Errorf("marshal entry output: %w", err)
		}
		out.Output = output
	}
	return json.Marshal(out)
}

// ErrInvalidEntry reports an encoded entry that is not exactly one of
// success or failure.
var ErrInvalidEntry = errors.New("journal: entry must have exactly one of output or error")

// UnmarshalJSON decodes an entry, rejecting encodings that carry both an
// output and an error, or neither.
func (e *Entry[I, O]) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rawOutput, hasOutput := raw["output"]
	rawError, hasError := raw["error"]
	if hasError && bytes.Equal(bytes.TrimSpace(rawError), []byte("null")) {
		hasError = false
	}
	if hasOutput == hasError {
		return ErrInvalidEntry
	}

	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	want := StatusSuccess
	if hasError {
		want = StatusFailure
	}
	if in.Status != "" && in.Status != want {
		return fmt.Errorf("%w: status %q contradicts payload", ErrInvalidEntry, in.Status)
	}

	var input I
	if err := decodeJSON(in.Input, &input); err != nil {
		return fmt.Errorf("unmarshal entry input: %w", err)
	}

	if hasError {
		*e = Failed[I, O](in.Metadata, input, in.Error)
		return nil
	}
	var output O
	if err := decodeJSON(rawOutput, &output); err != nil {
		return fmt.Errorf("unmarshal entry output: %w", err)
	}
	*e = Succeeded(in.Metadata, input, output)
	return nil
}

// decodeJSON is json.Unmarshal with support for targets of the sealed
// value.Value interface type, which encoding/json cannot construct.
func decodeJSON[T any](data []byte, dst *T) error {
	if vp, ok := any(dst).(*value.Value); ok {
		v, err := value.Unmarshal(data)
		if err != nil {
			return err
		}
		*vp = v
		return nil
	}
	return json.Unmarshal(data, dst)
}
