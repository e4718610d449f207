package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/runner"
	"github.com/roach88/pipejournal/internal/value"
)

// maxLineBytes bounds a single JSON Lines record.
const maxLineBytes = 16 << 20

// Document is the generic input record of registered pipelines: an id plus
// arbitrary fields. Its JSON form is a flat object whose "id" member is the
// identifier.
type Document struct {
	ID     journal.ID
	Fields value.Object
}

// NewDocument creates a document. fields may be nil.
func NewDocument(id journal.ID, fields value.Object) Document {
	if fields == nil {
		fields = value.Object{}
	}
	return Document{ID: id, Fields: fields}
}

// Identifier implements journal.Identified.
func (d Document) Identifier() journal.ID {
	return d.ID
}

// Object returns the document as one object, "id" included.
func (d Document) Object() value.Object {
	obj := d.Fields.Clone()
	if obj == nil {
		obj = value.Object{}
	}
	obj["id"] = value.String(d.ID)
	return obj
}

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	return value.Marshal(d.Object())
}

// UnmarshalJSON implements json.Unmarshaler. A missing id leaves ID empty;
// a non-string id is an error.
func (d *Document) UnmarshalJSON(data []byte) error {
	var obj value.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	var id journal.ID
	if raw, ok := obj["id"]; ok {
		s, ok := raw.(value.String)
		if !ok {
			return fmt.Errorf("document id must be a string, got %s", value.Kind(raw))
		}
		id = journal.ID(s)
		delete(obj, "id")
	}
	*d = Document{ID: id, Fields: obj}
	return nil
}

// ReadDocuments streams documents from JSON Lines. Blank lines are skipped.
// A malformed line ends the stream with an error naming the line.
func ReadDocuments(r io.Reader) runner.Stream[Document] {
	return func(yield func(Document, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Bytes()
			if len(bytes.TrimSpace(text)) == 0 {
				continue
			}
			var d Document
			if err := json.Unmarshal(text, &d); err != nil {
				yield(Document{}, fmt.Errorf("line %d: %w", line, err))
				return
			}
			if !yield(d, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(Document{}, fmt.Errorf("read documents: %w", err))
		}
	}
}

// WriteDocuments writes documents as JSON Lines.
func WriteDocuments(w io.Writer, docs []Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("write document %s: %w", d.ID, err)
		}
	}
	return nil
}

// Chain turns the successful outputs of a journal into documents for a
// follow-on run. The document for input "x" gets id "x.1"; an object output
// becomes its fields, any other output is stored under "value". Failure
// entries are skipped.
func Chain(ctx context.Context, j *Journal) *journal.Results[Document] {
	return journal.Transform(ctx, j, func(_ context.Context, e Entry) (Document, bool, error) {
		out, ok := e.Output()
		if !ok {
			return Document{}, false, nil
		}
		fields, isObj := out.(value.Object)
		if isObj {
			fields = fields.Clone()
			delete(fields, "id")
		} else {
			fields = value.Object{"value": out}
		}
		return NewDocument(journal.ChildID(e.Input().ID, 1), fields), true, nil
	})
}
