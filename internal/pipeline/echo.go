package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/runner"
	"github.com/roach88/pipejournal/internal/value"
)

// MissingFieldErrorType tags failures for documents lacking a projected field.
const MissingFieldErrorType = "missing_field"

// EchoSpec returns the identity pipeline. With a "fields" list in its
// config it projects each document onto those fields and fails documents
// that lack any of them.
func EchoSpec() Spec {
	return Spec{
		Name:          "echo",
		Description:   "Echo each document, optionally projected onto config.fields",
		DefaultConfig: value.Object{"fields": value.Array{}},
		Validate:      validateEcho,
		Factory:       echoFactory,
	}
}

func validateEcho(cfg value.Object) error {
	fields, ok := cfg.Get("fields").(value.Array)
	if !ok {
		return errors.New("fields must be a list")
	}
	for i, f := range fields {
		if _, ok := f.(value.String); !ok {
			return fmt.Errorf("fields[%d] must be a string, got %s", i, value.Kind(f))
		}
	}
	return nil
}

func echoFactory(cfg value.Object) runner.Processor[Document, value.Value] {
	fields, _ := cfg.Get("fields").(value.Array)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if s, ok := f.(value.String); ok {
			names = append(names, string(s))
		}
	}

	return runner.ProcessorFunc[Document, value.Value](func(_ context.Context, doc Document) (value.Value, error) {
		if len(names) == 0 {
			return doc.Fields.Clone(), nil
		}
		out := make(value.Object, len(names))
		var missing []value.Value
		for _, name := range names {
			v, ok := doc.Fields[name]
			if !ok {
				missing = append(missing, value.String(name))
				continue
			}
			out[name] = value.Clone(v)
		}
		if len(missing) > 0 {
			return nil, journal.Errorf("document %s is missing %d field(s)", doc.ID, len(missing)).
				WithType(MissingFieldErrorType).
				WithDetails(value.ObjectOf(value.P("missing", value.Array(missing))))
		}
		return out, nil
	})
}
