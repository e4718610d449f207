package cueproc

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/pipeline"
	"github.com/roach88/pipejournal/internal/runner"
	"github.com/roach88/pipejournal/internal/value"
)

// Error types recorded on failure entries.
const (
	SchemaErrorType     = "cue_schema"
	ValidationErrorType = "cue_validation"
)

// schemaFilename names the compiled source in error positions.
const schemaFilename = "schema.cue"

// Config is the decoded pipeline configuration.
type Config struct {
	Schema   string
	Path     string
	Concrete bool
}

// ParseConfig reads a Config from a merged pipeline configuration.
func ParseConfig(cfg value.Object) (Config, error) {
	var c Config
	switch s := cfg.Get("schema").(type) {
	case value.String:
		c.Schema = string(s)
	case nil, value.Null:
	default:
		return Config{}, fmt.Errorf("schema must be a string, got %s", value.Kind(s))
	}

	switch p := cfg.Get("path").(type) {
	case value.String:
		c.Path = string(p)
	case nil, value.Null:
	default:
		return Config{}, fmt.Errorf("path must be a string, got %s", value.Kind(p))
	}

	c.Concrete = true
	switch b := cfg.Get("concrete").(type) {
	case value.Bool:
		c.Concrete = bool(b)
	case nil, value.Null:
	default:
		return Config{}, fmt.Errorf("concrete must be a bool, got %s", value.Kind(b))
	}
	return c, nil
}

// Schema is a compiled CUE schema.
//
// Thread-safety: a cue.Context is not safe for concurrent use, so every
// operation on a Schema holds its lock.
type Schema struct {
	mu       sync.Mutex
	ctx      *cue.Context
	val      cue.Value
	concrete bool
}

// Compile compiles c.Schema and selects c.Path within it.
func Compile(c Config) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(c.Schema, cue.Filename(schemaFilename))
	if err := v.Err(); err != nil {
		return nil, newCUEError(SchemaErrorType, "compile schema", err)
	}
	if c.Path != "" {
		v = v.LookupPath(cue.ParsePath(c.Path))
		if !v.Exists() {
			return nil, journal.Errorf("schema path %q not found", c.Path).WithType(SchemaErrorType)
		}
		if err := v.Err(); err != nil {
			return nil, newCUEError(SchemaErrorType, "schema path "+c.Path, err)
		}
	}
	return &Schema{ctx: ctx, val: v, concrete: c.Concrete}, nil
}

// Apply unifies fields with the schema. With concrete checking on, the
// result is the unified value, defaults included; otherwise the validated
// fields are returned unchanged.
func (s *Schema) Apply(fields value.Object) (value.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.ctx.Encode(value.ToAny(fields))
	if err := data.Err(); err != nil {
		return nil, newCUEError(ValidationErrorType, "encode document", err)
	}

	unified := s.val.Unify(data)
	if err := unified.Validate(cue.Concrete(s.concrete)); err != nil {
		return nil, newCUEError(ValidationErrorType, "document does not match schema", err)
	}
	if !s.concrete {
		return fields.Clone(), nil
	}

	out, err := unified.MarshalJSON()
	if err != nil {
		return nil, newCUEError(ValidationErrorType, "export result", err)
	}
	return value.Unmarshal(out)
}

// Factory compiles the schema once and returns a processor applying it. A
// schema that does not compile fails every document with the compile error.
func Factory(cfg value.Object) runner.Processor[pipeline.Document, value.Value] {
	c, err := ParseConfig(cfg)
	var schema *Schema
	if err == nil {
		schema, err = Compile(c)
	}

	return runner.ProcessorFunc[pipeline.Document, value.Value](func(_ context.Context, doc pipeline.Document) (value.Value, error) {
		if err != nil {
			return nil, err
		}
		return schema.Apply(doc.Fields)
	})
}

// Validate rejects configurations whose schema does not compile.
func Validate(cfg value.Object) error {
	c, err := ParseConfig(cfg)
	if err != nil {
		return err
	}
	_, err = Compile(c)
	return err
}

// PipelineSpec returns the registry entry for the "cue" pipeline.
func PipelineSpec() pipeline.Spec {
	return pipeline.Spec{
		Name:        "cue",
		Description: "Unify each document with a CUE schema",
		DefaultConfig: value.Object{
			"schema":   value.Null{},
			"path":     value.String(""),
			"concrete": value.Bool(true),
		},
		Required: map[string]string{
			"schema": "CUE source every document is unified with",
		},
		Validate: Validate,
		Factory:  Factory,
		Columns: []pipeline.Column{
			pipeline.IDColumn,
			pipeline.StatusColumn,
			pipeline.ErrorTypeColumn,
			pipeline.DurationColumn,
		},
		Metrics: func(e pipeline.Entry) map[string]float64 {
			if e.Succeeded() {
				return map[string]float64{"valid": 1, "invalid": 0}
			}
			return map[string]float64{"valid": 0, "invalid": 1}
		},
	}
}

// newCUEError converts a CUE error into a journal error. The message is the
// first CUE error; details list every error with its position.
func newCUEError(typ, what string, err error) *journal.Error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return journal.Errorf("%s: %v", what, err).WithType(typ)
	}

	details := make(value.Array, 0, len(errs))
	for _, e := range errs {
		entry := value.Object{"message": value.String(e.Error())}
		if positions := errors.Positions(e); len(positions) > 0 && positions[0].IsValid() {
			pos := positions[0]
			entry["position"] = value.String(fmt.Sprintf("%s:%d:%d", pos.Filename(), pos.Line(), pos.Column()))
		}
		details = append(details, entry)
	}
	return journal.Errorf("%s: %s", what, errs[0].Error()).
		WithType(typ).
		WithDetails(details)
}
