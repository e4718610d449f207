package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/pipeline"
	"github.com/roach88/pipejournal/internal/value"
)

// Scenario defines a pipeline conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pipeline is the registered pipeline to run.
	Pipeline string `yaml:"pipeline"`

	// Config overrides the pipeline's default configuration.
	Config map[string]any `yaml:"config,omitempty"`

	// Concurrency bounds in-flight processor calls. Zero means sequential.
	Concurrency int `yaml:"concurrency,omitempty"`

	// Inputs are inline documents. Each needs a string "id".
	Inputs []map[string]any `yaml:"inputs"`

	// Expect maps input ids to their expected outcome.
	Expect map[string]ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the journal as a whole.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ExpectClause specifies the expected outcome of one input.
type ExpectClause struct {
	// Status is "success" or "error".
	Status string `yaml:"status"`

	// Output is a subset match against a success entry's output.
	Output map[string]any `yaml:"output,omitempty"`

	// ErrorContains must be a substring of a failure entry's message.
	ErrorContains string `yaml:"error_contains,omitempty"`

	// ErrorType must equal a failure entry's error type.
	ErrorType string `yaml:"error_type,omitempty"`
}

// Assertion validates the journal as a whole.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Status filters entry_count. Empty counts every entry.
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of entries (entry_count).
	Count int `yaml:"count,omitempty"`

	// IDs is the expected relative order of input ids (entry_order).
	IDs []string `yaml:"ids,omitempty"`

	// Expect is a subset match against the stored summary (stored).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertEntryCount = "entry_count"
	AssertEntryOrder = "entry_order"
	AssertStored     = "stored"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Documents converts the inline inputs into pipeline documents.
func (s *Scenario) Documents() ([]pipeline.Document, error) {
	docs := make([]pipeline.Document, len(s.Inputs))
	for i, in := range s.Inputs {
		v, err := value.FromAny(in)
		if err != nil {
			return nil, fmt.Errorf("inputs[%d]: %w", i, err)
		}
		fields := v.(value.Object)
		id, ok := fields["id"].(value.String)
		if !ok || id == "" {
			return nil, fmt.Errorf("inputs[%d]: id must be a non-empty string", i)
		}
		delete(fields, "id")
		docs[i] = pipeline.NewDocument(journal.ID(id), fields)
	}
	return docs, nil
}

// ConfigValue converts Config into a value object.
func (s *Scenario) ConfigValue() (value.Object, error) {
	if len(s.Config) == 0 {
		return value.Object{}, nil
	}
	v, err := value.FromAny(s.Config)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return v.(value.Object), nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Pipeline == "" {
		return fmt.Errorf("pipeline is required")
	}
	if len(s.Inputs) == 0 {
		return fmt.Errorf("inputs list is required and must be non-empty")
	}
	if s.Concurrency < 0 {
		return fmt.Errorf("concurrency must be non-negative")
	}

	ids := make([]string, 0, len(s.Inputs))
	for i, in := range s.Inputs {
		id, ok := in["id"].(string)
		if !ok || id == "" {
			return fmt.Errorf("inputs[%d]: id must be a non-empty string", i)
		}
		ids = append(ids, id)
	}

	for id, clause := range s.Expect {
		if !slices.Contains(ids, id) {
			return fmt.Errorf("expect[%s]: no input with this id", id)
		}
		switch journal.Status(clause.Status) {
		case journal.StatusSuccess:
			if clause.ErrorContains != "" || clause.ErrorType != "" {
				return fmt.Errorf("expect[%s]: error fields require status error", id)
			}
		case journal.StatusFailure:
			if clause.Output != nil {
				return fmt.Errorf("expect[%s]: output requires status success", id)
			}
		default:
			return fmt.Errorf("expect[%s]: status must be success or error, got %q", id, clause.Status)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEntryCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for entry_count", index)
		}
		if a.Status != "" && a.Status != string(journal.StatusSuccess) && a.Status != string(journal.StatusFailure) {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	case AssertEntryOrder:
		if len(a.IDs) == 0 {
			return fmt.Errorf("assertions[%d]: ids list is required for entry_order", index)
		}
	case AssertStored:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
