package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pipejournal/internal/value"
)

// RunFile describes one pipeline run.
type RunFile struct {
	// Pipeline is the registered pipeline name.
	Pipeline string `yaml:"pipeline"`

	// Config overrides the pipeline's default configuration.
	Config map[string]any `yaml:"config,omitempty"`

	// Inputs is a JSON Lines file of documents. Relative paths resolve
	// against the run file's directory.
	Inputs string `yaml:"inputs"`

	// Labels are copied into the journal's run metadata.
	Labels map[string]string `yaml:"labels,omitempty"`

	// Concurrency bounds in-flight processor calls. Zero means sequential.
	Concurrency int `yaml:"concurrency,omitempty"`

	// IDs selects the journal and attempt id scheme: "uuid" or "ulid".
	IDs string `yaml:"ids,omitempty"`
}

// LoadRunFile reads and parses a run file, resolving Inputs relative to
// the file.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}

	rf, err := ParseRunFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if !filepath.IsAbs(rf.Inputs) {
		rf.Inputs = filepath.Join(filepath.Dir(path), rf.Inputs)
	}
	return rf, nil
}

// ParseRunFile parses run file YAML. Unknown fields are rejected.
func ParseRunFile(data []byte) (*RunFile, error) {
	var rf RunFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		return nil, fmt.Errorf("parse run file: %w", err)
	}
	if err := rf.validate(); err != nil {
		return nil, err
	}
	return &rf, nil
}

func (rf *RunFile) validate() error {
	var errs []error
	if rf.Pipeline == "" {
		errs = append(errs, errors.New("pipeline is required"))
	}
	if rf.Inputs == "" {
		errs = append(errs, errors.New("inputs is required"))
	}
	if rf.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 0, got %d", rf.Concurrency))
	}
	switch rf.IDs {
	case "", "uuid", "uuidv7", "ulid":
	default:
		errs = append(errs, fmt.Errorf("unknown id scheme %q", rf.IDs))
	}
	return errors.Join(errs...)
}

// ConfigValue converts Config into a value object.
func (rf *RunFile) ConfigValue() (value.Object, error) {
	if len(rf.Config) == 0 {
		return value.Object{}, nil
	}
	v, err := value.FromAny(rf.Config)
	if err != nil {
		return nil, fmt.Errorf("run file config: %w", err)
	}
	obj, ok := v.(value.Object)
	if !ok {
		return nil, fmt.Errorf("run file config: expected object, got %s", value.Kind(v))
	}
	return obj, nil
}
