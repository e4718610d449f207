package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/runner"
	"github.com/roach88/pipejournal/internal/value"
)

// Factory is the processor factory shape shared by registered pipelines.
type Factory = runner.Factory[value.Object, Document, value.Value]

// Journal is the journal shape produced by registered pipelines.
type Journal = journal.Journal[value.Object, Document, value.Value]

// Entry is the entry shape produced by registered pipelines.
type Entry = journal.Entry[Document, value.Value]

// ErrUnknownPipeline is returned by Registry.Get for unregistered names.
var ErrUnknownPipeline = errors.New("unknown pipeline")

// Spec describes a runnable pipeline.
type Spec struct {
	// Name is the registry key, e.g. "cue".
	Name string

	// Description is a one-line summary shown by listings.
	Description string

	// DefaultConfig is merged under run-file and command-line overrides.
	DefaultConfig value.Object

	// Required maps dotted config paths that must be set after merging to
	// the message shown when they are missing.
	Required map[string]string

	// Validate checks a merged configuration before the run starts. Optional.
	Validate func(cfg value.Object) error

	// Factory binds the merged configuration once per run.
	Factory Factory

	// Columns are the summary table columns. Defaults to DefaultColumns.
	Columns []Column

	// Metrics extracts per-entry metrics for summaries. Defaults to
	// DefaultMetrics.
	Metrics func(e Entry) map[string]float64
}

// Config merges overrides over the default configuration and checks the
// result.
func (s Spec) Config(overrides value.Object) (value.Object, error) {
	cfg := MergeConfig(s.DefaultConfig, overrides)
	if missing := MissingFields(cfg, s.Required); len(missing) > 0 {
		return nil, fmt.Errorf("pipeline %s: missing config:\n  %s", s.Name, strings.Join(missing, "\n  "))
	}
	if s.Validate != nil {
		if err := s.Validate(cfg); err != nil {
			return nil, fmt.Errorf("pipeline %s: invalid config: %w", s.Name, err)
		}
	}
	return cfg, nil
}

// SummaryColumns returns the spec's columns or DefaultColumns.
func (s Spec) SummaryColumns() []Column {
	if len(s.Columns) == 0 {
		return DefaultColumns()
	}
	return s.Columns
}

// EntryMetrics returns the metrics of one entry.
func (s Spec) EntryMetrics(e Entry) map[string]float64 {
	if s.Metrics == nil {
		return DefaultMetrics(e)
	}
	return s.Metrics(e)
}

// Registry holds pipeline specs by name.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds a spec. Names must be unique and non-empty and the spec
// must have a factory.
func (r *Registry) Register(s Spec) error {
	if s.Name == "" {
		return errors.New("register pipeline: name is required")
	}
	if s.Factory == nil {
		return fmt.Errorf("register pipeline %s: factory is required", s.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[s.Name]; exists {
		return fmt.Errorf("register pipeline %s: already registered", s.Name)
	}
	r.specs[s.Name] = s
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(s Spec) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get returns the spec registered under name.
func (r *Registry) Get(name string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w %q", ErrUnknownPipeline, name)
	}
	return s, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
