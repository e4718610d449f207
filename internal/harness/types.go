package harness

import "github.com/roach88/pipejournal/internal/pipeline"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Journal is the journal the scenario produced.
	Journal *pipeline.Journal `json:"journal"`

	// Digest is the journal's content digest.
	Digest string `json:"digest"`
}

// NewResult creates a new passing result.
func NewResult(j *pipeline.Journal) *Result {
	return &Result{
		Pass:    true,
		Errors:  []string{},
		Journal: j,
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
