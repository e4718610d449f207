package journal

import "time"

// RunMetadata is stamped once per run when the runner starts. Timestamp is
// the only field the core relies on; the rest captures the environment the
// run executed in and may be left empty.
type RunMetadata struct {
	Timestamp time.Time         `json:"timestamp"`
	Finished  time.Time         `json:"finished,omitzero"`
	Pipeline  string            `json:"pipeline,omitempty"`
	Version   string            `json:"version,omitempty"`
	Host      string            `json:"host,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// EntryMetadata is stamped once per processing attempt.
type EntryMetadata struct {
	// Seq is the 1-based position of the entry in its journal.
	Seq int64 `json:"seq"`

	// AttemptID identifies this attempt. It is distinct from the input id:
	// the same input processed in two runs gets two attempt ids.
	AttemptID ID `json:"attempt_id"`

	// Timestamp is when the processor was invoked.
	Timestamp time.Time `json:"timestamp"`

	// Duration is how long the processor took to settle.
	Duration time.Duration `json:"duration_ns"`
}

func (m RunMetadata) clone() RunMetadata {
	out := m
	if m.Args != nil {
		out.Args = append([]string(nil), m.Args...)
	}
	if m.Labels != nil {
		out.Labels = make(map[string]string, len(m.Labels))
		for k, v := range m.Labels {
			out.Labels[k] = v
		}
	}
	return out
}
