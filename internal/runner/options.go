package runner

import (
	"log/slog"
	"maps"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultConcurrency is the number of Process calls in flight when
// WithConcurrency is not given.
const DefaultConcurrency = 1

const tracerName = "github.com/roach88/pipejournal/internal/runner"

type options struct {
	clock       Clock
	ids         IDGenerator
	concurrency int
	metrics     *Metrics
	tracer      trace.Tracer
	logger      *slog.Logger

	pipeline string
	version  string
	host     string
	args     []string
	labels   map[string]string
}

// Option configures a run.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		clock:       SystemClock{},
		ids:         UUIDv7Generator{},
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return o
}

// WithClock sets the clock used for run and entry timestamps.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithIDGenerator sets the generator for the journal id and attempt ids.
// The journal id is generated first, then one attempt id per input in
// stream order.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithConcurrency allows up to n Process calls in flight.
//
// Default: 1 (sequential). Entries are appended in input-stream order
// whatever order the calls finish in.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithMetrics records entry and run metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer for run and attempt spans. Default is the
// global OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithLogger sets the structured logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPipeline records the pipeline name in the run metadata.
func WithPipeline(name string) Option {
	return func(o *options) {
		o.pipeline = name
	}
}

// WithVersion records the program version in the run metadata.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithHost records the host name in the run metadata.
func WithHost(h string) Option {
	return func(o *options) {
		o.host = h
	}
}

// WithArgs records the invocation arguments in the run metadata.
func WithArgs(args []string) Option {
	return func(o *options) {
		o.args = slices.Clone(args)
	}
}

// WithLabels records free-form labels in the run metadata.
func WithLabels(labels map[string]string) Option {
	return func(o *options) {
		o.labels = maps.Clone(labels)
	}
}
