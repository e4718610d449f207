package runner

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by Run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	mu sync.Mutex

	entriesTotal    *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	inflight        *prometheus.GaugeVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pipejournal",
			Subsystem: "runner",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates runner metrics. A nil registerer means
// prometheus.DefaultRegisterer. Collectors are not registered until Register
// is called.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Metrics{
		registerer:   registerer,
		entriesTotal: newCounterVec("entries_total", "Journal entries recorded, by status", []string{"pipeline", "status"}),
		runsTotal:    newCounterVec("runs_total", "Completed runs, by outcome", []string{"pipeline", "outcome"}),
		processDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pipejournal",
				Subsystem: "runner",
				Name:      "process_duration_seconds",
				Help:      "Time spent in Processor.Process per input",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pipeline"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "pipejournal",
				Subsystem: "runner",
				Name:      "inflight",
				Help:      "Process calls currently in flight",
			},
			[]string{"pipeline"},
		),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.entriesTotal,
		m.runsTotal,
		m.processDuration,
		m.inflight,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

func (m *Metrics) startAttempt(pipeline string) {
	if m == nil {
		return
	}
	m.inflight.WithLabelValues(pipeline).Inc()
}

func (m *Metrics) finishAttempt(pipeline, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.inflight.WithLabelValues(pipeline).Dec()
	m.processDuration.WithLabelValues(pipeline).Observe(d.Seconds())
	m.entriesTotal.WithLabelValues(pipeline, status).Inc()
}

func (m *Metrics) finishRun(pipeline, outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(pipeline, outcome).Inc()
}
