// Package metrics defines the Prometheus collectors for a sweep. A sweep is a
// batch job, so the registry is written once to a node_exporter textfile
// instead of being scraped.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
)

// Metrics holds the sweep collectors and their private registry.
type Metrics struct {
	registry *prometheus.Registry

	ConfigurationsTotal *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	QueriesTotal        *prometheus.CounterVec
	RunLinesTotal       prometheus.Counter
	EvaluatorFailures   prometheus.Counter
	ConfigurationMAP    *prometheus.GaugeVec
	SweepDuration       prometheus.Gauge
	LastSweepTimestamp  prometheus.Gauge
}

// New creates and registers all sweep collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConfigurationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cranbench_configurations_total",
				Help: "Configurations finished, by outcome (evaluated, unevaluated, failed).",
			},
			[]string{"outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cranbench_stage_duration_seconds",
				Help:    "Time spent per configuration in each pipeline stage.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cranbench_queries_total",
				Help: "Queries run across configurations, by result (ok, empty, failed).",
			},
			[]string{"result"},
		),
		RunLinesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cranbench_run_lines_total",
				Help: "TREC run lines written.",
			},
		),
		EvaluatorFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cranbench_evaluator_failures_total",
				Help: "trec_eval invocations that failed or timed out.",
			},
		),
		ConfigurationMAP: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cranbench_configuration_map",
				Help: "Mean average precision per evaluated configuration.",
			},
			[]string{"tokenizer", "scoring", "config"},
		),
		SweepDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cranbench_sweep_duration_seconds",
				Help: "Wall time of the last sweep.",
			},
		),
		LastSweepTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cranbench_last_sweep_timestamp_seconds",
				Help: "Unix time the last sweep finished.",
			},
		),
	}

	m.registry.MustRegister(
		m.ConfigurationsTotal,
		m.StageDuration,
		m.QueriesTotal,
		m.RunLinesTotal,
		m.EvaluatorFailures,
		m.ConfigurationMAP,
		m.SweepDuration,
		m.LastSweepTimestamp,
	)
	return m
}

// Registry returns the registry holding the sweep collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage records time spent in a stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveQueries records per-configuration query counts.
func (m *Metrics) ObserveQueries(ok, empty, failed int) {
	m.QueriesTotal.WithLabelValues("ok").Add(float64(ok))
	m.QueriesTotal.WithLabelValues("empty").Add(float64(empty))
	m.QueriesTotal.WithLabelValues("failed").Add(float64(failed))
}

// ObserveOutcome counts a finished configuration.
func (m *Metrics) ObserveOutcome(outcome string) {
	m.ConfigurationsTotal.WithLabelValues(outcome).Inc()
}

// SetMAP records an evaluated configuration's MAP.
func (m *Metrics) SetMAP(tokenizer, scoring, config string, value float64) {
	m.ConfigurationMAP.WithLabelValues(tokenizer, scoring, config).Set(value)
}

// FinishSweep records the sweep's wall time.
func (m *Metrics) FinishSweep(d time.Duration, at time.Time) {
	m.SweepDuration.Set(d.Seconds())
	m.LastSweepTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the text exposition format. The
// write is atomic, as node_exporter expects.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cerrors.New(cerrors.ErrCodeDirCreate, "failed to create metrics directory", err).
			WithDetail("path", filepath.Dir(path))
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return cerrors.IOError("failed to write metrics textfile", err).WithDetail("path", path)
	}
	return nil
}
