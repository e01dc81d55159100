package telemetry

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics provides Prometheus metrics for a buildsmith run.
type Metrics struct {
	config MetricsConfig

	// Context processing metrics
	contextsProcessed  *prometheus.CounterVec
	resolutionDuration prometheus.Histogram

	// Artifact emission metrics
	artifactsWritten *prometheus.CounterVec

	// Resolution metrics
	packsResolved      prometheus.Counter
	componentsResolved prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		contextsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "contexts_processed_total",
				Help:      "Total number of build contexts processed",
			},
			[]string{"status"},
		),
		resolutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "context_resolution_duration_seconds",
				Help:      "Duration of per-context resolution in seconds",
				Buckets:   buckets,
			},
		),
		artifactsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_written_total",
				Help:      "Total number of build-configuration artifacts written",
			},
			[]string{"kind"},
		),
		packsResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "packs_resolved_total",
				Help:      "Total number of pack requirements resolved",
			},
		),
		componentsResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "components_resolved_total",
				Help:      "Total number of components resolved",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.contextsProcessed,
		m.resolutionDuration,
		m.artifactsWritten,
		m.packsResolved,
		m.componentsResolved,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// RecordContextProcessed records a processed context with its outcome status
// (resolved, failed, skipped) and resolution duration.
func (m *Metrics) RecordContextProcessed(status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.contextsProcessed.WithLabelValues(status).Inc()
	if status != "skipped" {
		m.resolutionDuration.Observe(duration.Seconds())
	}
}

// RecordArtifactWritten records an emitted artifact by kind
// (pack-lock, index, selection-set, build-record, legacy-project).
func (m *Metrics) RecordArtifactWritten(kind string) {
	if m.registry == nil {
		return
	}
	m.artifactsWritten.WithLabelValues(kind).Inc()
}

// RecordPacksResolved adds to the resolved-pack counter.
func (m *Metrics) RecordPacksResolved(n int) {
	if m.registry == nil {
		return
	}
	m.packsResolved.Add(float64(n))
}

// RecordComponentsResolved adds to the resolved-component counter.
func (m *Metrics) RecordComponentsResolved(n int) {
	if m.registry == nil {
		return
	}
	m.componentsResolved.Add(float64(n))
}

// Dump writes all collected metrics to the configured textfile in Prometheus
// text exposition format. It is a no-op when metrics are disabled or no
// textfile path was configured.
func (m *Metrics) Dump() error {
	if m.registry == nil || m.config.TextfilePath == "" {
		return nil
	}

	mfs, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	file, err := os.Create(m.config.TextfilePath)
	if err != nil {
		return fmt.Errorf("failed to create metrics textfile: %w", err)
	}
	defer file.Close()

	enc := expfmt.NewEncoder(file, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}
