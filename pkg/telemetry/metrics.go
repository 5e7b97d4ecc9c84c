package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the recalculation engine. A nil
// *Metrics, or one built with metrics disabled, records nothing.
type Metrics struct {
	config MetricsConfig

	// Recalculation metrics
	recalcPasses   *prometheus.CounterVec
	passDuration   *prometheus.HistogramVec
	cellsEvaluated *prometheus.CounterVec
	cycles         prometheus.Counter
	spillBlocks    prometheus.Counter

	// Program cache
	programCache prometheus.Gauge

	// Calculated columns
	rowInserts *prometheus.CounterVec

	// Error metrics
	errorsByCode *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
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

		recalcPasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recalc_passes_total",
				Help:      "Total number of recalculation passes",
			},
			[]string{"mode"},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "recalc_pass_duration_seconds",
				Help:      "Duration of recalculation passes in seconds",
				Buckets:   buckets,
			},
			[]string{"mode"},
		),
		cellsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cells_evaluated_total",
				Help:      "Total number of formula cells evaluated",
			},
			[]string{"path"},
		),
		cycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_detected_total",
				Help:      "Total number of cells found on a dependency cycle",
			},
		),
		spillBlocks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "spill_blocks_total",
				Help:      "Total number of spills blocked by occupied cells",
			},
		),
		programCache: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "program_cache_size",
				Help:      "Current number of compiled bytecode programs",
			},
		),
		rowInserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "table_row_inserts_total",
				Help:      "Total number of calculated-table row insertions",
			},
			[]string{"status"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of engine errors by error code",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.recalcPasses,
		m.passDuration,
		m.cellsEvaluated,
		m.cycles,
		m.spillBlocks,
		m.programCache,
		m.rowInserts,
		m.errorsByCode,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// Recalculation Metrics

// RecordRecalcPass records one finished recalculation pass.
func (m *Metrics) RecordRecalcPass(mode string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.recalcPasses.WithLabelValues(mode).Inc()
	m.passDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordCellsEvaluated adds n evaluations on the given path (vm or tree).
func (m *Metrics) RecordCellsEvaluated(path string, n int) {
	if !m.enabled() || n == 0 {
		return
	}
	m.cellsEvaluated.WithLabelValues(path).Add(float64(n))
}

// RecordCycles adds n cells found on dependency cycles.
func (m *Metrics) RecordCycles(n int) {
	if !m.enabled() || n == 0 {
		return
	}
	m.cycles.Add(float64(n))
}

// RecordSpillBlocked counts one blocked spill.
func (m *Metrics) RecordSpillBlocked() {
	if !m.enabled() {
		return
	}
	m.spillBlocks.Inc()
}

// SetProgramCacheSize sets the current number of cached programs.
func (m *Metrics) SetProgramCacheSize(n int) {
	if !m.enabled() {
		return
	}
	m.programCache.Set(float64(n))
}

// Calculated Column Metrics

// RecordRowInsert records a calculated-table row insertion by status
// (committed or rolled_back).
func (m *Metrics) RecordRowInsert(status string) {
	if !m.enabled() {
		return
	}
	m.rowInserts.WithLabelValues(status).Inc()
}

// Error Metrics

// RecordError records an engine error by code.
func (m *Metrics) RecordError(code string) {
	if !m.enabled() || code == "" {
		return
	}
	m.errorsByCode.WithLabelValues(code).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics. It returns
// the server so callers can shut it down.
func (m *Metrics) StartMetricsServer() (*http.Server, error) {
	if !m.enabled() {
		return nil, nil
	}
	if m.config.ListenAddress == "" {
		return nil, fmt.Errorf("metrics listen address is required")
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return server, nil
}
