// Package metrics exposes Prometheus instrumentation for backtests and
// walk-forward studies.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	tradesSimulated  prometheus.Counter
	gridEvaluations  *prometheus.CounterVec
	windowsEvaluated prometheus.Counter
	studiesTotal     *prometheus.CounterVec
	studyDuration    prometheus.Histogram
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphaflow_backtests_total",
				Help: "Total number of backtest runs by final status",
			},
			[]string{"status"},
		),
		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "alphaflow_backtest_duration_seconds",
				Help:    "Backtest run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
		tradesSimulated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "alphaflow_trades_simulated_total",
				Help: "Total number of fills produced by the simulator",
			},
		),
		gridEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphaflow_grid_evaluations_total",
				Help: "Total number of grid-search combination evaluations",
			},
			[]string{"outcome"},
		),
		windowsEvaluated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "alphaflow_walkforward_windows_total",
				Help: "Total number of walk-forward windows evaluated",
			},
		),
		studiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphaflow_walkforward_studies_total",
				Help: "Total number of walk-forward studies by final status",
			},
			[]string{"status"},
		),
		studyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "alphaflow_walkforward_study_duration_seconds",
				Help:    "Walk-forward study duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
	}

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.tradesSimulated)
	reg.MustRegister(r.gridEvaluations)
	reg.MustRegister(r.windowsEvaluated)
	reg.MustRegister(r.studiesTotal)
	reg.MustRegister(r.studyDuration)

	return r
}

// RecordBacktest records one finished backtest run.
func (r *Registry) RecordBacktest(status string, duration time.Duration, trades int) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration.Seconds())
	r.tradesSimulated.Add(float64(trades))
}

// RecordGridEvaluation records one grid-search combination evaluation.
// outcome is "kept", "below_min_trades" or "failed".
func (r *Registry) RecordGridEvaluation(outcome string) {
	r.gridEvaluations.WithLabelValues(outcome).Inc()
}

// RecordWindow records one evaluated walk-forward window.
func (r *Registry) RecordWindow() {
	r.windowsEvaluated.Inc()
}

// RecordStudy records one finished walk-forward study.
func (r *Registry) RecordStudy(status string, duration time.Duration) {
	r.studiesTotal.WithLabelValues(status).Inc()
	r.studyDuration.Observe(duration.Seconds())
}
