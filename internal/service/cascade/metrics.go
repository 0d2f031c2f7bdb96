package cascade

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	phaseFolders = "folders"
	phaseFiles   = "files"
)

// Metrics exposes cascade engine counters. One instance per process,
// registered on the worker's registry.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	BatchesTotal   *prometheus.CounterVec
	RowsFixedTotal *prometheus.CounterVec
	RunDuration    prometheus.Histogram
}

// NewMetrics registers and returns the cascade metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stratus_cascade_runs_total",
			Help: "Reconciliation runs by outcome.",
		}, []string{"outcome"}),
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stratus_cascade_batches_total",
			Help: "Fixpoint batches applied by phase.",
		}, []string{"phase"}),
		RowsFixedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stratus_cascade_rows_fixed_total",
			Help: "Rows marked removed/deleted by phase.",
		}, []string{"phase"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stratus_cascade_run_duration_seconds",
			Help:    "Wall time of completed reconciliation runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}
