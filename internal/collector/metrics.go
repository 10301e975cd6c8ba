package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "microfi"

const hopsSubsystem = "hops"

// Metrics are shared by all sessions of a run, labelled with the trace name.
type Metrics struct {
	Registry *prometheus.Registry

	// ResultsTotal counts planned trace positions.
	ResultsTotal *prometheus.CounterVec

	// CheckpointsTotal counts created checkpoints.
	CheckpointsTotal *prometheus.CounterVec

	// Costs observes the costs of every planned position.
	Costs *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		ResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: hopsSubsystem,
				Name:      "results_total",
				Help:      "Total number of planned trace positions",
			},
			[]string{"trace"},
		),
		CheckpointsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: hopsSubsystem,
				Name:      "checkpoints_total",
				Help:      "Total number of created checkpoints",
			},
			[]string{"trace"},
		),
		Costs: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: hopsSubsystem,
				Name:      "costs",
				Help:      "Costs of the hop chain planned for a trace position",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"trace"},
		),
	}
}

// WriteFile writes all metrics in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
