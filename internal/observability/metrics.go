package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// assessment pipeline.
type Metrics struct {
	AssessmentsTotal   *prometheus.CounterVec // labels: confidence={Low,Medium,High}
	AssessmentDuration prometheus.Histogram
	FloodProbability   prometheus.Histogram

	TrainingRuns     prometheus.Counter
	TrainingFailures prometheus.Counter
	TrainingDuration prometheus.Histogram
	NetworkFusion    prometheus.Gauge

	AlertsFired *prometheus.CounterVec // labels: severity={watch,warning,severe}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.AssessmentsTotal,
		m.AssessmentDuration,
		m.FloodProbability,
		m.TrainingRuns,
		m.TrainingFailures,
		m.TrainingDuration,
		m.NetworkFusion,
		m.AlertsFired,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		AssessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "assessments_total",
			Help:      "Total assessments served, by confidence level.",
		}, []string{"confidence"}),
		AssessmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "floodwatch",
			Name:      "assessment_duration_seconds",
			Help:      "End-to-end duration of a single ward assessment.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		FloodProbability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "floodwatch",
			Name:      "flood_probability",
			Help:      "Distribution of fused flood probabilities.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
		}),
		TrainingRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "training_runs_total",
			Help:      "Completed training runs.",
		}),
		TrainingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "training_failures_total",
			Help:      "Training runs that aborted with an error.",
		}),
		TrainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "floodwatch",
			Name:      "training_duration_seconds",
			Help:      "Duration of a full training run over the corpus.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		NetworkFusion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodwatch",
			Name:      "network_fusion_active",
			Help:      "1 when the active model fuses with the CPT network, 0 when it uses the weighted fallback.",
		}),
		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "alerts_fired_total",
			Help:      "Alert rules fired, by severity.",
		}, []string{"severity"}),
	}
}
