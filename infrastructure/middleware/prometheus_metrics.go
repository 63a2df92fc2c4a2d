// Package middleware provides cross-cutting concerns for the calculation
// pipeline: metrics collection, tracing and stage instrumentation.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-tabulate/internal/ports"
)

// Metric names routed to dedicated collectors. Anything else falls through
// to the generic operation counter, gauge or histogram.
const (
	MetricCalculationErrors = "calculation_errors_total"
	MetricResultSampleSize  = "result_sample_size"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks stage latency, calculation outcomes, normalisation
// bound violations and the sample sizes behind published results.
type PrometheusMetrics struct {
	stageLatency       *prometheus.HistogramVec
	operationCounter   *prometheus.CounterVec
	calculationErrors  *prometheus.CounterVec
	normalisationBound *prometheus.CounterVec
	sampleSize         *prometheus.HistogramVec
	valueHistograms    *prometheus.HistogramVec
	systemGauges       *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance registered in
// the global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsWithRegistry registers all collectors with reg.
// Registering twice with the same registry panics.
func NewPrometheusMetricsWithRegistry(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		stageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calculation_stage_duration_seconds",
				Help:    "Execution time of calculation pipeline operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "stage"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calculation_operations_total",
				Help: "Total number of calculation pipeline operations.",
			},
			[]string{"operation", "status", "stage"},
		),
		calculationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCalculationErrors,
				Help: "Calculations that failed, by error kind.",
			},
			[]string{"kind", "stage"},
		),
		normalisationBound: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricNormalisationOutOfBounds,
				Help: "Result series outside the expected normalisation range.",
			},
			[]string{"measure", "phase"},
		),
		sampleSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricResultSampleSize,
				Help:    "Unweighted sample size behind the latest result of each series.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"measure"},
		),
		valueHistograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calculation_values",
				Help:    "Distribution of miscellaneous calculation values.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric", "stage"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "calculation_system_state",
				Help: "Current system state values for the calculation pipeline.",
			},
			[]string{"metric", "stage"},
		),
	}
}

func stageLabel(labels map[string]string) string {
	if stage := labels["stage"]; stage != "" {
		return stage
	}
	return "unknown"
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.stageLatency.WithLabelValues(operation, stageLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	stage := stageLabel(labels)

	switch metric {
	case MetricCalculationErrors:
		kind := labels["kind"]
		if kind == "" {
			kind = "unknown"
		}
		pm.calculationErrors.WithLabelValues(kind, stage).Add(value)
		pm.operationCounter.WithLabelValues("calculation", "error", stage).Add(value)
	case ports.MetricNormalisationOutOfBounds:
		pm.normalisationBound.WithLabelValues(labels["measure"], labels["phase"]).Add(value)
	default:
		status := labels["status"]
		if status == "" {
			status = "success"
		}
		pm.operationCounter.WithLabelValues(metric, status, stage).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric, stageLabel(labels)).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricResultSampleSize:
		pm.sampleSize.WithLabelValues(labels["measure"]).Observe(value)
	default:
		pm.valueHistograms.WithLabelValues(metric, stageLabel(labels)).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
