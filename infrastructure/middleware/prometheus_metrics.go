package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-cooke/internal/ports"
)

// PrometheusMetrics implements ports.MetricsCollector with Prometheus
// collectors registered on one registerer.
type PrometheusMetrics struct {
	executionLatency *prometheus.HistogramVec
	combinations     *prometheus.CounterVec
	operationCounter *prometheus.CounterVec
	scores           *prometheus.HistogramVec
	gauges           *prometheus.GaugeVec
}

// NewPrometheusMetrics registers the collectors on reg. A nil reg means
// prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		executionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cooke_operation_duration_seconds",
				Help:    "Duration of calculations and plan unit executions.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "unit"},
		),
		combinations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cooke_robustness_combinations_total",
				Help: "Robustness combinations evaluated.",
			},
			[]string{"kind", "unit"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cooke_operations_total",
				Help: "Operations performed, by outcome.",
			},
			[]string{"operation", "status", "unit"},
		),
		scores: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cooke_decision_maker_score",
				Help:    "Calibration and information scores of synthesized decision makers.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"score", "weight"},
		),
		gauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cooke_state",
				Help: "Current values such as remaining combination budget.",
			},
			[]string{"metric", "unit"},
		),
	}
}

// RecordLatency observes duration in the operation histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.executionLatency.WithLabelValues(operation, unitLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter adds value to a counter. Robustness combinations have their
// own counter; budget refusals and unit outcomes go to the operations counter.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	unit := unitLabel(labels)
	switch metric {
	case "robustness_combinations_total":
		pm.combinations.WithLabelValues(labels["kind"], unit).Add(value)
	case "budget_exceeded_total":
		pm.operationCounter.WithLabelValues("budget_check", "exceeded", unit).Add(value)
	case "unit_executions_total":
		status := labels["status"]
		if status == "" {
			status = "success"
		}
		pm.operationCounter.WithLabelValues("unit_execute", status, unit).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, "success", unit).Add(value)
	}
}

// RecordGauge sets a gauge value.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.gauges.WithLabelValues(metric, unitLabel(labels)).Set(value)
}

// RecordHistogram observes decision maker scores in the score histogram and
// anything else in the operation histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "decision_maker_calibration":
		pm.scores.WithLabelValues("calibration", labels["weight"]).Observe(value)
	case "decision_maker_information":
		pm.scores.WithLabelValues("information", labels["weight"]).Observe(value)
	default:
		pm.executionLatency.WithLabelValues(metric, unitLabel(labels)).Observe(value)
	}
}

func unitLabel(labels map[string]string) string {
	if unit := labels["unit"]; unit != "" {
		return unit
	}
	return "unknown"
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
