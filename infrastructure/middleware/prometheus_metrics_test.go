package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

func TestNewPrometheusMetrics_SeparateRegistries(t *testing.T) {
	// Two collectors on their own registries must not collide.
	a, _ := newTestMetrics(t)
	b, _ := newTestMetrics(t)
	assert.NotSame(t, a, b)
	assert.Panics(t, func() {
		reg := prometheus.NewRegistry()
		NewPrometheusMetrics(reg)
		NewPrometheusMetrics(reg)
	})
}

// TestPrometheusMetrics_RecordCounter checks the routing of counters to
// their collectors.
func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordCounter("robustness_combinations_total", 7, map[string]string{"kind": "items", "unit": "items"})
	pm.RecordCounter("robustness_combinations_total", 3, map[string]string{"kind": "items", "unit": "items"})
	pm.RecordCounter("budget_exceeded_total", 1, map[string]string{"unit": "experts"})
	pm.RecordCounter("unit_executions_total", 1, map[string]string{"unit": "dm", "status": "error"})
	pm.RecordCounter("unit_executions_total", 1, map[string]string{"unit": "dm"})
	pm.RecordCounter("plans_loaded", 2, nil)

	tests := []struct {
		name string
		got  prometheus.Collector
		want float64
	}{
		{"combinations", pm.combinations.WithLabelValues("items", "items"), 10},
		{"budget refusal", pm.operationCounter.WithLabelValues("budget_check", "exceeded", "experts"), 1},
		{"unit error", pm.operationCounter.WithLabelValues("unit_execute", "error", "dm"), 1},
		{"unit success by default", pm.operationCounter.WithLabelValues("unit_execute", "success", "dm"), 1},
		{"other counters", pm.operationCounter.WithLabelValues("plans_loaded", "success", "unknown"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, testutil.ToFloat64(tt.got), 0)
		})
	}
}

func TestPrometheusMetrics_GaugesAndHistograms(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordGauge("budget_remaining_combinations", 12, map[string]string{"unit": "items"})
	pm.RecordGauge("budget_remaining_combinations", 4, map[string]string{"unit": "items"})
	assert.InDelta(t, 4, testutil.ToFloat64(pm.gauges.WithLabelValues("budget_remaining_combinations", "items")), 0)

	pm.RecordLatency("calculate", 250*time.Millisecond, map[string]string{"weight": "global"})
	pm.RecordHistogram("decision_maker_calibration", 0.72, map[string]string{"weight": "global"})
	pm.RecordHistogram("decision_maker_information", 1.3, map[string]string{"weight": "global"})
	pm.RecordHistogram("something_else", 3, map[string]string{"unit": "u"})

	n, err := testutil.GatherAndCount(reg, "cooke_decision_maker_score")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = testutil.GatherAndCount(reg, "cooke_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
