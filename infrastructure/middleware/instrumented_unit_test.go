package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ahrav/go-cooke/infrastructure/units"
	"github.com/ahrav/go-cooke/internal/application"
	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// recordSpans installs a tracer provider that keeps finished spans.
// Tests using it must not run in parallel.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestInstrumentedUnit_Execute(t *testing.T) {
	rec := recordSpans(t)
	pm, _ := newTestMetrics(t)

	unit := newPlannerUnit(4, 4)
	wrapped := NewInstrumentedUnit(unit, units.TypeItemRobustness, pm)
	assert.Equal(t, "items", wrapped.Name())
	assert.Same(t, unit, wrapped.Unwrap())

	out, err := wrapped.Execute(context.Background(), stateWithCombinations(2))
	require.NoError(t, err)
	n, _ := domain.Get(out, domain.KeyCombinations)
	assert.Equal(t, int64(6), n)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "unit.item_robustness", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	v, ok := spanAttr(spans[0], "robustness.combinations")
	require.True(t, ok)
	assert.Equal(t, int64(4), v.AsInt64())
	v, ok = spanAttr(spans[0], "plan.id")
	require.True(t, ok)
	assert.Equal(t, "p", v.AsString())

	assert.InDelta(t, 4, testutil.ToFloat64(pm.combinations.WithLabelValues("items", "items")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pm.operationCounter.WithLabelValues("unit_execute", "success", "items")), 0)
}

func TestInstrumentedUnit_RecordsFailures(t *testing.T) {
	rec := recordSpans(t)
	pm, _ := newTestMetrics(t)

	errBoom := errors.New("boom")
	failing := &mockUnit{name: "dm", executeFunc: func(_ context.Context, s domain.State) (domain.State, error) {
		return s, errBoom
	}}
	_, err := NewInstrumentedUnit(failing, units.TypeDecisionMaker, nil).Execute(context.Background(), domain.NewState())
	require.ErrorIs(t, err, errBoom)

	_, err = NewInstrumentedUnit(failing, units.TypeDecisionMaker, pm).Execute(context.Background(), domain.NewState())
	require.ErrorIs(t, err, errBoom)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.InDelta(t, 1, testutil.ToFloat64(pm.operationCounter.WithLabelValues("unit_execute", "error", "dm")), 0)
}

// TestNewUnitWrapper checks that budgeted units are guarded inside the
// instrumentation and that budget refusals end up on a span.
func TestNewUnitWrapper(t *testing.T) {
	rec := recordSpans(t)
	pm, _ := newTestMetrics(t)
	wrap := NewUnitWrapper(pm)

	plain, err := wrap(&mockUnit{name: "score"}, application.UnitConfig{ID: "score", Type: units.TypeScore})
	require.NoError(t, err)
	inst, ok := plain.(*InstrumentedUnit)
	require.True(t, ok)
	_, isBudget := inst.Unwrap().(*BudgetManager)
	assert.False(t, isBudget)

	guarded, err := wrap(newPlannerUnit(10, 10), application.UnitConfig{
		ID:     "items",
		Type:   units.TypeItemRobustness,
		Budget: application.BudgetConfig{MaxCombinations: 5},
	})
	require.NoError(t, err)
	_, isBudget = guarded.(*InstrumentedUnit).Unwrap().(*BudgetManager)
	assert.True(t, isBudget)

	_, err = guarded.Execute(context.Background(), stateWithCombinations(0))
	require.ErrorIs(t, err, ports.ErrBudgetExceeded)

	spans := rec.Ended()
	require.NotEmpty(t, spans)
	last := spans[len(spans)-1]
	assert.True(t, strings.HasPrefix(last.Name(), "unit."))
	assert.Equal(t, codes.Error, last.Status().Code)

	_, err = wrap(&mockUnit{name: "bad", validateErr: errors.New("invalid")}, application.UnitConfig{ID: "bad", Type: units.TypeScore})
	require.Error(t, err)
}

func TestOTelBudgetObserver_Spans(t *testing.T) {
	rec := recordSpans(t)
	pm, _ := newTestMetrics(t)

	bm := NewBudgetManager(Budget{MaxCombinations: 10}, newPlannerUnit(5, 9), NewOTelBudgetObserver(pm, "items"))
	_, err := bm.Execute(context.Background(), stateWithCombinations(4))
	require.ErrorIs(t, err, ports.ErrBudgetExceeded)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "BudgetManager.Execute", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)

	var events []string
	for _, e := range span.Events() {
		events = append(events, e.Name)
	}
	assert.Contains(t, events, "budget.threshold.critical")
	assert.Contains(t, events, "budget.exceeded")
	assert.InDelta(t, 1, testutil.ToFloat64(pm.operationCounter.WithLabelValues("budget_check", "exceeded", "items")), 0)
}
