package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-cooke/infrastructure/units"
	"github.com/ahrav/go-cooke/internal/application"
	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/engine"
	"github.com/ahrav/go-cooke/internal/ports"
)

// InstrumentedUnit runs a unit inside a span and records its latency,
// outcome and evaluated combinations.
type InstrumentedUnit struct {
	next     ports.Unit
	unitType string
	metrics  ports.MetricsCollector
	tracer   trace.Tracer
}

// NewInstrumentedUnit wraps next. metrics may be nil, in which case only
// spans are recorded.
func NewInstrumentedUnit(next ports.Unit, unitType string, metrics ports.MetricsCollector) *InstrumentedUnit {
	if next == nil {
		panic("instrumented unit: next unit is required")
	}
	return &InstrumentedUnit{
		next:     next,
		unitType: unitType,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
	}
}

// Name returns the name of the wrapped unit.
func (u *InstrumentedUnit) Name() string { return u.next.Name() }

// Validate validates the wrapped unit.
func (u *InstrumentedUnit) Validate() error { return u.next.Validate() }

// Unwrap returns the wrapped unit.
func (u *InstrumentedUnit) Unwrap() ports.Unit { return u.next }

// Execute runs the wrapped unit. The span is named after the unit type and
// carries the plan and run ids found in state.
func (u *InstrumentedUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	before, _ := domain.Get(state, domain.KeyCombinations)
	planID, _ := domain.Get(state, domain.KeyPlanID)
	runID, _ := domain.Get(state, domain.KeyRunID)

	ctx, span := u.tracer.Start(ctx, "unit."+u.unitType, trace.WithAttributes(
		attribute.String("unit.name", u.next.Name()),
		attribute.String("unit.type", u.unitType),
		attribute.String("plan.id", planID),
		attribute.String("run.id", runID),
	))
	defer span.End()

	start := time.Now()
	out, err := u.next.Execute(ctx, state)
	elapsed := time.Since(start)

	labels := map[string]string{"unit": u.next.Name(), "type": u.unitType}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		u.record(elapsed, labels, "error", 0)
		return out, err
	}

	after, _ := domain.Get(out, domain.KeyCombinations)
	evaluated := after - before
	span.SetAttributes(attribute.Int64("robustness.combinations", evaluated))
	if dm, ok := domain.Get(out, domain.KeyDecisionMaker); ok && dm != nil {
		span.SetAttributes(
			attribute.Float64("decision_maker.alpha", dm.Alpha),
			attribute.Float64("decision_maker.comb_score", dm.Scores.CombScore),
		)
	}
	span.SetStatus(codes.Ok, "")
	u.record(elapsed, labels, "success", evaluated)
	return out, nil
}

func (u *InstrumentedUnit) record(elapsed time.Duration, labels map[string]string, status string, evaluated int64) {
	if u.metrics == nil {
		return
	}
	u.metrics.RecordLatency("unit_execute", elapsed, labels)
	u.metrics.RecordCounter("unit_executions_total", 1, map[string]string{"unit": labels["unit"], "status": status})
	if evaluated > 0 {
		u.metrics.RecordCounter("robustness_combinations_total", float64(evaluated), map[string]string{
			"unit": labels["unit"],
			"kind": robustnessKind(u.unitType),
		})
	}
}

func robustnessKind(unitType string) string {
	switch unitType {
	case units.TypeItemRobustness:
		return engine.KindItems
	case units.TypeExpertRobustness:
		return engine.KindExperts
	default:
		return unitType
	}
}

// NewUnitWrapper returns the loader hook that guards units with a budget
// section and instruments every unit. The budget sits inside the
// instrumentation so refusals show up in spans and metrics.
func NewUnitWrapper(metrics ports.MetricsCollector) application.UnitWrapper {
	return func(unit ports.Unit, cfg application.UnitConfig) (ports.Unit, error) {
		if cfg.Budget.MaxCombinations > 0 {
			unit = NewBudgetManager(BudgetFromConfig(cfg.Budget), unit, NewOTelBudgetObserver(metrics, cfg.ID))
		}
		wrapped := NewInstrumentedUnit(unit, cfg.Type, metrics)
		if err := wrapped.Validate(); err != nil {
			return nil, err
		}
		return wrapped, nil
	}
}
