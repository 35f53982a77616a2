package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-cooke/internal/ports"
)

const tracerName = "github.com/ahrav/go-cooke/middleware"

var _ BudgetObserver = (*OTelBudgetObserver)(nil)

// OTelBudgetObserver traces budget checks with OpenTelemetry. It opens a
// span in PreCheck, records the counter and threshold events on it and
// closes it in PostCheck. The span travels in the context, so one observer
// may serve concurrent runs.
type OTelBudgetObserver struct {
	metrics  ports.MetricsCollector
	unitName string
	tracer   trace.Tracer
}

// NewOTelBudgetObserver creates an observer for unitName. metrics may be nil.
func NewOTelBudgetObserver(metrics ports.MetricsCollector, unitName string) *OTelBudgetObserver {
	return &OTelBudgetObserver{
		metrics:  metrics,
		unitName: unitName,
		tracer:   otel.Tracer(tracerName),
	}
}

// PreCheck starts the budget span and flags a counter close to the limit.
func (o *OTelBudgetObserver) PreCheck(ctx context.Context, used, planned int64, budget Budget) context.Context {
	ctx, span := o.tracer.Start(ctx, "BudgetManager.Execute")
	span.SetAttributes(
		attribute.String("budget.unit", o.unitName),
		attribute.Int64("budget.combinations_used", used),
		attribute.Int64("budget.combinations_planned", planned),
	)
	if budget.MaxCombinations > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_combinations", budget.MaxCombinations),
			attribute.Int64("budget.remaining_combinations", budget.MaxCombinations-used-planned),
		)
		o.checkThresholds(span, used+planned, budget)
	}
	return ctx
}

// PostCheck records the outcome and ends the span started by PreCheck.
func (o *OTelBudgetObserver) PostCheck(ctx context.Context, used int64, budget Budget, elapsed time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(attribute.Int64("budget.combinations_used", used))
	labels := o.labels(budget)
	if o.metrics != nil {
		o.metrics.RecordLatency("budget_manager_execution", elapsed, labels)
	}

	if err != nil {
		var budgetErr *BudgetExceededError
		if errors.As(err, &budgetErr) {
			span.AddEvent("budget.exceeded", trace.WithAttributes(
				attribute.Int64("limit", budgetErr.Limit),
				attribute.Int64("used", budgetErr.Used),
			))
			span.SetStatus(codes.Error, "combination budget exceeded")
			if o.metrics != nil {
				o.metrics.RecordCounter("budget_exceeded_total", 1, labels)
			}
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	if o.metrics != nil && budget.MaxCombinations > 0 {
		o.metrics.RecordGauge("budget_remaining_combinations", float64(budget.MaxCombinations-used), labels)
	}
	span.SetStatus(codes.Ok, "")
}

// checkThresholds adds a span event when the counter passes 80% or 90%
// of the budget.
func (o *OTelBudgetObserver) checkThresholds(span trace.Span, total int64, budget Budget) {
	const (
		warningThreshold  = 0.8
		criticalThreshold = 0.9
	)
	share := float64(total) / float64(budget.MaxCombinations)
	switch {
	case share >= criticalThreshold:
		span.AddEvent("budget.threshold.critical", trace.WithAttributes(
			attribute.Float64("usage_percentage", share*100),
		))
	case share >= warningThreshold:
		span.AddEvent("budget.threshold.warning", trace.WithAttributes(
			attribute.Float64("usage_percentage", share*100),
		))
	}
}

func (o *OTelBudgetObserver) labels(budget Budget) map[string]string {
	limit := "unlimited"
	if budget.MaxCombinations > 0 {
		limit = "combinations"
	}
	return map[string]string{"budget_limit": limit, "unit": o.unitName}
}
