// Package middleware wraps plan units with cross-cutting concerns: a
// robustness combination budget, Prometheus metrics and OpenTelemetry
// tracing. Wrappers keep the unit interface so plans stay unaware of them.
package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-cooke/internal/application"
	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// Budget limits the robustness combinations a plan run may evaluate.
type Budget struct {
	// MaxCombinations is the highest value the run's combination counter
	// may reach once the unit finishes. Zero means unlimited.
	MaxCombinations int64
}

// BudgetExceededError reports a unit that would push the combination
// counter past its budget.
type BudgetExceededError struct {
	Unit    string
	Limit   int64
	Used    int64
	Planned int64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("unit %s: %d combinations evaluated and %d planned exceed the limit of %d",
		e.Unit, e.Used, e.Planned, e.Limit)
}

// Unwrap returns ports.ErrBudgetExceeded.
func (e *BudgetExceededError) Unwrap() error { return ports.ErrBudgetExceeded }

// BudgetObserver provides observability hooks for budget checks.
// Implementations can add tracing, metrics, and logging without
// coupling observability concerns to core budget logic.
type BudgetObserver interface {
	// PreCheck is called before the unit runs. The returned context is
	// passed to the unit and to PostCheck.
	PreCheck(ctx context.Context, used, planned int64, budget Budget) context.Context

	// PostCheck is called after the unit with the final counter value.
	PostCheck(ctx context.Context, used int64, budget Budget, elapsed time.Duration, err error)
}

// BudgetManager refuses to run a unit whose planned combinations would
// exceed the budget. It reads the counter from the request-scoped State
// and keeps no shared mutable state, so one manager may serve concurrent
// runs.
type BudgetManager struct {
	budget   Budget
	next     ports.Unit
	observer BudgetObserver
}

// NewBudgetManager wraps next with budget enforcement. observer may be nil.
func NewBudgetManager(budget Budget, next ports.Unit, observer BudgetObserver) *BudgetManager {
	if next == nil {
		panic("budget manager: next unit is required")
	}
	return &BudgetManager{
		budget:   budget,
		next:     next,
		observer: observer,
	}
}

// Name returns the name of the wrapped unit.
func (bm *BudgetManager) Name() string { return bm.next.Name() }

// Execute checks the planned combinations, runs the unit and checks the
// counter again, catching units that evaluate more than they announced.
func (bm *BudgetManager) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	used, _ := domain.Get(state, domain.KeyCombinations)
	planned, err := bm.planned(state)
	if err != nil {
		return state, err
	}
	if err := bm.check(used, planned); err != nil {
		return state, err
	}

	if bm.observer != nil {
		ctx = bm.observer.PreCheck(ctx, used, planned, bm.budget)
	}

	start := time.Now()
	newState, err := bm.next.Execute(ctx, state)
	elapsed := time.Since(start)

	final, _ := domain.Get(newState, domain.KeyCombinations)
	if err == nil {
		err = bm.check(final, 0)
	}
	if bm.observer != nil {
		bm.observer.PostCheck(ctx, final, bm.budget, elapsed, err)
	}
	return newState, err
}

// Validate checks the budget and the wrapped unit.
func (bm *BudgetManager) Validate() error {
	if bm.budget.MaxCombinations < 0 {
		return fmt.Errorf("budget manager: max_combinations cannot be negative, got %d", bm.budget.MaxCombinations)
	}
	return bm.next.Validate()
}

// Unwrap returns the wrapped unit.
func (bm *BudgetManager) Unwrap() ports.Unit { return bm.next }

// planned asks the wrapped unit for its combination count. Units that
// enumerate nothing plan zero.
func (bm *BudgetManager) planned(state domain.State) (int64, error) {
	p, ok := bm.next.(ports.CombinationPlanner)
	if !ok {
		return 0, nil
	}
	n, err := p.PlannedCombinations(state)
	if err != nil {
		return 0, fmt.Errorf("budget manager: planning %s: %w", bm.next.Name(), err)
	}
	return n, nil
}

func (bm *BudgetManager) check(used, planned int64) error {
	if bm.budget.MaxCombinations > 0 && used+planned > bm.budget.MaxCombinations {
		return &BudgetExceededError{
			Unit:    bm.next.Name(),
			Limit:   bm.budget.MaxCombinations,
			Used:    used,
			Planned: planned,
		}
	}
	return nil
}

// BudgetFromConfig converts a plan unit's budget section.
func BudgetFromConfig(config application.BudgetConfig) Budget {
	return Budget{MaxCombinations: config.MaxCombinations}
}
