// Package ports defines the interfaces between the calculation core and the
// infrastructure that feeds and observes it: distributions, plan units,
// project readers and writers, and metrics sinks.
package ports

import (
	"context"

	"github.com/ahrav/go-cooke/internal/domain"
)

// Unit is one step of a calculation plan. It reads its inputs from the
// State and returns a new State with its outputs added.
// Units hold no per-run data and may be executed concurrently.
type Unit interface {
	// Name returns the plan-unique identifier of this unit.
	Name() string

	// Execute runs the step. The input State must not be modified.
	// Long running units must return promptly once ctx is cancelled.
	//
	// Example:
	//
	//	next, err := unit.Execute(ctx, state)
	//	if err != nil {
	//	    return domain.State{}, fmt.Errorf("unit %s failed: %w", unit.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks the unit configuration before the plan runs.
	Validate() error
}

// UnitFactory builds a unit from its plan id and decoded parameters.
type UnitFactory func(id string, config map[string]any) (Unit, error)

// UnitRegistry creates plan units by type name.
type UnitRegistry interface {
	// CreateUnit builds a unit of unitType. config holds the unit's
	// parameters as decoded from the plan.
	CreateUnit(unitType string, id string, config map[string]any) (Unit, error)
}

// CombinationPlanner is implemented by units that enumerate robustness
// combinations. It lets budget guards reject a run before it starts.
type CombinationPlanner interface {
	// PlannedCombinations returns how many combinations Execute would
	// evaluate on state.
	PlannedCombinations(state domain.State) (int64, error)
}
