package domain

import (
	"errors"
	"fmt"
)

// Registry errors raised by Project mutations. A mutation that returns one of
// these leaves the project unchanged.
var (
	// ErrDuplicateID indicates that an expert or item id is already in use.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrUnknownExpert indicates that an expert id is not registered.
	ErrUnknownExpert = errors.New("unknown expert")

	// ErrUnknownItem indicates that an item id is not registered.
	ErrUnknownItem = errors.New("unknown item")

	// ErrInvalidQuantile indicates a quantile level outside the open interval (0, 1).
	ErrInvalidQuantile = errors.New("quantile must be > 0 and < 1")

	// ErrDuplicateQuantile indicates that a quantile level is already present.
	ErrDuplicateQuantile = errors.New("quantile already present")

	// ErrUnknownQuantile indicates that a quantile level is not present.
	ErrUnknownQuantile = errors.New("quantile not present")

	// ErrShapeMismatch indicates that supplied values do not match the
	// dimensions of the project.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnorderedValues indicates assessment values that do not increase
	// with the quantile levels.
	ErrUnorderedValues = errors.New("assessment values must increase with the quantile levels")

	// ErrInvalidPosition indicates an out of range target index for MoveItem.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrInvalidScale indicates a scale string other than "uni" or "log".
	ErrInvalidScale = errors.New("scale must be \"uni\" or \"log\"")

	// ErrEmptyID indicates an empty expert or item id.
	ErrEmptyID = errors.New("empty id")
)

// Calculation errors raised by the engine before any result is produced.
var (
	// ErrHeterogeneousQuantiles indicates that seed items do not share one
	// quantile schema.
	ErrHeterogeneousQuantiles = errors.New("only a fixed number of percentiles can be used in calibration")

	// ErrInvalidWeightType indicates an unrecognised weighting policy.
	ErrInvalidWeightType = errors.New("weight type must be one of global, item, equal, user")

	// ErrAlphaTooHigh indicates a significance level above the highest
	// calibration score, which would exclude every expert.
	ErrAlphaTooHigh = errors.New("significance level (alpha) is higher than the maximum calibration score, so all experts are excluded")

	// ErrUserWeightsUnset indicates that no expert has a user weight.
	ErrUserWeightsUnset = errors.New("assign user weights before calculating a decision maker with this option")

	// ErrNegativeUserWeight indicates a user weight below zero.
	ErrNegativeUserWeight = errors.New("all user weights should be equal to or greater than 0.0")

	// ErrZeroUserWeights indicates that every assigned user weight is zero.
	ErrZeroUserWeights = errors.New("all assigned user weights are 0.0, at least one weight should be greater than 0.0")

	// ErrExclusionBounds indicates a robustness request that would exclude
	// every item or expert.
	ErrExclusionBounds = errors.New("number of excluded entries must be smaller than the number of entries")

	// ErrRobustnessWeight indicates a robustness request for a weight type
	// other than global or item.
	ErrRobustnessWeight = errors.New("robustness can only be calculated for global or item weights")

	// ErrNoExperts indicates that no expert is left to calculate with.
	ErrNoExperts = errors.New("no experts available for the calculation")

	// ErrNoItems indicates that no item is left to calculate with.
	ErrNoItems = errors.New("no items available for the calculation")

	// ErrNoSeedItems indicates a calibration based operation on a project
	// without seed items.
	ErrNoSeedItems = errors.New("no seed items available for calibration")
)

// IO errors raised by the project readers and writers.
var (
	// ErrMixedQuantiles indicates that a format requiring one quantile set
	// received items with different quantile lists.
	ErrMixedQuantiles = errors.New("all items must use the same quantiles")

	// ErrUnsupportedVersion indicates an unknown save file version.
	ErrUnsupportedVersion = errors.New("unsupported project file version")

	// ErrUnsupportedFormat indicates an unknown file extension or format.
	ErrUnsupportedFormat = errors.New("unsupported project file format")
)

// ModelError reports a failed operation on a registered entity.
// It carries the entity kind and id alongside the underlying cause.
type ModelError struct {
	// Entity is "expert", "item" or "quantile".
	Entity string

	// ID identifies the entity the operation targeted.
	ID string

	// Operation describes what was attempted, such as "add" or "remove".
	Operation string

	// Err is the underlying error, usually one of the sentinels above.
	Err error
}

// Error implements the error interface for ModelError.
func (e *ModelError) Error() string {
	return fmt.Sprintf("%s %q: %s: %v", e.Entity, e.ID, e.Operation, e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError creates a new ModelError with the given details.
func NewModelError(entity, id, operation string, err error) *ModelError {
	return &ModelError{
		Entity:    entity,
		ID:        id,
		Operation: operation,
		Err:       err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
