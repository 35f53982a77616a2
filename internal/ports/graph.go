package ports

import (
	"context"

	"github.com/ahrav/go-cooke/internal/domain"
)

// MergeStrategy combines the States produced by the members of a Layer.
type MergeStrategy interface {
	// Merge folds states into baseState, the Layer's input.
	// The result must not depend on goroutine scheduling: given the same
	// inputs in the same order it returns the same State.
	Merge(baseState domain.State, states []domain.State) (domain.State, error)
}

// Executable is anything a calculation plan can run: a single unit, a
// pipeline of units, or a layer of independent units.
type Executable interface {
	// Execute runs the component on an immutable State and returns the
	// derived State. Several executables may receive the same State value
	// concurrently; use domain.With or State.WithMultiple to derive new data.
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// ID returns the identifier of the component within its plan.
	ID() string
}

// Pipeline runs executables in order, feeding each one the State returned
// by its predecessor.
type Pipeline interface {
	Executable

	// Add appends an executable to the sequence.
	Add(exec Executable) error

	// Executables returns the sequence in execution order.
	// Callers must not modify the returned slice.
	Executables() []Executable
}

// Layer runs independent executables concurrently on the same input State
// and merges their outputs.
type Layer interface {
	Executable

	// Add includes an executable in the layer.
	Add(exec Executable) error

	// Executables returns the members of the layer.
	// Callers must not modify the returned slice.
	Executables() []Executable

	// SetMergeStrategy replaces the default merge. It must be called
	// before Execute.
	SetMergeStrategy(strategy MergeStrategy)
}

// Graph is a directed acyclic graph of executables. An edge from a source
// to a target means the target consumes what the source produces.
type Graph interface {
	// AddNode registers an executable under its ID.
	AddNode(exec Executable) error

	// AddEdge records that targetID runs after sourceID. It fails when
	// either node is unknown, the edge exists, or it would close a cycle.
	AddEdge(sourceID, targetID string) error

	// TopologicalSort returns the nodes so that every source precedes its
	// targets.
	TopologicalSort() ([]Executable, error)

	// HasCycle reports whether the graph contains a cycle.
	HasCycle() bool

	// GetNode returns the executable registered under id.
	// The returned instance is shared with the graph and must be treated
	// as read-only.
	GetNode(id string) (Executable, bool)
}
