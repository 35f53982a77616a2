package application

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/go-cooke/infrastructure/units"
	"github.com/ahrav/go-cooke/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.UnitRegistry = (*DefaultUnitRegistry)(nil)

// DefaultUnitRegistry creates calculation units by type name. The four
// classical model units are registered up front; more can be added with
// RegisterUnitFactory.
type DefaultUnitRegistry struct {
	factories map[string]ports.UnitFactory
	mu        sync.RWMutex
	deps      units.Deps
}

// NewDefaultUnitRegistry returns a registry whose units share deps.
func NewDefaultUnitRegistry(deps units.Deps) *DefaultUnitRegistry {
	r := &DefaultUnitRegistry{
		factories: make(map[string]ports.UnitFactory),
		deps:      deps,
	}
	r.registerBuiltinFactories()
	return r
}

func (r *DefaultUnitRegistry) registerBuiltinFactories() {
	deps := r.deps

	r.factories[units.TypeScore] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateScoreUnit(id, config, deps)
	}
	r.factories[units.TypeDecisionMaker] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateDecisionMakerUnit(id, config, deps)
	}
	r.factories[units.TypeItemRobustness] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateItemRobustnessUnit(id, config, deps)
	}
	r.factories[units.TypeExpertRobustness] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateExpertRobustnessUnit(id, config, deps)
	}
}

// CreateUnit builds a unit of unitType from its decoded parameters.
func (r *DefaultUnitRegistry) CreateUnit(unitType string, id string, config map[string]any) (ports.Unit, error) {
	r.mu.RLock()
	factory, exists := r.factories[unitType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported unit type: %s", unitType)
	}
	if id == "" {
		return nil, fmt.Errorf("unit ID cannot be empty")
	}
	if config == nil {
		config = make(map[string]any)
	}

	unit, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit %s of type %s: %w", id, unitType, err)
	}
	return unit, nil
}

// RegisterUnitFactory registers or replaces the factory of a unit type.
func (r *DefaultUnitRegistry) RegisterUnitFactory(unitType string, factory ports.UnitFactory) error {
	if unitType == "" {
		return fmt.Errorf("unit type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[unitType] = factory
	return nil
}

// GetSupportedTypes returns the registered unit types in sorted order.
func (r *DefaultUnitRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for unitType := range r.factories {
		types = append(types, unitType)
	}
	slices.Sort(types)
	return types
}
