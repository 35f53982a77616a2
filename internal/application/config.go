package application

import (
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-cooke/internal/domain"
)

// PlanConfig is the YAML form of a calculation plan: the units to run and
// the topology that orders them.
type PlanConfig struct {
	// Version is the plan schema version, X.Y.Z.
	Version  string   `yaml:"version" validate:"required,semver"`
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Settings are the calculation settings placed in the initial state.
	// Callers may override them. Units can override single fields through
	// their parameters.
	Settings *domain.CalculationSettings `yaml:"settings,omitempty"`
	Units    []UnitConfig                `yaml:"units" validate:"required,min=1,dive"`
	Graph    PlanTopology                `yaml:"graph"`
}

// Metadata describes a plan.
type Metadata struct {
	Name        string            `yaml:"name" validate:"required,min=1,max=255"`
	Description string            `yaml:"description" validate:"max=1000"`
	Tags        []string          `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
	Labels      map[string]string `yaml:"labels" validate:"max=50"`
}

// UnitConfig declares one unit of a plan.
type UnitConfig struct {
	ID   string `yaml:"id" validate:"required,unitid,min=1,max=100"`
	Type string `yaml:"type" validate:"required,oneof=score decision_maker item_robustness expert_robustness"`
	// Parameters are decoded by the unit itself and may override
	// calculation settings.
	Parameters yaml.Node     `yaml:"parameters"`
	Budget     BudgetConfig  `yaml:"budget"`
	Timeout    TimeoutConfig `yaml:"timeout"`
}

// BudgetConfig limits the work of a unit.
type BudgetConfig struct {
	// MaxCombinations caps the robustness combinations a unit may
	// evaluate. Zero means unlimited.
	MaxCombinations int64 `yaml:"max_combinations" validate:"omitempty,min=1,max=100000000"`
}

// TimeoutConfig limits the run time of a unit.
type TimeoutConfig struct {
	ExecutionTimeout int `yaml:"execution_timeout_seconds" validate:"omitempty,min=1,max=86400"`
}

// PlanTopology orders the units. Units that are not part of a pipeline or
// layer are nodes of their own.
type PlanTopology struct {
	Pipelines []PipelineConfig `yaml:"pipelines" validate:"dive"`
	Layers    []LayerConfig    `yaml:"layers" validate:"dive"`
	Edges     []EdgeConfig     `yaml:"edges" validate:"dive"`
}

// PipelineConfig runs units in order.
type PipelineConfig struct {
	ID    string   `yaml:"id" validate:"required,unitid,min=1,max=100"`
	Units []string `yaml:"units" validate:"required,min=1,dive,unitid"`
}

// LayerConfig runs independent units concurrently on the same state.
type LayerConfig struct {
	ID    string   `yaml:"id" validate:"required,unitid,min=1,max=100"`
	Units []string `yaml:"units" validate:"required,min=2,dive,unitid"`
	// MaxConcurrency bounds the units running at once. Zero uses the
	// layer default.
	MaxConcurrency int `yaml:"max_concurrency" validate:"omitempty,min=1,max=64"`
}

// EdgeConfig makes To run after From.
type EdgeConfig struct {
	From string `yaml:"from" validate:"required,unitid"`
	To   string `yaml:"to" validate:"required,unitid"`
}
