package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/engine"
	"github.com/ahrav/go-cooke/internal/ports"
)

var _ ports.Unit = (*ScoreUnit)(nil)

// ScoreUnit computes calibration and information scores of the actual
// experts and stores them under domain.KeyScores.
// The unit is stateless and safe for concurrent execution.
type ScoreUnit struct {
	name   string
	config ScoreConfig
	deps   Deps
}

// ScoreConfig configures a ScoreUnit.
type ScoreConfig struct {
	SettingsOverride `yaml:",inline" json:",inline"`
}

// NewScoreUnit creates a ScoreUnit after validating its configuration.
func NewScoreUnit(name string, config ScoreConfig, deps Deps) (*ScoreUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &ScoreUnit{name: name, config: config, deps: deps}, nil
}

// Name returns the unit identifier.
func (u *ScoreUnit) Name() string { return u.name }

// Execute scores the experts of the project in state.
func (u *ScoreUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if err := ctx.Err(); err != nil {
		return state, err
	}
	p, s, err := inputs(state, u.config.SettingsOverride)
	if err != nil {
		return state, err
	}
	calc, err := engine.Prepare(p, s)
	if err != nil {
		return state, err
	}
	eng, err := u.deps.engine(s.Distribution)
	if err != nil {
		return state, err
	}
	table, err := eng.Scores(calc.Data, calc.Params)
	if err != nil {
		return state, fmt.Errorf("scoring experts: %w", err)
	}

	u.deps.logger().Debug("experts scored", "unit", u.name, "experts", len(table.Experts), "nmin", table.Nmin)
	return domain.With(state, domain.KeyScores, table).AppendWarnings(calc.Warnings...), nil
}

// Validate checks the unit configuration.
func (u *ScoreUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from a yaml node,
// rejecting unknown fields.
func (u *ScoreUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultScoreConfig()
	if err := decodeNode(params, &config); err != nil {
		return err
	}
	u.config = config
	return nil
}

// DefaultScoreConfig returns a ScoreConfig that uses the state settings unchanged.
func DefaultScoreConfig() ScoreConfig { return ScoreConfig{} }

// CreateScoreUnit creates a ScoreUnit from a plan parameter map.
func CreateScoreUnit(id string, config map[string]any, deps Deps) (*ScoreUnit, error) {
	cfg := DefaultScoreConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewScoreUnit(id, cfg, deps)
}
