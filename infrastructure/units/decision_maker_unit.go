package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/engine"
	"github.com/ahrav/go-cooke/internal/ports"
)

var _ ports.Unit = (*DecisionMakerUnit)(nil)

// DecisionMakerUnit synthesizes the decision maker of the project in state.
// It writes the decision maker and the expert scores at its significance
// level, and with Store set also a project that carries the decision maker
// as an expert.
type DecisionMakerUnit struct {
	name   string
	config DecisionMakerConfig
	deps   Deps
}

// DecisionMakerConfig configures a DecisionMakerUnit.
type DecisionMakerConfig struct {
	SettingsOverride `yaml:",inline" json:",inline"`

	// Store adds the decision maker and the expert scores to the project.
	Store bool `yaml:"store" json:"store"`
}

// NewDecisionMakerUnit creates a DecisionMakerUnit after validating its configuration.
func NewDecisionMakerUnit(name string, config DecisionMakerConfig, deps Deps) (*DecisionMakerUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &DecisionMakerUnit{name: name, config: config, deps: deps}, nil
}

// Name returns the unit identifier.
func (u *DecisionMakerUnit) Name() string { return u.name }

// Execute runs the decision maker calculation.
func (u *DecisionMakerUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
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

	dm, err := eng.DecisionMaker(calc.Data, calc.Params)
	if err != nil {
		return state, fmt.Errorf("decision maker %s: %w", s.ID, err)
	}
	alpha := dm.Alpha
	table, err := eng.Scores(calc.Data, calc.Params.WithAlpha(&alpha))
	if err != nil {
		return state, fmt.Errorf("scoring experts: %w", err)
	}

	next := domain.With(state, domain.KeyDecisionMaker, dm)
	next = domain.With(next, domain.KeyScores, table)
	next = next.AppendWarnings(calc.Warnings...).AppendWarnings(dm.Warnings...)

	if u.config.Store {
		weights, err := engine.ExpertWeights(calc.Data, table, s.Weight, dm.Alpha)
		if err != nil {
			return state, err
		}
		if err := p.ApplyScores(table, weights); err != nil {
			return state, err
		}
		if err := p.PutDecisionMaker(s.ID, s.DisplayName(), dm); err != nil {
			return state, err
		}
		next = domain.With(next, domain.KeyProject, p)
	}

	u.deps.logger().Info("decision maker calculated",
		"unit", u.name,
		"id", s.ID,
		"alpha", dm.Alpha,
		"calibration", dm.Scores.Calibration,
		"comb_score", dm.Scores.CombScore,
		"no_consensus", len(dm.NoConsensus))
	return next, nil
}

// Validate checks the unit configuration.
func (u *DecisionMakerUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from a yaml node,
// rejecting unknown fields.
func (u *DecisionMakerUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultDecisionMakerConfig()
	if err := decodeNode(params, &config); err != nil {
		return err
	}
	u.config = config
	return nil
}

// DefaultDecisionMakerConfig stores the decision maker in the project.
func DefaultDecisionMakerConfig() DecisionMakerConfig {
	return DecisionMakerConfig{Store: true}
}

// CreateDecisionMakerUnit creates a DecisionMakerUnit from a plan parameter map.
func CreateDecisionMakerUnit(id string, config map[string]any, deps Deps) (*DecisionMakerUnit, error) {
	cfg := DefaultDecisionMakerConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewDecisionMakerUnit(id, cfg, deps)
}
