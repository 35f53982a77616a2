package units

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/engine"
	"github.com/ahrav/go-cooke/internal/ports"
)

var (
	_ ports.Unit               = (*RobustnessUnit)(nil)
	_ ports.CombinationPlanner = (*RobustnessUnit)(nil)
)

// RobustnessUnit recomputes the decision maker while leaving out
// combinations of seed items or experts. Item robustness writes
// domain.KeyItemRobustness, expert robustness domain.KeyExpertRobustness.
type RobustnessUnit struct {
	name   string
	kind   string
	config RobustnessConfig
	deps   Deps
}

// RobustnessConfig configures a RobustnessUnit.
type RobustnessConfig struct {
	SettingsOverride `yaml:",inline" json:",inline"`

	// MinExclude and MaxExclude bound the size of the left out sets.
	MinExclude int `yaml:"min_exclude" json:"min_exclude" validate:"gte=0"`
	MaxExclude int `yaml:"max_exclude" json:"max_exclude" validate:"gte=0,gtefield=MinExclude"`
}

// NewItemRobustnessUnit creates a unit that leaves out seed items.
func NewItemRobustnessUnit(name string, config RobustnessConfig, deps Deps) (*RobustnessUnit, error) {
	return newRobustnessUnit(name, engine.KindItems, config, deps)
}

// NewExpertRobustnessUnit creates a unit that leaves out experts.
func NewExpertRobustnessUnit(name string, config RobustnessConfig, deps Deps) (*RobustnessUnit, error) {
	return newRobustnessUnit(name, engine.KindExperts, config, deps)
}

func newRobustnessUnit(name, kind string, config RobustnessConfig, deps Deps) (*RobustnessUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &RobustnessUnit{name: name, kind: kind, config: config, deps: deps}, nil
}

// Name returns the unit identifier.
func (u *RobustnessUnit) Name() string { return u.name }

// Kind returns engine.KindItems or engine.KindExperts.
func (u *RobustnessUnit) Kind() string { return u.kind }

// Execute evaluates every combination. Cancelling ctx stops the run between
// combinations and leaves state unchanged.
func (u *RobustnessUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
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

	minEx, maxEx := u.config.MinExclude, u.config.MaxExclude
	progress := u.deps.progress(u.name)
	var (
		table *domain.RobustnessTable
		key   domain.Key[*domain.RobustnessTable]
	)
	switch u.kind {
	case engine.KindItems:
		key = domain.KeyItemRobustness
		table, err = eng.ItemRobustness(ctx, calc.Data, calc.Params, minEx, maxEx, progress)
	default:
		key = domain.KeyExpertRobustness
		table, err = eng.ExpertRobustness(ctx, calc.Data, calc.Params, minEx, maxEx, progress)
	}
	if err != nil {
		return state, fmt.Errorf("%s robustness: %w", u.kind, err)
	}

	u.deps.logger().Info("robustness calculated", "unit", u.name, "kind", u.kind, "combinations", table.Len())
	next := domain.With(state, key, table).AppendWarnings(calc.Warnings...)
	return next.AddCombinations(int64(table.Len())), nil
}

// PlannedCombinations returns the number of exclusion sets Execute would
// evaluate on state.
func (u *RobustnessUnit) PlannedCombinations(state domain.State) (int64, error) {
	p, s, err := inputs(state, u.config.SettingsOverride)
	if err != nil {
		return 0, err
	}
	calc, err := engine.Prepare(p, s)
	if err != nil {
		return 0, err
	}
	n := calc.Data.NumExperts()
	if u.kind == engine.KindItems {
		n = len(calc.Data.SeedItemIDs())
	}
	return int64(engine.CountCombinations(n, u.config.MinExclude, u.config.MaxExclude)), nil
}

// Validate checks the unit configuration.
func (u *RobustnessUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration from a yaml node,
// rejecting unknown fields.
func (u *RobustnessUnit) UnmarshalParameters(params yaml.Node) error {
	config := DefaultRobustnessConfig()
	if err := decodeNode(params, &config); err != nil {
		return err
	}
	u.config = config
	return nil
}

// DefaultRobustnessConfig leaves out nothing and then every single entry.
func DefaultRobustnessConfig() RobustnessConfig {
	return RobustnessConfig{MinExclude: 0, MaxExclude: 1}
}

// CreateItemRobustnessUnit creates an item robustness unit from a plan
// parameter map.
func CreateItemRobustnessUnit(id string, config map[string]any, deps Deps) (*RobustnessUnit, error) {
	cfg := DefaultRobustnessConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewItemRobustnessUnit(id, cfg, deps)
}

// CreateExpertRobustnessUnit creates an expert robustness unit from a plan
// parameter map.
func CreateExpertRobustnessUnit(id string, config map[string]any, deps Deps) (*RobustnessUnit, error) {
	cfg := DefaultRobustnessConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewExpertRobustnessUnit(id, cfg, deps)
}
