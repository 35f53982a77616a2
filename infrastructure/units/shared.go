// Package units provides the calculation steps of the classical model as
// ports.Unit implementations, so they can be arranged in calculation plans.
package units

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-cooke/infrastructure/distribution"
	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/engine"
	"github.com/ahrav/go-cooke/internal/ports"
)

// Unit type names as referenced by calculation plans.
const (
	TypeScore            = "score"
	TypeDecisionMaker    = "decision_maker"
	TypeItemRobustness   = "item_robustness"
	TypeExpertRobustness = "expert_robustness"
)

// Common errors returned by calculation units.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrMissingProject is returned when the state carries no project.
	ErrMissingProject = errors.New("no project in state")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// ProgressHook receives robustness progress per unit.
type ProgressHook func(unit string, done, total int)

// Deps are the collaborators shared by every unit of a plan.
type Deps struct {
	// Distributions resolves the distribution family named by the settings.
	// A nil registry falls back to distribution.NewRegistry.
	Distributions *distribution.Registry
	Logger        *slog.Logger
	Progress      ProgressHook
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}

func (d Deps) engine(family string) (*engine.Engine, error) {
	reg := d.Distributions
	if reg == nil {
		reg = distribution.NewRegistry()
	}
	f, err := reg.Get(family)
	if err != nil {
		return nil, err
	}
	return engine.New(f, engine.WithLogger(d.logger())), nil
}

func (d Deps) progress(unit string) ports.ProgressFunc {
	if d.Progress == nil {
		return nil
	}
	return func(done, total int) { d.Progress(unit, done, total) }
}

// SettingsOverride replaces individual calculation settings for one unit.
// Unset fields keep the value from the state's settings.
type SettingsOverride struct {
	Weight       domain.WeightType `yaml:"weight,omitempty" json:"weight,omitempty" validate:"omitempty,oneof=global item equal user"`
	Overshoot    *float64          `yaml:"overshoot,omitempty" json:"overshoot,omitempty" validate:"omitempty,gte=0"`
	Alpha        *float64          `yaml:"alpha,omitempty" json:"alpha,omitempty" validate:"omitempty,gte=0,lte=1"`
	Optimisation *bool             `yaml:"optimisation,omitempty" json:"optimisation,omitempty"`
	CalPower     *float64          `yaml:"calpower,omitempty" json:"calpower,omitempty" validate:"omitempty,gte=0"`
	Distribution string            `yaml:"distribution,omitempty" json:"distribution,omitempty"`
}

// Apply returns s with the overridden fields replaced.
func (o SettingsOverride) Apply(s domain.CalculationSettings) domain.CalculationSettings {
	if o.Weight != "" {
		s.Weight = o.Weight
	}
	if o.Overshoot != nil {
		s.Overshoot = *o.Overshoot
	}
	if o.Alpha != nil {
		a := *o.Alpha
		s.Alpha = &a
	}
	if o.Optimisation != nil {
		s.Optimisation = *o.Optimisation
	}
	if o.CalPower != nil {
		s.CalPower = *o.CalPower
	}
	if o.Distribution != "" {
		s.Distribution = o.Distribution
	}
	return s
}

// inputs reads the project and the effective settings of a unit from state.
// Missing settings fall back to the defaults.
func inputs(state domain.State, o SettingsOverride) (*domain.Project, domain.CalculationSettings, error) {
	p, ok := domain.Get(state, domain.KeyProject)
	if !ok || p == nil {
		return nil, domain.CalculationSettings{}, ErrMissingProject
	}
	s, ok := domain.Get(state, domain.KeySettings)
	if !ok {
		s = domain.DefaultCalculationSettings()
	}
	s = o.Apply(s)
	if err := validate.Struct(s); err != nil {
		return nil, domain.CalculationSettings{}, fmt.Errorf("invalid calculation settings: %w", err)
	}
	return p, s, nil
}

// decodeConfig decodes a plan parameter map into out with strict field
// checking and validates the result. Fields missing from config keep the
// values already in out.
func decodeConfig(config map[string]any, out any) error {
	raw, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return ports.NewConfigError("parameters", fmt.Errorf("parameter validation failed: %w", err))
	}
	return nil
}

// decodeNode is decodeConfig for parameters still held as a yaml node.
func decodeNode(params yaml.Node, out any) error {
	var m map[string]any
	if err := params.Decode(&m); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	return decodeConfig(m, out)
}
