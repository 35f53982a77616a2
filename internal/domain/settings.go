package domain

import (
	"fmt"
	"strings"
)

// WeightType selects how expert weights are derived.
type WeightType string

const (
	// WeightGlobal weighs experts by calibration times seed information.
	WeightGlobal WeightType = "global"
	// WeightItem weighs experts per item by calibration times item information.
	WeightItem WeightType = "item"
	// WeightEqual gives every expert the same weight.
	WeightEqual WeightType = "equal"
	// WeightUser uses the user-assigned weights.
	WeightUser WeightType = "user"
)

// ParseWeightType converts a case-insensitive weight type string.
func ParseWeightType(s string) (WeightType, error) {
	switch w := WeightType(strings.ToLower(strings.TrimSpace(s))); w {
	case WeightGlobal, WeightItem, WeightEqual, WeightUser:
		return w, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidWeightType, s)
	}
}

// PerformanceBased reports whether the weights depend on calibration.
func (w WeightType) PerformanceBased() bool {
	return w == WeightGlobal || w == WeightItem
}

// CalculationSettings describes one decision maker calculation.
// A nil Alpha together with Optimisation asks the engine to search for the
// significance level that maximizes the decision maker's combined score.
type CalculationSettings struct {
	ID           string     `yaml:"id" json:"id" validate:"required"`
	Name         string     `yaml:"name" json:"name"`
	Weight       WeightType `yaml:"weight" json:"weight" validate:"required,oneof=global item equal user"`
	Overshoot    float64    `yaml:"overshoot" json:"overshoot" validate:"gte=0"`
	Alpha        *float64   `yaml:"alpha,omitempty" json:"alpha,omitempty" validate:"omitempty,gte=0,lte=1"`
	Optimisation bool       `yaml:"optimisation" json:"optimisation"`
	Robustness   bool       `yaml:"robustness" json:"robustness"`
	CalPower     float64    `yaml:"calpower" json:"calpower" validate:"gte=0"`
	Distribution string     `yaml:"distribution" json:"distribution" validate:"omitempty,oneof=pwl"`
}

// DefaultCalculationSettings returns the settings of a standard
// performance-based decision maker with significance-level optimisation.
func DefaultCalculationSettings() CalculationSettings {
	alpha := 0.0
	return CalculationSettings{
		ID:           "DM",
		Name:         "Decision Maker",
		Weight:       WeightGlobal,
		Overshoot:    0.1,
		Alpha:        &alpha,
		Optimisation: true,
		Robustness:   true,
		CalPower:     1.0,
		Distribution: "pwl",
	}
}

// DisplayName returns Name, or ID when no name is set.
func (s CalculationSettings) DisplayName() string {
	if s.Name == "" {
		return s.ID
	}
	return s.Name
}

// EffectiveAlpha applies the significance level policy: performance-based
// weights with optimisation search (nil), performance-based weights without
// optimisation use the configured level, equal and user weights use 0.
func (s CalculationSettings) EffectiveAlpha() *float64 {
	if s.Weight.PerformanceBased() {
		if s.Optimisation {
			return nil
		}
		if s.Alpha == nil {
			zero := 0.0
			return &zero
		}
		a := *s.Alpha
		return &a
	}
	zero := 0.0
	return &zero
}

// Float64 returns a pointer to v. It is a convenience for Alpha.
func Float64(v float64) *float64 { return &v }
