package domain

import (
	"fmt"
	"math"
	"strings"
)

// Scale is the background measure of an item. Log-scale items are scored
// and aggregated on the natural logarithm of their values.
type Scale string

const (
	// ScaleUniform scores values as given.
	ScaleUniform Scale = "uni"
	// ScaleLog scores the natural logarithm of values.
	ScaleLog Scale = "log"
)

// ParseScale converts a case-insensitive "uni" or "log" into a Scale.
func ParseScale(s string) (Scale, error) {
	switch Scale(strings.ToLower(strings.TrimSpace(s))) {
	case ScaleUniform:
		return ScaleUniform, nil
	case ScaleLog:
		return ScaleLog, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidScale, s)
	}
}

// IsLog reports whether values are scored on a logarithmic background.
func (s Scale) IsLog() bool { return s == ScaleLog }

// Item is a question put to the experts. An item with a realization is a
// seed item and takes part in calibration; without one it is a target item.
//
// Bounds and Overshoots use NaN for "unset". Quantiles lists the quantile
// levels elicited for this item; it must be a subset of the project's global
// quantiles. An empty Quantiles list on AddItem means "all global quantiles".
type Item struct {
	ID          string
	Scale       Scale
	Realization float64
	Question    string
	Unit        string
	Bounds      [2]float64
	Overshoots  [2]float64
	Quantiles   []float64
	Excluded    bool
}

// NewItem returns a uniform-scale target item with unset bounds and overshoots.
func NewItem(id string) Item {
	return Item{
		ID:          id,
		Scale:       ScaleUniform,
		Realization: math.NaN(),
		Bounds:      [2]float64{math.NaN(), math.NaN()},
		Overshoots:  [2]float64{math.NaN(), math.NaN()},
	}
}

// IsSeed reports whether the item has a known realization.
func (it Item) IsSeed() bool { return !math.IsNaN(it.Realization) }
