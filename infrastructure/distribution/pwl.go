package distribution

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// NamePWL identifies the piecewise linear family in calculation settings.
const NamePWL = "pwl"

var (
	// ErrLengthMismatch indicates value and probability tables of different length.
	ErrLengthMismatch = errors.New("values and probabilities differ in length")
	// ErrTooFewPoints indicates a table with fewer than two points.
	ErrTooFewPoints = errors.New("at least two points are required")
	// ErrNotMonotone indicates a decreasing value or probability table, or NaN.
	ErrNotMonotone = errors.New("points must be non-decreasing")
	// ErrProbabilityRange indicates a probability outside [0, 1].
	ErrProbabilityRange = errors.New("probabilities must lie in [0, 1]")
)

// probTolerance absorbs rounding in weighted sums of CDFs.
const probTolerance = 1e-9

// PiecewiseLinear is the distribution obtained by linear interpolation
// between tabulated (value, probability) points. Between two quantile
// assessments it spreads probability uniformly, the minimum information
// assumption of the classical model.
type PiecewiseLinear struct {
	xs []float64
	ps []float64
}

var _ ports.Distribution = (*PiecewiseLinear)(nil)

// NewPiecewiseLinear validates and copies the tables.
func NewPiecewiseLinear(xs, ps []float64) (*PiecewiseLinear, error) {
	if len(xs) != len(ps) {
		return nil, fmt.Errorf("%w: %d values, %d probabilities", ErrLengthMismatch, len(xs), len(ps))
	}
	if len(xs) < 2 {
		return nil, ErrTooFewPoints
	}
	for k := range xs {
		if math.IsNaN(xs[k]) || math.IsNaN(ps[k]) {
			return nil, fmt.Errorf("%w: NaN at point %d", ErrNotMonotone, k)
		}
		if ps[k] < -probTolerance || ps[k] > 1+probTolerance {
			return nil, fmt.Errorf("%w: got %g at point %d", ErrProbabilityRange, ps[k], k)
		}
		if k > 0 && (xs[k] < xs[k-1] || ps[k] < ps[k-1]-probTolerance) {
			return nil, fmt.Errorf("%w: point %d", ErrNotMonotone, k)
		}
	}
	return &PiecewiseLinear{xs: slices.Clone(xs), ps: slices.Clone(ps)}, nil
}

// CDF returns P(X <= x), 0 below the first point and the last probability above.
func (d *PiecewiseLinear) CDF(x float64) float64 { return Interp(x, d.xs, d.ps) }

// PPF returns the value at which the CDF reaches p.
func (d *PiecewiseLinear) PPF(p float64) float64 { return Interp(p, d.ps, d.xs) }

// Table returns copies of the tabulated points.
func (d *PiecewiseLinear) Table() domain.CDF {
	return domain.CDF{Values: slices.Clone(d.xs), Probabilities: slices.Clone(d.ps)}
}

// PWLFactory builds PiecewiseLinear distributions.
type PWLFactory struct{}

var _ ports.DistributionFactory = PWLFactory{}

// Build implements ports.DistributionFactory.
func (PWLFactory) Build(xs, ps []float64) (ports.Distribution, error) {
	return NewPiecewiseLinear(xs, ps)
}

// Name implements ports.DistributionFactory.
func (PWLFactory) Name() string { return NamePWL }
