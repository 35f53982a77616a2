package distribution

import (
	"math"

	"github.com/ahrav/go-cooke/internal/domain"
)

// Empirical wraps a stored decision maker CDF so it can be evaluated like
// any other distribution. The table may be empty when the item had no
// consensus; every evaluation then returns NaN.
type Empirical struct {
	table domain.CDF
	pwl   *PiecewiseLinear
}

// NewEmpirical returns a distribution over a tabulated CDF.
func NewEmpirical(c domain.CDF) (*Empirical, error) {
	if c.Empty() {
		return &Empirical{table: c}, nil
	}
	pwl, err := NewPiecewiseLinear(c.Values, c.Probabilities)
	if err != nil {
		return nil, err
	}
	return &Empirical{table: c, pwl: pwl}, nil
}

// CDF returns P(X <= x).
func (e *Empirical) CDF(x float64) float64 {
	if e.pwl == nil {
		return math.NaN()
	}
	return e.pwl.CDF(x)
}

// PPF returns the value at which the CDF reaches p.
func (e *Empirical) PPF(p float64) float64 {
	if e.pwl == nil {
		return math.NaN()
	}
	return e.pwl.PPF(p)
}

// Quantiles evaluates PPF at every level.
func (e *Empirical) Quantiles(levels []float64) []float64 {
	out := make([]float64, len(levels))
	for k, p := range levels {
		out[k] = e.PPF(p)
	}
	return out
}
