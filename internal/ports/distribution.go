package ports

// Distribution is a univariate cumulative distribution.
type Distribution interface {
	// CDF returns P(X <= x).
	CDF(x float64) float64

	// PPF returns the quantile function at probability p, the inverse of CDF.
	PPF(p float64) float64
}

// DistributionFactory builds expert distributions from tabulated points.
//
// xs and ps have equal length, xs is non-decreasing and ps runs from 0 at
// the lower bound to 1 at the upper bound with the elicited quantile levels
// in between.
type DistributionFactory interface {
	Build(xs, ps []float64) (Distribution, error)

	// Name identifies the family, as referenced by calculation settings.
	Name() string
}
