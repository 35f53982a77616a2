// Package distribution provides the tabulated distributions used to turn
// quantile assessments into cumulative distribution functions.
package distribution

import "math"

// Interp evaluates the piecewise linear function through (xp[k], fp[k]) at x.
//
// xp must be non-decreasing. The segment used is the one starting at the
// largest j with xp[j] <= x, which keeps the result well defined when xp
// has repeated values. Outside [xp[0], xp[len-1]] the end values are
// returned. A NaN x yields NaN.
func Interp(x float64, xp, fp []float64) float64 {
	n := len(xp)
	if n == 0 || math.IsNaN(x) {
		return math.NaN()
	}
	if x < xp[0] {
		return fp[0]
	}
	if x >= xp[n-1] {
		return fp[n-1]
	}
	// Invariant: xp[lo] <= x < xp[hi].
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := int(uint(lo+hi) >> 1)
		if xp[mid] <= x {
			lo = mid
		} else {
			hi = mid
		}
	}
	if x == xp[lo] {
		return fp[lo]
	}
	t := (x - xp[lo]) / (xp[hi] - xp[lo])
	return fp[lo] + t*(fp[hi]-fp[lo])
}
