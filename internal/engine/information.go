package engine

import (
	"math"
)

// InformationScore returns the relative entropy, in nats, of the piecewise
// uniform density implied by values against the uniform background on
// [lo, hi]. values are on the background scale and probs are the bin
// probabilities of the elicited quantiles, one more than values.
//
// The score is 0 when any value is missing.
func InformationScore(lo, hi float64, values, probs []float64) float64 {
	for _, v := range values {
		if math.IsNaN(v) {
			return 0
		}
	}
	score := math.Log(hi - lo)
	prev := lo
	for j, p := range probs {
		next := hi
		if j < len(values) {
			next = values[j]
		}
		score += p * math.Log(p/(next-prev))
		prev = next
	}
	return score
}

// infoPerVar scores every expert on every item against bounds b.
func (d *Dataset) infoPerVar(b Bounds) [][]float64 {
	out := make([][]float64, len(d.expertIDs))
	for e := range d.expertIDs {
		out[e] = make([]float64, len(d.items))
		for i, it := range d.items {
			out[e][i] = InformationScore(b.Lower[i], b.Upper[i], d.bg[e][i], it.probs)
		}
	}
	return out
}

// meanNonZero averages the entries of row at included positions, skipping
// zeros. Zero scores mark unanswered items, so they do not dilute the mean.
// It returns NaN when nothing is left.
func meanNonZero(row []float64, include []bool) float64 {
	sum, n := 0.0, 0
	for i, v := range row {
		if !include[i] || v == 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
