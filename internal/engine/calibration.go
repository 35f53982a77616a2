package engine

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-cooke/internal/domain"
)

// calibrationSchema is the quantile layout shared by all seed items.
type calibrationSchema struct {
	levels []float64
	probs  []float64
}

// calibrationSchema returns the quantiles used for calibration. Every seed
// item must elicit the same quantile levels.
func (d *Dataset) calibrationSchema() (calibrationSchema, error) {
	var first []int
	for n, i := range d.seedIndices() {
		it := d.items[i]
		if n == 0 {
			first = it.use
			continue
		}
		if !slices.Equal(first, it.use) {
			return calibrationSchema{}, domain.NewModelError("item", it.id, "calibrate", domain.ErrHeterogeneousQuantiles)
		}
	}
	s := calibrationSchema{}
	for _, q := range first {
		s.levels = append(s.levels, d.quantiles[q])
	}
	s.probs = domain.BinProbabilities(s.levels)
	return s, nil
}

// seedHit records where a realization falls relative to one assessment.
type seedHit struct {
	answered bool
	// below[k] reports realization <= value k. Missing values never count.
	below []bool
}

// seedHits evaluates an assessment set against every seed item. values is
// indexed [item][used quantile] on the original scale; seeds lists the item
// indices of seed items.
func (d *Dataset) seedHits(values [][]float64, seeds []int) []seedHit {
	out := make([]seedHit, len(seeds))
	for s, i := range seeds {
		r := d.items[i].realization
		h := seedHit{below: make([]bool, len(values[i]))}
		for k, v := range values[i] {
			if math.IsNaN(v) {
				continue
			}
			h.answered = true
			h.below[k] = r <= v
		}
		out[s] = h
	}
	return out
}

// binCounts returns the number of realizations per inter-quantile bin over
// the included seed positions. nq is the number of calibration quantiles.
func binCounts(hits []seedHit, include []bool, nq int) []int {
	below := make([]int, nq)
	answered := 0
	for s, h := range hits {
		if include != nil && !include[s] {
			continue
		}
		if h.answered {
			answered++
		}
		for k, b := range h.below {
			if b {
				below[k]++
			}
		}
	}
	m := make([]int, nq+1)
	if nq == 0 {
		m[0] = answered
		return m
	}
	m[0] = below[0]
	for k := 1; k < nq; k++ {
		m[k] = below[k] - below[k-1]
	}
	m[nq] = answered - below[nq-1]
	return m
}

func sumInts(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

// CalibrationScore returns the p-value of the likelihood ratio test that
// the realizations were drawn with the bin probabilities probs, given the
// observed bin counts. nmin scales the statistic to the smallest number of
// seed items answered by any expert so experts are compared on equal power.
//
// It returns NaN when counts is empty.
func CalibrationScore(counts []int, probs []float64, nmin int, calPower float64) float64 {
	total := sumInts(counts)
	if total <= 0 || len(counts) < 2 {
		return math.NaN()
	}
	mi := 0.0
	for k, c := range counts {
		s := float64(c) / float64(total)
		if s > 0 {
			mi += s * math.Log(s/probs[k])
		}
	}
	stat := 2 * float64(nmin) * mi * calPower
	if math.IsNaN(stat) {
		return math.NaN()
	}
	chi2 := distuv.ChiSquared{K: float64(len(counts) - 1)}
	return clamp01(1 - chi2.CDF(stat))
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
