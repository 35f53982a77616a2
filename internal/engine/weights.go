package engine

import (
	"fmt"
	"math"
	"slices"

	"github.com/ahrav/go-cooke/internal/domain"
)

// Weights holds expert weights per significance level candidate.
// W is indexed [alpha][expert][item].
type Weights struct {
	Alphas  []float64
	W       [][][]float64
	Warning string
}

// weightInputs are the scores a weighting policy reads.
type weightInputs struct {
	calibration []float64
	infoReal    []float64
	infoPerVar  [][]float64
	userWeights []float64
	// itemInclude masks items out of item weights; nil includes all.
	itemInclude []bool
	nItems      int
}

// Weights computes the expert weights for the scores in t.
func (e *Engine) Weights(d *Dataset, t *domain.ScoreTable, p Params) (Weights, error) {
	return computeWeights(p.Weight, p.Alpha, weightInputs{
		calibration: t.Calibration,
		infoReal:    t.InfoReal,
		infoPerVar:  t.InfoPerVar,
		userWeights: d.userWeights,
		nItems:      d.NumItems(),
	})
}

// Alphas returns the significance level candidates: the distinct observed
// calibration scores in ascending order when alpha is nil, else alpha.
func Alphas(calibration []float64, alpha *float64) []float64 {
	if alpha != nil {
		return []float64{*alpha}
	}
	out := make([]float64, 0, len(calibration))
	for _, c := range calibration {
		if !math.IsNaN(c) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func computeWeights(kind domain.WeightType, alpha *float64, in weightInputs) (Weights, error) {
	nExperts := len(in.calibration)
	var alphas []float64
	if kind.PerformanceBased() {
		alphas = Alphas(in.calibration, alpha)
		if len(alphas) == 0 {
			return Weights{}, domain.ErrNoSeedItems
		}
	} else {
		a := 0.0
		if alpha != nil {
			a = *alpha
		}
		alphas = []float64{a}
	}

	w := Weights{Alphas: alphas, W: make([][][]float64, len(alphas))}
	for a := range alphas {
		w.W[a] = make([][]float64, nExperts)
		for e := range nExperts {
			w.W[a][e] = make([]float64, in.nItems)
		}
	}

	switch kind {
	case domain.WeightGlobal:
		for a, level := range alphas {
			perExpert := make([]float64, nExperts)
			for e := range nExperts {
				perExpert[e] = thresholded(in.calibration[e], level) * in.infoReal[e]
			}
			normalize(perExpert)
			for e := range nExperts {
				for i := range in.nItems {
					if in.itemInclude == nil || in.itemInclude[i] {
						w.W[a][e][i] = perExpert[e]
					}
				}
			}
		}

	case domain.WeightItem:
		for a, level := range alphas {
			column := make([]float64, nExperts)
			for i := range in.nItems {
				if in.itemInclude != nil && !in.itemInclude[i] {
					continue
				}
				for e := range nExperts {
					column[e] = thresholded(in.calibration[e], level) * in.infoPerVar[e][i]
				}
				normalize(column)
				for e := range nExperts {
					w.W[a][e][i] = column[e]
				}
			}
		}

	case domain.WeightEqual:
		for a := range alphas {
			for e := range nExperts {
				for i := range in.nItems {
					w.W[a][e][i] = 1 / float64(nExperts)
				}
			}
		}

	case domain.WeightUser:
		user, warning, err := ValidateUserWeights(in.userWeights)
		if err != nil {
			return Weights{}, err
		}
		w.Warning = warning
		for a := range alphas {
			for e := range nExperts {
				for i := range in.nItems {
					w.W[a][e][i] = user[e]
				}
			}
		}

	default:
		return Weights{}, fmt.Errorf("%w: got %q", domain.ErrInvalidWeightType, kind)
	}
	return w, nil
}

// thresholded returns cal when it reaches level and 0 otherwise. NaN
// scores carry no weight.
func thresholded(cal, level float64) float64 {
	if math.IsNaN(cal) || cal < level {
		return 0
	}
	return cal
}

// normalize scales xs to sum to one in place, treating NaN as zero. When
// nothing is positive every entry is set to zero.
func normalize(xs []float64) {
	sum := 0.0
	for i, x := range xs {
		if math.IsNaN(x) {
			xs[i] = 0
			continue
		}
		sum += x
	}
	for i := range xs {
		if sum > 0 {
			xs[i] /= sum
		} else {
			xs[i] = 0
		}
	}
}

// ValidateUserWeights checks user weights and normalizes them to sum to
// one. NaN marks an expert without a weight and counts as zero. A non-empty
// warning is returned when the weights had to be normalized.
func ValidateUserWeights(weights []float64) ([]float64, string, error) {
	allUnset := true
	for _, w := range weights {
		if !math.IsNaN(w) {
			allUnset = false
		}
		if w < 0 {
			return nil, "", domain.ErrNegativeUserWeight
		}
	}
	if allUnset {
		return nil, "", domain.ErrUserWeightsUnset
	}
	out := make([]float64, len(weights))
	sum := 0.0
	for e, w := range weights {
		if !math.IsNaN(w) {
			out[e] = w
			sum += w
		}
	}
	if sum == 0 {
		return nil, "", domain.ErrZeroUserWeights
	}
	if sum == 1 {
		return out, "", nil
	}
	for e := range out {
		out[e] /= sum
	}
	return out, fmt.Sprintf("sum of user weights is not equal to 1.0 (current sum is %g), weights are normalised", sum), nil
}
