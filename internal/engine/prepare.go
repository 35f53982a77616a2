package engine

import (
	"fmt"
	"math"

	"github.com/ahrav/go-cooke/internal/domain"
)

// Calculation is a dataset prepared from calculation settings.
type Calculation struct {
	Data   *Dataset
	Params Params
	// ExcludedExperts answered no item that counts for the weight type.
	ExcludedExperts []string
	Warnings        []string
}

// Prepare snapshots the non-excluded actual experts and items of p for a
// calculation with settings s.
//
// Experts that answered nothing are left out of the calculation: for
// performance based weights only seed items count, otherwise any item.
func Prepare(p *domain.Project, s domain.CalculationSettings) (*Calculation, error) {
	if _, err := domain.ParseWeightType(string(s.Weight)); err != nil {
		return nil, err
	}
	d, err := NewDataset(p, Selection{})
	if err != nil {
		return nil, err
	}
	if d.NumItems() == 0 {
		return nil, domain.ErrNoItems
	}

	c := &Calculation{Params: ParamsFromSettings(s)}
	var drop []int
	for e, ok := range d.AnsweredAny(s.Weight.PerformanceBased()) {
		if ok {
			continue
		}
		drop = append(drop, e)
		c.ExcludedExperts = append(c.ExcludedExperts, d.expertIDs[e])
	}
	if len(drop) > 0 {
		what := "any item"
		if s.Weight.PerformanceBased() {
			what = "any seed item"
		}
		c.Warnings = append(c.Warnings, fmt.Sprintf("experts %v did not answer %s and are excluded from the calculation", c.ExcludedExperts, what))
		d = d.WithoutExperts(drop)
	}
	if d.NumExperts() == 0 {
		return nil, domain.ErrNoExperts
	}
	c.Data = d
	return c, nil
}

// ExpertWeights returns the share of every expert in a decision maker that
// was synthesized at significance level alpha. Performance based weights
// use the combined score of experts calibrated at or above alpha, equal
// weights 1/n and user weights their normalised values.
func ExpertWeights(d *Dataset, t *domain.ScoreTable, weight domain.WeightType, alpha float64) (map[string]float64, error) {
	w := make([]float64, d.NumExperts())
	switch {
	case weight.PerformanceBased():
		for e := range w {
			w[e] = thresholded(t.Calibration[e], alpha) * t.InfoReal[e]
		}
		normalize(w)
	case weight == domain.WeightEqual:
		for e := range w {
			w[e] = 1 / float64(len(w))
		}
	case weight == domain.WeightUser:
		user, _, err := ValidateUserWeights(d.userWeights)
		if err != nil {
			return nil, err
		}
		copy(w, user)
	default:
		return nil, fmt.Errorf("%w: got %q", domain.ErrInvalidWeightType, weight)
	}

	out := make(map[string]float64, len(w))
	for e, id := range d.expertIDs {
		if math.IsNaN(w[e]) {
			w[e] = 0
		}
		out[id] = w[e]
	}
	return out, nil
}
