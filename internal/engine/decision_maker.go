package engine

import (
	"fmt"
	"math"

	"github.com/ahrav/go-cooke/internal/domain"
)

// candidate is one synthesized decision maker. Values are indexed
// [item][used quantile]; excluded and no-consensus items hold NaN.
type candidate struct {
	raw         [][]float64
	cdf         [][]float64
	noConsensus []bool
}

// synthesize combines the expert CDFs of every item with the weights
// w[expert][item]. Items outside include are left NaN. Per item the
// weights of experts that did not answer are zeroed and the rest
// renormalized; when nothing is left the item has no consensus.
func (e *Engine) synthesize(d *Dataset, cdfs []ItemCDFs, w [][]float64, include []bool) (candidate, error) {
	c := candidate{
		raw:         make([][]float64, d.NumItems()),
		cdf:         make([][]float64, d.NumItems()),
		noConsensus: make([]bool, d.NumItems()),
	}
	weights := make([]float64, d.NumExperts())
	for i, it := range d.items {
		c.raw[i] = nanSlice(len(it.levels))
		if include != nil && !include[i] {
			continue
		}
		sum := 0.0
		for ex := range weights {
			weights[ex] = 0
			if cdfs[i].Answered[ex] {
				weights[ex] = w[ex][i]
				sum += weights[ex]
			}
		}
		if !(sum > 0) {
			c.noConsensus[i] = true
			continue
		}

		answers := cdfs[i].Answers
		f := make([]float64, len(answers))
		for ex, wt := range weights {
			if wt == 0 {
				continue
			}
			wt /= sum
			for k, p := range cdfs[i].F[ex] {
				f[k] += wt * p
			}
		}
		dist, err := e.factory.Build(answers, f)
		if err != nil {
			return candidate{}, fmt.Errorf("item %q: weighted cdf: %w", it.id, err)
		}
		scaled := onScale(dist, it.scale)
		for k, q := range it.levels {
			c.raw[i][k] = scaled.PPF(q)
		}
		c.cdf[i] = f
	}
	return c, nil
}

// selection is the outcome of synthesizing and ranking the candidates of
// one weight set.
type selection struct {
	best  candidate
	score domain.CandidateScore
	alpha float64
}

// selectCandidate synthesizes a decision maker per significance level in w
// and returns the one with the highest combined score. With a fixed alpha
// there is a single candidate. Ties keep the lowest level.
func (e *Engine) selectCandidate(d *Dataset, sc *ScoringContext, cdfs []ItemCDFs, w Weights, fixed *float64, include []bool) (selection, error) {
	var out selection
	bestScore := math.Inf(-1)
	found := false
	for a, level := range w.Alphas {
		cand, err := e.synthesize(d, cdfs, w.W[a], include)
		if err != nil {
			return selection{}, err
		}
		alpha := fixed
		if alpha == nil {
			alpha = &level
		}
		cs := ScoreCandidate(cand.raw, sc, alpha)
		if !found || cs.CombScore > bestScore {
			out = selection{best: cand, score: cs, alpha: level}
			found = true
			if !math.IsNaN(cs.CombScore) {
				bestScore = cs.CombScore
			}
		}
	}
	return out, nil
}

// DecisionMaker synthesizes the decision maker of the experts in d.
//
// With p.Alpha nil every distinct expert calibration score is tried as the
// significance level and the candidate with the highest combined score is
// returned. A fixed alpha above every expert's calibration is an error.
func (e *Engine) DecisionMaker(d *Dataset, p Params) (*domain.DecisionMaker, error) {
	if d.NumExperts() == 0 {
		return nil, domain.ErrNoExperts
	}
	if d.NumItems() == 0 {
		return nil, domain.ErrNoItems
	}
	sol, err := e.solve(d, p, true)
	if err != nil {
		return nil, err
	}
	sc, cdfs, w, sel := sol.sc, sol.cdfs, sol.w, sol.sel

	dm := &domain.DecisionMaker{
		ItemIDs:   d.ItemIDs(),
		Values:    make([][]float64, d.NumItems()),
		FullCDF:   make([]domain.CDF, d.NumItems()),
		Alpha:     sel.alpha,
		Optimised: p.Alpha == nil && p.Weight.PerformanceBased(),
		Scores:    sel.score,
	}
	if w.Warning != "" {
		dm.Warnings = append(dm.Warnings, w.Warning)
		e.logger.Warn("user weights normalised", "warning", w.Warning)
	}
	for i, it := range d.items {
		dm.Values[i] = d.globalRow(i, sel.best.raw[i], sc.bounds)
		if sel.best.noConsensus[i] {
			dm.NoConsensus = append(dm.NoConsensus, it.id)
			dm.Warnings = append(dm.Warnings, fmt.Sprintf("no expert with weight answered item %q, its decision maker values are undefined", it.id))
			e.logger.Warn("item without consensus", "item", it.id)
			continue
		}
		answers := cdfs[i].Answers
		values := make([]float64, len(answers))
		for k, x := range answers {
			values[k] = fromBackground(x, it.scale)
		}
		dm.FullCDF[i] = domain.CDF{Values: values, Probabilities: sel.best.cdf[i]}
	}
	e.logger.Debug("decision maker synthesized",
		"alpha", dm.Alpha,
		"optimised", dm.Optimised,
		"candidates", len(w.Alphas),
		"calibration", dm.Scores.Calibration,
		"info_real", dm.Scores.InfoReal,
	)
	return dm, nil
}

// solution holds the intermediate products of one synthesis.
type solution struct {
	sc   *ScoringContext
	cdfs []ItemCDFs
	w    Weights
	sel  selection
}

// solve scores the experts of d, weighs them and selects the decision
// maker. With strictAlpha a fixed alpha above every calibration score is an
// error; otherwise such a run yields a candidate without consensus.
func (e *Engine) solve(d *Dataset, p Params, strictAlpha bool) (solution, error) {
	sc, err := NewScoringContext(d, p)
	if err != nil {
		return solution{}, err
	}
	table := sc.table(p.Alpha)
	if strictAlpha && p.Alpha != nil && *p.Alpha > nanMax(table.Calibration) {
		return solution{}, fmt.Errorf("%w: alpha %g", domain.ErrAlphaTooHigh, *p.Alpha)
	}
	w, err := computeWeights(p.Weight, p.Alpha, weightInputs{
		calibration: table.Calibration,
		infoReal:    table.InfoReal,
		infoPerVar:  table.InfoPerVar,
		userWeights: d.userWeights,
		nItems:      d.NumItems(),
	})
	if err != nil {
		return solution{}, err
	}
	cdfs, err := ExpertCDFs(d, sc.bounds, e.factory)
	if err != nil {
		return solution{}, err
	}
	sel, err := e.selectCandidate(d, sc, cdfs, w, p.Alpha, nil)
	if err != nil {
		return solution{}, err
	}
	return solution{sc: sc, cdfs: cdfs, w: w, sel: sel}, nil
}

// globalRow lays out used-quantile values of item i as
// [lower, value per global quantile (NaN where unused), upper] on the
// original scale.
func (d *Dataset) globalRow(i int, used []float64, b Bounds) []float64 {
	it := d.items[i]
	row := nanSlice(len(d.quantiles) + 2)
	row[0] = fromBackground(b.Lower[i], it.scale)
	row[len(row)-1] = fromBackground(b.Upper[i], it.scale)
	for k, q := range it.use {
		row[q+1] = used[k]
	}
	return row
}

func nanMax(xs []float64) float64 {
	out := math.NaN()
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if math.IsNaN(out) || x > out {
			out = x
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
