package engine

import (
	"fmt"
	"math"
	"slices"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// ItemCDFs tabulates every expert's CDF for one item on a shared grid.
type ItemCDFs struct {
	// Answers is [lower, distinct answers..., upper] on the background scale.
	Answers []float64
	// F[e][k] is expert e's CDF at Answers[k]; all zero when e did not answer.
	F        [][]float64
	Answered []bool
}

// ExpertCDFs evaluates each expert's distribution, built by the factory
// through (lower, 0), the elicited (value, quantile) pairs and (upper, 1),
// on the union of all answers for every item.
func ExpertCDFs(d *Dataset, b Bounds, factory ports.DistributionFactory) ([]ItemCDFs, error) {
	out := make([]ItemCDFs, d.NumItems())
	for i, it := range d.items {
		lo, hi := b.Lower[i], b.Upper[i]

		var distinct []float64
		for e := range d.expertIDs {
			for _, v := range d.bg[e][i] {
				if !math.IsNaN(v) {
					distinct = append(distinct, v)
				}
			}
		}
		slices.Sort(distinct)
		distinct = slices.Compact(distinct)

		c := ItemCDFs{
			Answers:  append(append([]float64{lo}, distinct...), hi),
			F:        make([][]float64, d.NumExperts()),
			Answered: make([]bool, d.NumExperts()),
		}
		ps := append(append([]float64{0}, it.levels...), 1)
		for e := range d.expertIDs {
			c.F[e] = make([]float64, len(c.Answers))
			if !d.answered(e, i) {
				continue
			}
			c.Answered[e] = true
			xs := append(append([]float64{lo}, d.bg[e][i]...), hi)
			dist, err := factory.Build(xs, ps)
			if err != nil {
				return nil, fmt.Errorf("expert %q item %q: %w", d.expertIDs[e], it.id, err)
			}
			for k, x := range c.Answers {
				c.F[e][k] = dist.CDF(x)
			}
		}
		out[i] = c
	}
	return out, nil
}

// logScale presents a distribution over log values on the original scale.
type logScale struct {
	inner ports.Distribution
}

func (l logScale) CDF(x float64) float64 { return l.inner.CDF(math.Log(x)) }

func (l logScale) PPF(p float64) float64 { return math.Exp(l.inner.PPF(p)) }

// onScale wraps a background distribution for the scale of an item.
func onScale(dist ports.Distribution, scale domain.Scale) ports.Distribution {
	if scale.IsLog() {
		return logScale{inner: dist}
	}
	return dist
}

// ExpertDistribution returns the distribution of one expert on one item on
// the item's original scale.
func (e *Engine) ExpertDistribution(d *Dataset, b Bounds, expert, item int) (ports.Distribution, error) {
	if !d.answered(expert, item) {
		return nil, domain.NewModelError("expert", d.expertIDs[expert], "distribution",
			fmt.Errorf("item %q is not answered", d.items[item].id))
	}
	it := d.items[item]
	xs := append(append([]float64{b.Lower[item]}, d.bg[expert][item]...), b.Upper[item])
	ps := append(append([]float64{0}, it.levels...), 1)
	dist, err := e.factory.Build(xs, ps)
	if err != nil {
		return nil, err
	}
	return onScale(dist, it.scale), nil
}
