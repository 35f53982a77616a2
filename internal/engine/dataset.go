// Package engine implements Cooke's classical model: information and
// calibration scoring, expert weighting, decision maker synthesis with
// significance level optimisation, and robustness analysis.
//
// Every operation works on a Dataset, an immutable snapshot of a project, so
// a calculation never observes concurrent edits of the registry.
package engine

import (
	"fmt"
	"math"
	"slices"

	"github.com/ahrav/go-cooke/internal/domain"
)

// Selection restricts a Dataset to explicit experts and items. Nil slices
// select every non-excluded actual expert and every non-excluded item.
type Selection struct {
	Experts []string
	Items   []string
}

// Dataset is a read-only snapshot of the actual experts and items that take
// part in one calculation.
type Dataset struct {
	quantiles   []float64
	expertIDs   []string
	userWeights []float64
	items       []datasetItem
	// raw[e][i] holds the values at the item's used quantiles.
	raw [][][]float64
	// bg[e][i] is raw on the background scale of the item.
	bg [][][]float64
}

type datasetItem struct {
	id          string
	scale       domain.Scale
	realization float64
	use         []int
	levels      []float64
	probs       []float64
	bounds      [2]float64
	overshoots  [2]float64
}

func (it datasetItem) isSeed() bool { return !math.IsNaN(it.realization) }

// NewDataset snapshots a project. Decision makers are never part of a
// dataset; selecting one is an error.
func NewDataset(p *domain.Project, sel Selection) (*Dataset, error) {
	expertIDs := sel.Experts
	if expertIDs == nil {
		for _, e := range p.Experts() {
			if e.Role == domain.RoleActual && !e.Excluded {
				expertIDs = append(expertIDs, e.ID)
			}
		}
	}
	itemIDs := sel.Items
	if itemIDs == nil {
		for _, it := range p.Items() {
			if !it.Excluded {
				itemIDs = append(itemIDs, it.ID)
			}
		}
	}

	quantiles := p.Quantiles()
	d := &Dataset{quantiles: quantiles}

	for _, id := range itemIDs {
		it, err := p.Item(id)
		if err != nil {
			return nil, err
		}
		mask, err := p.UseQuantiles(id)
		if err != nil {
			return nil, err
		}
		di := datasetItem{
			id:          it.ID,
			scale:       it.Scale,
			realization: it.Realization,
			bounds:      it.Bounds,
			overshoots:  it.Overshoots,
		}
		for q, use := range mask {
			if use {
				di.use = append(di.use, q)
				di.levels = append(di.levels, quantiles[q])
			}
		}
		di.probs = domain.BinProbabilities(di.levels)
		d.items = append(d.items, di)
	}

	for _, id := range expertIDs {
		e, err := p.Expert(id)
		if err != nil {
			return nil, err
		}
		if e.IsDecisionMaker() {
			return nil, domain.NewModelError("expert", id, "select", fmt.Errorf("decision makers cannot be scored as experts"))
		}
		rawRows := make([][]float64, len(d.items))
		bgRows := make([][]float64, len(d.items))
		for i, it := range d.items {
			full, err := p.Values(id, it.id)
			if err != nil {
				return nil, err
			}
			rawRows[i] = make([]float64, len(it.use))
			for k, q := range it.use {
				rawRows[i][k] = full[q]
			}
			bgRows[i] = toBackground(rawRows[i], it.scale)
		}
		d.expertIDs = append(d.expertIDs, id)
		d.userWeights = append(d.userWeights, e.UserWeight)
		d.raw = append(d.raw, rawRows)
		d.bg = append(d.bg, bgRows)
	}
	return d, nil
}

// toBackground maps values onto the background scale of an item.
func toBackground(values []float64, scale domain.Scale) []float64 {
	out := slices.Clone(values)
	if scale.IsLog() {
		for k, v := range out {
			out[k] = math.Log(v)
		}
	}
	return out
}

// fromBackground is the inverse of toBackground for a single value.
func fromBackground(v float64, scale domain.Scale) float64 {
	if scale.IsLog() {
		return math.Exp(v)
	}
	return v
}

// WithoutExperts returns a dataset without the experts at the given indices.
func (d *Dataset) WithoutExperts(excluded []int) *Dataset {
	out := &Dataset{quantiles: d.quantiles, items: d.items}
	for e := range d.expertIDs {
		if slices.Contains(excluded, e) {
			continue
		}
		out.expertIDs = append(out.expertIDs, d.expertIDs[e])
		out.userWeights = append(out.userWeights, d.userWeights[e])
		out.raw = append(out.raw, d.raw[e])
		out.bg = append(out.bg, d.bg[e])
	}
	return out
}

// NumExperts returns the number of experts in the snapshot.
func (d *Dataset) NumExperts() int { return len(d.expertIDs) }

// NumItems returns the number of items in the snapshot.
func (d *Dataset) NumItems() int { return len(d.items) }

// ExpertIDs returns the expert ids in snapshot order.
func (d *Dataset) ExpertIDs() []string { return slices.Clone(d.expertIDs) }

// ItemIDs returns the item ids in snapshot order.
func (d *Dataset) ItemIDs() []string {
	out := make([]string, len(d.items))
	for i, it := range d.items {
		out[i] = it.id
	}
	return out
}

// Quantiles returns the global quantile levels of the source project.
func (d *Dataset) Quantiles() []float64 { return slices.Clone(d.quantiles) }

// seedIndices returns the item indices of seed items in snapshot order.
func (d *Dataset) seedIndices() []int {
	var out []int
	for i, it := range d.items {
		if it.isSeed() {
			out = append(out, i)
		}
	}
	return out
}

// SeedItemIDs returns the ids of the seed items in snapshot order.
func (d *Dataset) SeedItemIDs() []string {
	var out []string
	for _, i := range d.seedIndices() {
		out = append(out, d.items[i].id)
	}
	return out
}

// answered reports whether expert e gave every used value of item i.
func (d *Dataset) answered(e, i int) bool {
	if len(d.raw[e][i]) == 0 {
		return false
	}
	for _, v := range d.raw[e][i] {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// AnsweredAny reports, per expert, whether any value of any selected item is
// given. With seedsOnly only seed items count.
func (d *Dataset) AnsweredAny(seedsOnly bool) []bool {
	out := make([]bool, len(d.expertIDs))
	for e := range d.expertIDs {
		for i, it := range d.items {
			if seedsOnly && !it.isSeed() {
				continue
			}
			if slices.ContainsFunc(d.raw[e][i], func(v float64) bool { return !math.IsNaN(v) }) {
				out[e] = true
				break
			}
		}
	}
	return out
}
