package domain

import (
	"fmt"
	"math"
	"slices"
)

// ItemIDs returns the item ids in registry order.
func (p *Project) ItemIDs() []string { return slices.Clone(p.items.ids) }

// HasItem reports whether an item id is registered.
func (p *Project) HasItem(id string) bool {
	_, ok := p.items.index[id]
	return ok
}

// Item returns the registry view of one item.
func (p *Project) Item(id string) (Item, error) {
	i, err := p.itemIndex(id, "get")
	if err != nil {
		return Item{}, err
	}
	return p.itemAt(i), nil
}

// Items returns all items in registry order.
func (p *Project) Items() []Item {
	out := make([]Item, len(p.items.ids))
	for i := range p.items.ids {
		out[i] = p.itemAt(i)
	}
	return out
}

// SeedItemIDs returns the ids of items with a realization.
func (p *Project) SeedItemIDs() []string {
	out := make([]string, 0, len(p.items.ids))
	for i, id := range p.items.ids {
		if !math.IsNaN(p.items.realizations[i]) {
			out = append(out, id)
		}
	}
	return out
}

func (p *Project) itemAt(i int) Item {
	return Item{
		ID:          p.items.ids[i],
		Scale:       p.items.scales[i],
		Realization: p.items.realizations[i],
		Question:    p.items.questions[i],
		Unit:        p.items.units[i],
		Bounds:      p.items.bounds[i],
		Overshoots:  p.items.overshoots[i],
		Quantiles:   p.usedQuantiles(i),
		Excluded:    p.items.excluded[i],
	}
}

func (p *Project) usedQuantiles(i int) []float64 {
	out := make([]float64, 0, len(p.quantiles))
	for q, use := range p.items.use[i] {
		if use {
			out = append(out, p.quantiles[q])
		}
	}
	return out
}

// UseQuantiles returns a copy of the quantile mask of an item.
func (p *Project) UseQuantiles(id string) ([]bool, error) {
	i, err := p.itemIndex(id, "get quantiles")
	if err != nil {
		return nil, err
	}
	return slices.Clone(p.items.use[i]), nil
}

func (p *Project) itemIndex(id, op string) (int, error) {
	i, ok := p.items.index[id]
	if !ok {
		return -1, NewModelError("item", id, op, ErrUnknownItem)
	}
	return i, nil
}

// quantileMask converts quantile levels into a mask over the global levels.
// An empty list selects every level.
func (p *Project) quantileMask(levels []float64) ([]bool, error) {
	mask := make([]bool, len(p.quantiles))
	if len(levels) == 0 {
		for q := range mask {
			mask[q] = true
		}
		return mask, nil
	}
	for _, level := range levels {
		q := slices.Index(p.quantiles, level)
		if q < 0 {
			return nil, fmt.Errorf("%w: %g", ErrUnknownQuantile, level)
		}
		mask[q] = true
	}
	return mask, nil
}

// AddItem registers an item at the end of the registry. Every expert gets
// an unanswered assessment for it. Use NewItem for a value with unset
// realization, bounds and overshoots.
func (p *Project) AddItem(item Item) error {
	if item.ID == "" {
		return NewModelError("item", item.ID, "add", ErrEmptyID)
	}
	if _, exists := p.items.index[item.ID]; exists {
		return NewModelError("item", item.ID, "add", ErrDuplicateID)
	}
	scale := item.Scale
	if scale == "" {
		scale = ScaleUniform
	}
	if _, err := ParseScale(string(scale)); err != nil {
		return NewModelError("item", item.ID, "add", err)
	}
	mask, err := p.quantileMask(item.Quantiles)
	if err != nil {
		return NewModelError("item", item.ID, "add", err)
	}

	p.items.ids = append(p.items.ids, item.ID)
	p.items.scales = append(p.items.scales, scale)
	p.items.realizations = append(p.items.realizations, item.Realization)
	p.items.questions = append(p.items.questions, item.Question)
	p.items.units = append(p.items.units, item.Unit)
	p.items.bounds = append(p.items.bounds, item.Bounds)
	p.items.overshoots = append(p.items.overshoots, item.Overshoots)
	p.items.use = append(p.items.use, mask)
	p.items.excluded = append(p.items.excluded, item.Excluded)
	p.items.index[item.ID] = len(p.items.ids) - 1

	for e := range p.values {
		p.values[e] = append(p.values[e], nanSlice(p.NumQuantiles()))
		p.infoPerVar[e] = append(p.infoPerVar[e], 0)
		p.fullCDF[e] = append(p.fullCDF[e], CDF{})
	}
	return nil
}

// RemoveItem deletes an item and compacts every item column and the item
// axis of the assessment, information and CDF tables.
func (p *Project) RemoveItem(id string) error {
	i, err := p.itemIndex(id, "remove")
	if err != nil {
		return err
	}
	p.items.ids = slices.Delete(p.items.ids, i, i+1)
	p.items.scales = slices.Delete(p.items.scales, i, i+1)
	p.items.realizations = slices.Delete(p.items.realizations, i, i+1)
	p.items.questions = slices.Delete(p.items.questions, i, i+1)
	p.items.units = slices.Delete(p.items.units, i, i+1)
	p.items.bounds = slices.Delete(p.items.bounds, i, i+1)
	p.items.overshoots = slices.Delete(p.items.overshoots, i, i+1)
	p.items.use = slices.Delete(p.items.use, i, i+1)
	p.items.excluded = slices.Delete(p.items.excluded, i, i+1)
	p.items.index = indexOf(p.items.ids)

	for e := range p.values {
		p.values[e] = slices.Delete(p.values[e], i, i+1)
		p.infoPerVar[e] = slices.Delete(p.infoPerVar[e], i, i+1)
		p.fullCDF[e] = slices.Delete(p.fullCDF[e], i, i+1)
	}
	return nil
}

// MoveItem moves an item to position newPos, shifting the items in between.
func (p *Project) MoveItem(id string, newPos int) error {
	old, err := p.itemIndex(id, "move")
	if err != nil {
		return err
	}
	if newPos < 0 || newPos >= p.NumItems() {
		return NewModelError("item", id, "move", fmt.Errorf("%w: %d", ErrInvalidPosition, newPos))
	}
	order := make([]int, 0, p.NumItems())
	for i := range p.NumItems() {
		if i != old {
			order = append(order, i)
		}
	}
	order = slices.Insert(order, newPos, old)

	p.items.ids = permute(p.items.ids, order)
	p.items.scales = permute(p.items.scales, order)
	p.items.realizations = permute(p.items.realizations, order)
	p.items.questions = permute(p.items.questions, order)
	p.items.units = permute(p.items.units, order)
	p.items.bounds = permute(p.items.bounds, order)
	p.items.overshoots = permute(p.items.overshoots, order)
	p.items.use = permute(p.items.use, order)
	p.items.excluded = permute(p.items.excluded, order)
	p.items.index = indexOf(p.items.ids)

	for e := range p.values {
		p.values[e] = permute(p.values[e], order)
		p.infoPerVar[e] = permute(p.infoPerVar[e], order)
		p.fullCDF[e] = permute(p.fullCDF[e], order)
	}
	return nil
}

func permute[T any](s []T, order []int) []T {
	out := make([]T, len(order))
	for dst, src := range order {
		out[dst] = s[src]
	}
	return out
}

// SetRealization sets the realization of an item; NaN makes it a target item.
func (p *Project) SetRealization(id string, r float64) error {
	i, err := p.itemIndex(id, "set realization")
	if err != nil {
		return err
	}
	p.items.realizations[i] = r
	return nil
}

// SetScale sets the background scale of an item.
func (p *Project) SetScale(id string, s Scale) error {
	i, err := p.itemIndex(id, "set scale")
	if err != nil {
		return err
	}
	parsed, err := ParseScale(string(s))
	if err != nil {
		return NewModelError("item", id, "set scale", err)
	}
	p.items.scales[i] = parsed
	return nil
}

// SetItemText sets the question and unit of an item.
func (p *Project) SetItemText(id, question, unit string) error {
	i, err := p.itemIndex(id, "set text")
	if err != nil {
		return err
	}
	p.items.questions[i] = question
	p.items.units[i] = unit
	return nil
}

// SetBounds sets hard lower and upper bounds for an item; NaN leaves a side open.
func (p *Project) SetBounds(id string, lower, upper float64) error {
	i, err := p.itemIndex(id, "set bounds")
	if err != nil {
		return err
	}
	p.items.bounds[i] = [2]float64{lower, upper}
	return nil
}

// SetOvershoots overrides the global overshoot per side; NaN keeps the global value.
func (p *Project) SetOvershoots(id string, lower, upper float64) error {
	i, err := p.itemIndex(id, "set overshoots")
	if err != nil {
		return err
	}
	p.items.overshoots[i] = [2]float64{lower, upper}
	return nil
}

// SetItemQuantiles selects the quantile levels elicited for an item.
// An empty list selects every global level.
func (p *Project) SetItemQuantiles(id string, levels []float64) error {
	i, err := p.itemIndex(id, "set quantiles")
	if err != nil {
		return err
	}
	mask, err := p.quantileMask(levels)
	if err != nil {
		return NewModelError("item", id, "set quantiles", err)
	}
	p.items.use[i] = mask
	return nil
}

// SetItemExcluded soft-disables an item from calculations.
func (p *Project) SetItemExcluded(id string, excluded bool) error {
	i, err := p.itemIndex(id, "exclude")
	if err != nil {
		return err
	}
	p.items.excluded[i] = excluded
	return nil
}
