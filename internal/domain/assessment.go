package domain

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// Assessment is one expert's answer to one item: the item's elicited
// quantile levels and the matching values. It is an immutable value built
// from the project on every access, so it never goes stale.
type Assessment struct {
	ExpertID  string
	ItemID    string
	Scale     Scale
	Quantiles []float64
	Values    []float64
}

// Complete reports whether every elicited quantile has a value.
func (a Assessment) Complete() bool {
	for _, v := range a.Values {
		if math.IsNaN(v) {
			return false
		}
	}
	return len(a.Values) > 0
}

// Answered reports whether at least one value is given.
func (a Assessment) Answered() bool {
	return slices.ContainsFunc(a.Values, func(v float64) bool { return !math.IsNaN(v) })
}

// Assessment returns the values of an expert for the quantiles elicited on an item.
func (p *Project) Assessment(expertID, itemID string) (Assessment, error) {
	e, err := p.expertIndex(expertID, "get assessment")
	if err != nil {
		return Assessment{}, err
	}
	i, err := p.itemIndex(itemID, "get assessment")
	if err != nil {
		return Assessment{}, err
	}
	a := Assessment{
		ExpertID: expertID,
		ItemID:   itemID,
		Scale:    p.items.scales[i],
	}
	for q, use := range p.items.use[i] {
		if use {
			a.Quantiles = append(a.Quantiles, p.quantiles[q])
			a.Values = append(a.Values, p.values[e][i][q])
		}
	}
	return a, nil
}

// Values returns an expert's values for an item over all global quantiles.
func (p *Project) Values(expertID, itemID string) ([]float64, error) {
	e, err := p.expertIndex(expertID, "get values")
	if err != nil {
		return nil, err
	}
	i, err := p.itemIndex(itemID, "get values")
	if err != nil {
		return nil, err
	}
	return slices.Clone(p.values[e][i]), nil
}

// SetAssessment stores an expert's values for the quantiles elicited on an
// item, in ascending quantile order. Positions of quantiles the item does not
// use are set to NaN.
func (p *Project) SetAssessment(expertID, itemID string, values []float64) error {
	e, err := p.expertIndex(expertID, "set assessment")
	if err != nil {
		return err
	}
	i, err := p.itemIndex(itemID, "set assessment")
	if err != nil {
		return err
	}
	used := 0
	for _, use := range p.items.use[i] {
		if use {
			used++
		}
	}
	if len(values) != used {
		return NewModelError("item", itemID, "set assessment",
			fmt.Errorf("%w: got %d values for %d quantiles", ErrShapeMismatch, len(values), used))
	}
	if err := checkOrdered(values); err != nil {
		return NewModelError("item", itemID, "set assessment", err)
	}
	row := nanSlice(p.NumQuantiles())
	k := 0
	for q, use := range p.items.use[i] {
		if use {
			row[q] = values[k]
			k++
		}
	}
	p.values[e][i] = row
	return nil
}

// checkOrdered reports ErrUnorderedValues unless the non-NaN values are
// strictly increasing. NaN marks an unanswered level and is skipped.
func checkOrdered(values []float64) error {
	prev, k := math.NaN(), -1
	for q, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if !math.IsNaN(prev) && v <= prev {
			return fmt.Errorf("%w: %g at position %d follows %g at position %d", ErrUnorderedValues, v, q, prev, k)
		}
		prev, k = v, q
	}
	return nil
}

// SetValue stores one value of an expert for an item at a global quantile level.
func (p *Project) SetValue(expertID, itemID string, quantile, value float64) error {
	e, err := p.expertIndex(expertID, "set value")
	if err != nil {
		return err
	}
	i, err := p.itemIndex(itemID, "set value")
	if err != nil {
		return err
	}
	q := slices.Index(p.quantiles, quantile)
	if q < 0 {
		return NewModelError("quantile", formatQuantile(quantile), "set value", ErrUnknownQuantile)
	}
	row := slices.Clone(p.values[e][i])
	row[q] = value
	if err := checkOrdered(row); err != nil {
		return NewModelError("item", itemID, "set value", err)
	}
	p.values[e][i] = row
	return nil
}

// AddQuantile inserts a global quantile level at its sorted position.
// Existing assessments get NaN at the new level and no item uses it yet.
func (p *Project) AddQuantile(q float64) error {
	if !(q > 0 && q < 1) {
		return NewModelError("quantile", formatQuantile(q), "add", ErrInvalidQuantile)
	}
	if slices.Contains(p.quantiles, q) {
		return NewModelError("quantile", formatQuantile(q), "add", ErrDuplicateQuantile)
	}
	pos := sort.SearchFloat64s(p.quantiles, q)
	p.quantiles = slices.Insert(p.quantiles, pos, q)
	for i := range p.items.use {
		p.items.use[i] = slices.Insert(p.items.use[i], pos, false)
	}
	for e := range p.values {
		for i := range p.values[e] {
			p.values[e][i] = slices.Insert(p.values[e][i], pos, math.NaN())
		}
	}
	return nil
}

// RemoveQuantile deletes a global quantile level and its values.
func (p *Project) RemoveQuantile(q float64) error {
	pos := slices.Index(p.quantiles, q)
	if pos < 0 {
		return NewModelError("quantile", formatQuantile(q), "remove", ErrUnknownQuantile)
	}
	p.quantiles = slices.Delete(p.quantiles, pos, pos+1)
	for i := range p.items.use {
		p.items.use[i] = slices.Delete(p.items.use[i], pos, pos+1)
	}
	for e := range p.values {
		for i := range p.values[e] {
			p.values[e][i] = slices.Delete(p.values[e][i], pos, pos+1)
		}
	}
	return nil
}
