package engine

import (
	"math"
)

// Bounds are the intrinsic range of every item on its background scale.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// Bounds returns the per-item intrinsic range over the given experts, or all
// experts when experts is nil.
//
// The range starts at the smallest and largest value given by the experts,
// widened to include the realization of seed items. Log-scale items are
// transformed before the overshoot is applied. The overshoot fraction of
// the range is added on each side, with per-item overshoots replacing the
// global one side by side. Item hard bounds finally clamp the range.
func (d *Dataset) Bounds(overshoot float64, experts []int) Bounds {
	if experts == nil {
		experts = make([]int, len(d.expertIDs))
		for e := range experts {
			experts[e] = e
		}
	}
	b := Bounds{
		Lower: make([]float64, len(d.items)),
		Upper: make([]float64, len(d.items)),
	}
	for i, it := range d.items {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, e := range experts {
			for _, v := range d.raw[e][i] {
				if math.IsNaN(v) {
					continue
				}
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
		}
		if it.isSeed() {
			lo = math.Min(lo, it.realization)
			hi = math.Max(hi, it.realization)
		}
		if math.IsInf(lo, 1) {
			// Nothing answered and no realization.
			b.Lower[i], b.Upper[i] = math.NaN(), math.NaN()
			continue
		}
		if it.scale.IsLog() {
			lo, hi = math.Log(lo), math.Log(hi)
		}

		kLo, kHi := overshoot, overshoot
		if !math.IsNaN(it.overshoots[0]) {
			kLo = it.overshoots[0]
		}
		if !math.IsNaN(it.overshoots[1]) {
			kHi = it.overshoots[1]
		}
		span := hi - lo
		lo -= kLo * span
		hi += kHi * span

		if userLo := it.bounds[0]; !math.IsNaN(userLo) {
			lo = math.Max(lo, toBackgroundValue(userLo, it.scale.IsLog()))
		}
		if userHi := it.bounds[1]; !math.IsNaN(userHi) {
			hi = math.Min(hi, toBackgroundValue(userHi, it.scale.IsLog()))
		}
		b.Lower[i], b.Upper[i] = lo, hi
	}
	return b
}

func toBackgroundValue(v float64, log bool) float64 {
	if log {
		return math.Log(v)
	}
	return v
}
