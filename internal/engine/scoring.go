package engine

import (
	"math"

	"github.com/ahrav/go-cooke/internal/domain"
)

// Params are the numeric settings of one calculation.
type Params struct {
	Weight    domain.WeightType
	Overshoot float64
	// Alpha is the significance level. Nil asks the decision maker to
	// search for the level that maximizes its combined score.
	Alpha    *float64
	CalPower float64
}

// ParamsFromSettings applies the significance level policy of s.
func ParamsFromSettings(s domain.CalculationSettings) Params {
	return Params{
		Weight:    s.Weight,
		Overshoot: s.Overshoot,
		Alpha:     s.EffectiveAlpha(),
		CalPower:  s.CalPower,
	}
}

// WithAlpha returns p with the significance level replaced.
func (p Params) WithAlpha(alpha *float64) Params {
	p.Alpha = alpha
	return p
}

// ScoringContext carries everything needed to score an assessment set
// against a dataset. Experts and candidate decision makers are scored by
// the same context, so their scores are directly comparable.
type ScoringContext struct {
	data   *Dataset
	bounds Bounds
	schema calibrationSchema
	seeds  []int
	// seedInclude is indexed by seed position, itemInclude by item index.
	seedInclude []bool
	itemInclude []bool
	nmin        int
	calPower    float64
}

// NewScoringContext derives bounds, calibration schema and Nmin from the
// experts of d.
func NewScoringContext(d *Dataset, p Params) (*ScoringContext, error) {
	schema, err := d.calibrationSchema()
	if err != nil {
		return nil, err
	}
	sc := &ScoringContext{
		data:        d,
		bounds:      d.Bounds(p.Overshoot, nil),
		schema:      schema,
		seeds:       d.seedIndices(),
		itemInclude: allTrue(d.NumItems()),
		calPower:    p.CalPower,
	}
	sc.seedInclude = allTrue(len(sc.seeds))
	sc.nmin = sc.minAnswered(sc.expertHits())
	return sc, nil
}

// Bounds returns the background bounds used for scoring.
func (sc *ScoringContext) Bounds() Bounds { return sc.bounds }

// Nmin returns the smallest number of seed items answered by an expert
// that answered any.
func (sc *ScoringContext) Nmin() int { return sc.nmin }

// withSeeds returns a copy restricted to the included seed positions, with
// excluded seed items also removed from the information totals. Nmin is
// recomputed on the remaining seeds.
func (sc *ScoringContext) withSeeds(include []bool, hits [][]seedHit) *ScoringContext {
	out := *sc
	out.seedInclude = include
	out.itemInclude = allTrue(sc.data.NumItems())
	for s, i := range sc.seeds {
		if !include[s] {
			out.itemInclude[i] = false
		}
	}
	out.nmin = out.minAnswered(hits)
	return &out
}

func (sc *ScoringContext) expertHits() [][]seedHit {
	hits := make([][]seedHit, sc.data.NumExperts())
	for e := range hits {
		hits[e] = sc.data.seedHits(sc.data.raw[e], sc.seeds)
	}
	return hits
}

func (sc *ScoringContext) minAnswered(hits [][]seedHit) int {
	nmin := 0
	for _, h := range hits {
		n := sumInts(binCounts(h, sc.seedInclude, len(sc.schema.levels)))
		if n > 0 && (nmin == 0 || n < nmin) {
			nmin = n
		}
	}
	return nmin
}

// seedItemMask marks included seed items by item index.
func (sc *ScoringContext) seedItemMask() []bool {
	mask := make([]bool, sc.data.NumItems())
	for s, i := range sc.seeds {
		mask[i] = sc.seedInclude[s]
	}
	return mask
}

// ScoreCandidate scores one assessment set, indexed [item][used quantile]
// on the original scale. With a nil alpha the combined score is
// calibration times seed information; otherwise it is zeroed when the
// calibration falls below alpha.
func ScoreCandidate(values [][]float64, sc *ScoringContext, alpha *float64) domain.CandidateScore {
	cs, _ := sc.score(values, alpha)
	return cs
}

func (sc *ScoringContext) score(values [][]float64, alpha *float64) (domain.CandidateScore, []float64) {
	d := sc.data
	info := make([]float64, d.NumItems())
	for i, it := range d.items {
		if !sc.itemInclude[i] {
			continue
		}
		info[i] = InformationScore(sc.bounds.Lower[i], sc.bounds.Upper[i], toBackground(values[i], it.scale), it.probs)
	}
	counts := binCounts(d.seedHits(values, sc.seeds), sc.seedInclude, len(sc.schema.levels))
	cs := domain.CandidateScore{
		InfoReal:  meanNonZero(info, sc.seedItemMask()),
		InfoTotal: meanNonZero(info, sc.itemInclude),
		Counts:    counts,
	}
	cs.Calibration = math.NaN()
	if sumInts(counts) > 0 {
		cs.Calibration = CalibrationScore(counts, sc.schema.probs, sc.nmin, sc.calPower)
	}
	cs.CombScore = combinedScore(cs.Calibration, cs.InfoReal, alpha)
	return cs, info
}

func combinedScore(cal, infoReal float64, alpha *float64) float64 {
	if math.IsNaN(cal) {
		return math.NaN()
	}
	if alpha != nil && cal < *alpha {
		return 0
	}
	return cal * infoReal
}

// Scores scores every expert of d. Experts without an answered seed item
// get NaN calibration and seed information and are listed in Unscored.
func (e *Engine) Scores(d *Dataset, p Params) (*domain.ScoreTable, error) {
	sc, err := NewScoringContext(d, p)
	if err != nil {
		return nil, err
	}
	return sc.table(p.Alpha), nil
}

func (sc *ScoringContext) table(alpha *float64) *domain.ScoreTable {
	d := sc.data
	n := d.NumExperts()
	t := &domain.ScoreTable{
		Experts:     d.ExpertIDs(),
		Items:       d.ItemIDs(),
		InfoPerVar:  make([][]float64, n),
		Calibration: make([]float64, n),
		InfoReal:    make([]float64, n),
		InfoTotal:   make([]float64, n),
		CombScore:   make([]float64, n),
		NSeeds:      make([]int, n),
		Counts:      make([][]int, n),
		Nmin:        sc.nmin,
	}
	for e := range n {
		cs, info := sc.score(d.raw[e], alpha)
		t.InfoPerVar[e] = info
		t.Calibration[e] = cs.Calibration
		t.InfoReal[e] = cs.InfoReal
		t.InfoTotal[e] = cs.InfoTotal
		t.CombScore[e] = cs.CombScore
		t.Counts[e] = cs.Counts
		t.NSeeds[e] = sumInts(cs.Counts)
		if t.NSeeds[e] == 0 {
			t.InfoReal[e] = math.NaN()
			t.CombScore[e] = math.NaN()
			t.Unscored = append(t.Unscored, d.expertIDs[e])
		}
	}
	return t
}

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}
