package domain

import (
	"slices"
	"strings"
)

// CDF is a tabulated cumulative distribution: Probabilities[k] is the
// probability of a value at most Values[k]. Both slices are non-decreasing.
type CDF struct {
	Values        []float64
	Probabilities []float64
}

// Empty reports whether the CDF has no points.
func (c CDF) Empty() bool { return len(c.Values) == 0 }

// ScoreTable holds the scoring engine output for a set of experts.
// Rows follow Experts; InfoPerVar columns follow Items.
type ScoreTable struct {
	Experts     []string
	Items       []string
	InfoPerVar  [][]float64
	Calibration []float64
	InfoReal    []float64
	InfoTotal   []float64
	CombScore   []float64
	NSeeds      []int
	Counts      [][]int
	Nmin        int
	// Unscored lists experts without any answered seed item.
	Unscored []string
}

// Index returns the row of an expert, or -1.
func (t *ScoreTable) Index(expertID string) int {
	return slices.Index(t.Experts, expertID)
}

// Scores returns the scalar scores of one expert.
func (t *ScoreTable) Scores(expertID string) (ExpertScores, bool) {
	i := t.Index(expertID)
	if i < 0 {
		return UnsetScores(), false
	}
	s := UnsetScores()
	s.Calibration = t.Calibration[i]
	s.InfoReal = t.InfoReal[i]
	s.InfoTotal = t.InfoTotal[i]
	s.CombScore = t.CombScore[i]
	s.NSeeds = float64(t.NSeeds[i])
	return s, true
}

// CandidateScore is the score of a single assessment set, expert or
// candidate decision maker.
type CandidateScore struct {
	Calibration float64
	InfoReal    float64
	InfoTotal   float64
	CombScore   float64
	Counts      []int
}

// DecisionMaker is a synthesized aggregate expert.
//
// Values has one row per item in ItemIDs laid out as
// [lower bound, value per global quantile (NaN where unused), upper bound],
// all on the original scale of the item.
type DecisionMaker struct {
	ItemIDs []string
	Values  [][]float64
	FullCDF []CDF
	Alpha   float64
	// Optimised reports whether Alpha was found by search.
	Optimised bool
	Scores    CandidateScore
	// NoConsensus lists items for which no answering expert had weight.
	NoConsensus []string
	Warnings    []string
}

// Quantiles returns the DM values at the global quantiles for one item,
// without the bounds.
func (dm *DecisionMaker) Quantiles(itemID string) ([]float64, bool) {
	i := slices.Index(dm.ItemIDs, itemID)
	if i < 0 {
		return nil, false
	}
	row := dm.Values[i]
	return slices.Clone(row[1 : len(row)-1]), true
}

// RobustnessScore is the score of the decision maker for one exclusion set.
type RobustnessScore struct {
	InfoTotal   float64
	InfoReal    float64
	Calibration float64
}

// RobustnessRow is one exclusion combination and its score.
type RobustnessRow struct {
	Excluded []string
	Score    RobustnessScore
}

// RobustnessTable holds robustness rows in enumeration order.
type RobustnessTable struct {
	// Kind is "items" or "experts".
	Kind string
	Rows []RobustnessRow
}

// Lookup returns the score for an exclusion set given in enumeration order.
func (t *RobustnessTable) Lookup(excluded ...string) (RobustnessScore, bool) {
	key := strings.Join(excluded, "\x00")
	for _, row := range t.Rows {
		if strings.Join(row.Excluded, "\x00") == key {
			return row.Score, true
		}
	}
	return RobustnessScore{}, false
}

// Len returns the number of rows.
func (t *RobustnessTable) Len() int { return len(t.Rows) }

// Result is the frozen outcome of one calculation run.
type Result struct {
	RunID            string
	Settings         CalculationSettings
	Scores           *ScoreTable
	DecisionMaker    *DecisionMaker
	Weights          map[string]float64
	ItemRobustness   *RobustnessTable
	ExpertRobustness *RobustnessTable
	// ExcludedExperts lists experts dropped because they answered nothing.
	ExcludedExperts []string
	Warnings        []string
}
