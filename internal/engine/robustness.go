package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// Robustness table kinds.
const (
	KindItems   = "items"
	KindExperts = "experts"
)

func checkRobustnessWeight(w domain.WeightType) error {
	if !w.PerformanceBased() {
		return fmt.Errorf("%w: got %q", domain.ErrRobustnessWeight, w)
	}
	return nil
}

func nanScore() domain.RobustnessScore {
	return domain.RobustnessScore{InfoTotal: math.NaN(), InfoReal: math.NaN(), Calibration: math.NaN()}
}

// ItemRobustness recomputes the decision maker while leaving out every
// combination of minExclude to maxExclude seed items.
//
// Bounds, expert CDFs and per item information scores do not depend on the
// other items, so they are computed once. Per combination only calibration,
// Nmin, seed information and the weights are recomputed; the left out items
// are also dropped from the decision maker's information totals.
//
// The context is checked between combinations. A cancelled run returns the
// context error and no table.
func (e *Engine) ItemRobustness(ctx context.Context, d *Dataset, p Params, minExclude, maxExclude int, progress ports.ProgressFunc) (*domain.RobustnessTable, error) {
	if err := checkRobustnessWeight(p.Weight); err != nil {
		return nil, err
	}
	sc, err := NewScoringContext(d, p)
	if err != nil {
		return nil, err
	}
	combos, err := Combinations(len(sc.seeds), minExclude, maxExclude)
	if err != nil {
		return nil, err
	}

	info := d.infoPerVar(sc.bounds)
	hits := sc.expertHits()
	cdfs, err := ExpertCDFs(d, sc.bounds, e.factory)
	if err != nil {
		return nil, err
	}
	nq := len(sc.schema.levels)

	table := &domain.RobustnessTable{Kind: KindItems, Rows: make([]domain.RobustnessRow, 0, len(combos))}
	for n, combo := range combos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		include := allTrue(len(sc.seeds))
		excluded := make([]string, len(combo))
		for k, s := range combo {
			include[s] = false
			excluded[k] = d.items[sc.seeds[s]].id
		}
		sub := sc.withSeeds(include, hits)
		seedMask := sub.seedItemMask()

		cal := make([]float64, d.NumExperts())
		infoReal := make([]float64, d.NumExperts())
		for ex := range cal {
			counts := binCounts(hits[ex], include, nq)
			cal[ex] = math.NaN()
			if sumInts(counts) > 0 {
				cal[ex] = CalibrationScore(counts, sc.schema.probs, sub.nmin, sc.calPower)
			}
			infoReal[ex] = meanNonZero(info[ex], seedMask)
		}

		score, err := e.robustnessScore(d, sub, cdfs, p, weightInputs{
			calibration: cal,
			infoReal:    infoReal,
			infoPerVar:  info,
			userWeights: d.userWeights,
			itemInclude: sub.itemInclude,
			nItems:      d.NumItems(),
		})
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, domain.RobustnessRow{Excluded: excluded, Score: score})
		if progress != nil {
			progress(n+1, len(combos))
		}
	}
	e.logger.Debug("item robustness complete", "combinations", len(combos))
	return table, nil
}

// robustnessScore weighs, synthesizes and scores one combination. A
// combination in which no expert keeps any weight scores NaN.
func (e *Engine) robustnessScore(d *Dataset, sc *ScoringContext, cdfs []ItemCDFs, p Params, in weightInputs) (domain.RobustnessScore, error) {
	w, err := computeWeights(p.Weight, p.Alpha, in)
	if errors.Is(err, domain.ErrNoSeedItems) {
		return nanScore(), nil
	}
	if err != nil {
		return domain.RobustnessScore{}, err
	}
	if allZero(w) {
		return nanScore(), nil
	}
	sel, err := e.selectCandidate(d, sc, cdfs, w, p.Alpha, in.itemInclude)
	if err != nil {
		return domain.RobustnessScore{}, err
	}
	return domain.RobustnessScore{
		InfoTotal:   sel.score.InfoTotal,
		InfoReal:    sel.score.InfoReal,
		Calibration: sel.score.Calibration,
	}, nil
}

func allZero(w Weights) bool {
	for _, perAlpha := range w.W {
		for _, perExpert := range perAlpha {
			for _, x := range perExpert {
				if x != 0 {
					return false
				}
			}
		}
	}
	return true
}

// ExpertRobustness recomputes the decision maker while leaving out every
// combination of minExclude to maxExclude experts.
//
// Leaving out an expert can move the intrinsic range of an item, so every
// combination is scored on its own dataset: bounds, CDFs, information,
// calibration and Nmin all follow the remaining experts.
func (e *Engine) ExpertRobustness(ctx context.Context, d *Dataset, p Params, minExclude, maxExclude int, progress ports.ProgressFunc) (*domain.RobustnessTable, error) {
	if err := checkRobustnessWeight(p.Weight); err != nil {
		return nil, err
	}
	if _, err := d.calibrationSchema(); err != nil {
		return nil, err
	}
	combos, err := Combinations(d.NumExperts(), minExclude, maxExclude)
	if err != nil {
		return nil, err
	}

	table := &domain.RobustnessTable{Kind: KindExperts, Rows: make([]domain.RobustnessRow, 0, len(combos))}
	for n, combo := range combos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		excluded := make([]string, len(combo))
		for k, ex := range combo {
			excluded[k] = d.expertIDs[ex]
		}
		sub := d.WithoutExperts(combo)

		score := nanScore()
		sol, err := e.solve(sub, p, false)
		switch {
		case errors.Is(err, domain.ErrNoSeedItems):
		case err != nil:
			return nil, fmt.Errorf("excluding %v: %w", excluded, err)
		case !allZero(sol.w):
			score = domain.RobustnessScore{
				InfoTotal:   sol.sel.score.InfoTotal,
				InfoReal:    sol.sel.score.InfoReal,
				Calibration: sol.sel.score.Calibration,
			}
		}
		table.Rows = append(table.Rows, domain.RobustnessRow{Excluded: excluded, Score: score})
		if progress != nil {
			progress(n+1, len(combos))
		}
	}
	e.logger.Debug("expert robustness complete", "combinations", len(combos))
	return table, nil
}
