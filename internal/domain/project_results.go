package domain

import (
	"fmt"
	"math"
)

// ApplyScores stores the scores of every expert in t, together with its
// weight in the decision maker. Items of the project missing from t get a
// zero information score.
func (p *Project) ApplyScores(t *ScoreTable, weights map[string]float64) error {
	for e, id := range t.Experts {
		s, _ := t.Scores(id)
		s.Weight = math.NaN()
		if w, ok := weights[id]; ok {
			s.Weight = w
		}
		if err := p.SetScores(id, s); err != nil {
			return err
		}

		row := make([]float64, p.NumItems())
		for k, itemID := range t.Items {
			if i, ok := p.items.index[itemID]; ok {
				row[i] = t.InfoPerVar[e][k]
			}
		}
		if err := p.SetInfoPerVar(id, row); err != nil {
			return err
		}
	}
	return nil
}

// PutDecisionMaker registers dm as the decision maker expert id, replacing
// an earlier decision maker with that id. Items the decision maker does not
// cover are left unanswered. An actual expert with the same id is never
// replaced.
func (p *Project) PutDecisionMaker(id, name string, dm *DecisionMaker) error {
	if e, ok := p.experts.index[id]; ok && p.experts.roles[e] != RoleDecisionMaker {
		return NewModelError("expert", id, "put decision maker",
			fmt.Errorf("%w: an actual expert has this id", ErrDuplicateID))
	}

	values := make([][]float64, p.NumItems())
	for i := range values {
		values[i] = nanSlice(p.NumQuantiles())
	}
	for k, itemID := range dm.ItemIDs {
		i, err := p.itemIndex(itemID, "put decision maker")
		if err != nil {
			return err
		}
		row := dm.Values[k]
		if len(row) != p.NumQuantiles()+2 {
			return NewModelError("expert", id, "put decision maker",
				fmt.Errorf("%w: got %d values for item %q, want %d", ErrShapeMismatch, len(row), itemID, p.NumQuantiles()+2))
		}
		copy(values[i], row[1:len(row)-1])
	}

	expert := Expert{
		ID:         id,
		Name:       name,
		Role:       RoleDecisionMaker,
		UserWeight: math.NaN(),
	}
	if err := p.AddExpert(expert, values, true); err != nil {
		return err
	}

	nseeds := 0
	for _, c := range dm.Scores.Counts {
		nseeds += c
	}
	scores := UnsetScores()
	scores.Calibration = dm.Scores.Calibration
	scores.InfoReal = dm.Scores.InfoReal
	scores.InfoTotal = dm.Scores.InfoTotal
	scores.CombScore = dm.Scores.CombScore
	scores.NSeeds = float64(nseeds)
	if err := p.SetScores(id, scores); err != nil {
		return err
	}

	for k, itemID := range dm.ItemIDs {
		if k < len(dm.FullCDF) && !dm.FullCDF[k].Empty() {
			if err := p.SetFullCDF(id, itemID, dm.FullCDF[k]); err != nil {
				return err
			}
		}
	}
	return nil
}
