package projectio

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-cooke/internal/domain"
)

// saveModel is the format-neutral content of a project file. Every reader
// fills one and builds the project through project, so all formats share
// the same validation.
type saveModel struct {
	experts     []savedExpert
	items       []savedItem
	assessments []savedAssessment
}

type savedExpert struct {
	id         string
	name       string
	userWeight float64
}

type savedItem struct {
	id          string
	scale       string
	realization float64
	question    string
	unit        string
	bounds      [2]float64
	overshoots  [2]float64
	// quantiles are the levels elicited for this item, ascending.
	quantiles []float64
}

// savedAssessment holds one expert's values for the quantiles of an item.
type savedAssessment struct {
	expert string
	item   string
	values []float64
}

var folder = cases.Fold()

// normaliseKey folds case and reads underscores as spaces, so "User_Weight"
// and "user weight" name the same field.
func normaliseKey(key string) string {
	return strings.ReplaceAll(folder.String(strings.TrimSpace(key)), "_", " ")
}

// project builds a project whose global quantiles are the union of the item
// quantiles. Assessments missing from the file stay unanswered.
func (m *saveModel) project() (*domain.Project, error) {
	var levels []float64
	for _, it := range m.items {
		levels = append(levels, it.quantiles...)
	}
	slices.Sort(levels)
	levels = slices.Compact(levels)

	p, err := domain.NewProject(levels...)
	if err != nil {
		return nil, err
	}

	for _, s := range m.items {
		scale, err := domain.ParseScale(folder.String(s.scale))
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", s.id, err)
		}
		it := domain.NewItem(s.id)
		it.Scale = scale
		it.Realization = s.realization
		it.Question = s.question
		it.Unit = s.unit
		it.Bounds = s.bounds
		it.Overshoots = s.overshoots
		it.Quantiles = s.quantiles
		if err := p.AddItem(it); err != nil {
			return nil, err
		}
	}

	for _, s := range m.experts {
		e := domain.NewExpert(s.id, s.name)
		e.UserWeight = s.userWeight
		if err := p.AddExpert(e, nil, false); err != nil {
			return nil, err
		}
	}

	for _, a := range m.assessments {
		if !p.HasExpert(a.expert) {
			return nil, domain.NewModelError("expert", a.expert, "read assessment", domain.ErrUnknownExpert)
		}
		if err := p.SetAssessment(a.expert, a.item, a.values); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// modelFromProject collects the actual experts, items and assessments of p.
func modelFromProject(p *domain.Project) (*saveModel, error) {
	m := &saveModel{}
	for _, it := range p.Items() {
		m.items = append(m.items, savedItem{
			id:          it.ID,
			scale:       string(it.Scale),
			realization: it.Realization,
			question:    it.Question,
			unit:        it.Unit,
			bounds:      it.Bounds,
			overshoots:  it.Overshoots,
			quantiles:   it.Quantiles,
		})
	}
	for _, id := range p.ExpertIDs(domain.RoleActual) {
		e, err := p.Expert(id)
		if err != nil {
			return nil, err
		}
		m.experts = append(m.experts, savedExpert{id: id, name: e.Name, userWeight: e.UserWeight})
		for _, it := range m.items {
			a, err := p.Assessment(id, it.id)
			if err != nil {
				return nil, err
			}
			m.assessments = append(m.assessments, savedAssessment{expert: id, item: it.id, values: a.Values})
		}
	}
	return m, nil
}

// commonQuantiles returns the quantile set shared by every item, or
// domain.ErrMixedQuantiles.
func (m *saveModel) commonQuantiles() ([]float64, error) {
	if len(m.items) == 0 {
		return nil, nil
	}
	first := m.items[0].quantiles
	for _, it := range m.items[1:] {
		if !slices.Equal(first, it.quantiles) {
			return nil, fmt.Errorf("%w: item %q differs from item %q", domain.ErrMixedQuantiles, it.id, m.items[0].id)
		}
	}
	return first, nil
}

// isMissing reports the Excalibur no-data marker range.
func isMissing(v float64) bool { return v >= -1000 && v <= -990 }

// missingValue is written for NaN in Excalibur files.
const missingValue = -999.5

func orMissing(v float64) float64 {
	if math.IsNaN(v) {
		return missingValue
	}
	return v
}
