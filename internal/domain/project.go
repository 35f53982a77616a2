package domain

import (
	"fmt"
	"math"
	"slices"
)

// DefaultQuantiles are the quantile levels of a new project.
var DefaultQuantiles = []float64{0.05, 0.5, 0.95}

// Project is the registry of experts, items and assessments.
//
// It is a column store: every expert and item attribute lives in its own
// slice and experts and items are addressed by dense indices. Inserts and
// deletes compact every column in one step, so all columns always share the
// same length. Assessment values are held as [expert][item][quantile]; the
// accessor Value exposes them in [expert, quantile, item] order.
//
// A Project is not safe for concurrent mutation. Calculations operate on
// immutable snapshots taken from it.
type Project struct {
	quantiles []float64

	items   itemColumns
	experts expertColumns

	values     [][][]float64
	infoPerVar [][]float64
	fullCDF    [][]CDF
}

type itemColumns struct {
	ids          []string
	index        map[string]int
	scales       []Scale
	realizations []float64
	questions    []string
	units        []string
	bounds       [][2]float64
	overshoots   [][2]float64
	use          [][]bool
	excluded     []bool
}

type expertColumns struct {
	ids         []string
	index       map[string]int
	names       []string
	roles       []Role
	userWeights []float64
	excluded    []bool
	scores      []ExpertScores
}

// NewProject creates an empty project with the given quantile levels, or
// DefaultQuantiles when none are given.
func NewProject(quantiles ...float64) (*Project, error) {
	if len(quantiles) == 0 {
		quantiles = DefaultQuantiles
	}
	qs := slices.Clone(quantiles)
	slices.Sort(qs)
	for i, q := range qs {
		if !(q > 0 && q < 1) {
			return nil, NewModelError("quantile", formatQuantile(q), "create", ErrInvalidQuantile)
		}
		if i > 0 && qs[i-1] == q {
			return nil, NewModelError("quantile", formatQuantile(q), "create", ErrDuplicateQuantile)
		}
	}
	return &Project{
		quantiles: qs,
		items:     itemColumns{index: map[string]int{}},
		experts:   expertColumns{index: map[string]int{}},
	}, nil
}

// Quantiles returns a copy of the global quantile levels in ascending order.
func (p *Project) Quantiles() []float64 { return slices.Clone(p.quantiles) }

// BinProbs returns the background bin probabilities, the consecutive
// differences of [0, quantiles..., 1].
func (p *Project) BinProbs() []float64 { return BinProbabilities(p.quantiles) }

// BinProbabilities returns the consecutive differences of [0, qs..., 1].
func BinProbabilities(qs []float64) []float64 {
	out := make([]float64, len(qs)+1)
	prev := 0.0
	for i, q := range qs {
		out[i] = q - prev
		prev = q
	}
	out[len(qs)] = 1 - prev
	return out
}

// NumExperts returns the number of registered experts, decision makers included.
func (p *Project) NumExperts() int { return len(p.experts.ids) }

// NumItems returns the number of registered items.
func (p *Project) NumItems() int { return len(p.items.ids) }

// NumQuantiles returns the number of global quantile levels.
func (p *Project) NumQuantiles() int { return len(p.quantiles) }

// Value returns the assessment of expert e for quantile q and item i, by index.
func (p *Project) Value(e, q, i int) float64 { return p.values[e][i][q] }

// ExpertIDs returns expert ids in registry order. When roles are given only
// experts with one of those roles are returned.
func (p *Project) ExpertIDs(roles ...Role) []string {
	if len(roles) == 0 {
		return slices.Clone(p.experts.ids)
	}
	out := make([]string, 0, len(p.experts.ids))
	for i, id := range p.experts.ids {
		if slices.Contains(roles, p.experts.roles[i]) {
			out = append(out, id)
		}
	}
	return out
}

// HasExpert reports whether an expert id is registered.
func (p *Project) HasExpert(id string) bool {
	_, ok := p.experts.index[id]
	return ok
}

// Expert returns the registry view of one expert.
func (p *Project) Expert(id string) (Expert, error) {
	e, err := p.expertIndex(id, "get")
	if err != nil {
		return Expert{}, err
	}
	return p.expertAt(e), nil
}

// Experts returns all experts in registry order.
func (p *Project) Experts() []Expert {
	out := make([]Expert, len(p.experts.ids))
	for e := range p.experts.ids {
		out[e] = p.expertAt(e)
	}
	return out
}

func (p *Project) expertAt(e int) Expert {
	return Expert{
		ID:         p.experts.ids[e],
		Name:       p.experts.names[e],
		Role:       p.experts.roles[e],
		UserWeight: p.experts.userWeights[e],
		Excluded:   p.experts.excluded[e],
		Scores:     p.experts.scores[e],
	}
}

func (p *Project) expertIndex(id, op string) (int, error) {
	e, ok := p.experts.index[id]
	if !ok {
		return -1, NewModelError("expert", id, op, ErrUnknownExpert)
	}
	return e, nil
}

// AddExpert registers an expert. values holds the assessments as
// [item][quantile] over the global quantiles, or nil for "not answered".
//
// When the id exists and overwrite is set, the expert is replaced in place
// and keeps its position; its scores are reset. Otherwise a duplicate id is
// an error. The values of actual experts must increase with the quantile
// levels on every item.
func (p *Project) AddExpert(expert Expert, values [][]float64, overwrite bool) error {
	if expert.ID == "" {
		return NewModelError("expert", expert.ID, "add", ErrEmptyID)
	}
	if values != nil {
		if err := p.checkValueShape(values); err != nil {
			return NewModelError("expert", expert.ID, "add", err)
		}
		if expert.Role == RoleActual {
			for i, row := range values {
				if err := checkOrdered(row); err != nil {
					return NewModelError("expert", expert.ID, "add", fmt.Errorf("item %s: %w", p.items.ids[i], err))
				}
			}
		}
	}
	rows := p.newValueRows(values)

	if e, exists := p.experts.index[expert.ID]; exists {
		if !overwrite {
			return NewModelError("expert", expert.ID, "add", ErrDuplicateID)
		}
		p.experts.names[e] = expert.Name
		p.experts.roles[e] = expert.Role
		p.experts.userWeights[e] = expert.UserWeight
		p.experts.excluded[e] = expert.Excluded
		p.experts.scores[e] = UnsetScores()
		p.values[e] = rows
		p.infoPerVar[e] = make([]float64, p.NumItems())
		p.fullCDF[e] = make([]CDF, p.NumItems())
		return nil
	}

	p.experts.ids = append(p.experts.ids, expert.ID)
	p.experts.names = append(p.experts.names, expert.Name)
	p.experts.roles = append(p.experts.roles, expert.Role)
	p.experts.userWeights = append(p.experts.userWeights, expert.UserWeight)
	p.experts.excluded = append(p.experts.excluded, expert.Excluded)
	p.experts.scores = append(p.experts.scores, UnsetScores())
	p.values = append(p.values, rows)
	p.infoPerVar = append(p.infoPerVar, make([]float64, p.NumItems()))
	p.fullCDF = append(p.fullCDF, make([]CDF, p.NumItems()))
	p.experts.index[expert.ID] = len(p.experts.ids) - 1
	return nil
}

// RemoveExpert deletes an expert and compacts all expert columns.
func (p *Project) RemoveExpert(id string) error {
	e, err := p.expertIndex(id, "remove")
	if err != nil {
		return err
	}
	p.experts.ids = slices.Delete(p.experts.ids, e, e+1)
	p.experts.names = slices.Delete(p.experts.names, e, e+1)
	p.experts.roles = slices.Delete(p.experts.roles, e, e+1)
	p.experts.userWeights = slices.Delete(p.experts.userWeights, e, e+1)
	p.experts.excluded = slices.Delete(p.experts.excluded, e, e+1)
	p.experts.scores = slices.Delete(p.experts.scores, e, e+1)
	p.values = slices.Delete(p.values, e, e+1)
	p.infoPerVar = slices.Delete(p.infoPerVar, e, e+1)
	p.fullCDF = slices.Delete(p.fullCDF, e, e+1)
	p.experts.index = indexOf(p.experts.ids)
	return nil
}

// SetExpertName renames an expert.
func (p *Project) SetExpertName(id, name string) error {
	e, err := p.expertIndex(id, "rename")
	if err != nil {
		return err
	}
	p.experts.names[e] = name
	return nil
}

// SetUserWeight assigns a user weight; NaN clears it.
func (p *Project) SetUserWeight(id string, w float64) error {
	e, err := p.expertIndex(id, "set user weight")
	if err != nil {
		return err
	}
	p.experts.userWeights[e] = w
	return nil
}

// SetExpertExcluded soft-disables an expert from calculations.
func (p *Project) SetExpertExcluded(id string, excluded bool) error {
	e, err := p.expertIndex(id, "exclude")
	if err != nil {
		return err
	}
	p.experts.excluded[e] = excluded
	return nil
}

// SetScores stores the scalar scores of an expert.
func (p *Project) SetScores(id string, s ExpertScores) error {
	e, err := p.expertIndex(id, "set scores")
	if err != nil {
		return err
	}
	p.experts.scores[e] = s
	return nil
}

// InfoPerVar returns a copy of an expert's information score per item.
func (p *Project) InfoPerVar(id string) ([]float64, error) {
	e, err := p.expertIndex(id, "get info")
	if err != nil {
		return nil, err
	}
	return slices.Clone(p.infoPerVar[e]), nil
}

// SetInfoPerVar stores an expert's information score per item.
func (p *Project) SetInfoPerVar(id string, row []float64) error {
	e, err := p.expertIndex(id, "set info")
	if err != nil {
		return err
	}
	if len(row) != p.NumItems() {
		return NewModelError("expert", id, "set info", ErrShapeMismatch)
	}
	p.infoPerVar[e] = slices.Clone(row)
	return nil
}

// FullCDF returns the tabulated CDF stored for an expert and item.
func (p *Project) FullCDF(expertID, itemID string) (CDF, bool) {
	e, ok := p.experts.index[expertID]
	if !ok {
		return CDF{}, false
	}
	i, ok := p.items.index[itemID]
	if !ok {
		return CDF{}, false
	}
	c := p.fullCDF[e][i]
	return c, !c.Empty()
}

// SetFullCDF stores a tabulated CDF for an expert and item.
func (p *Project) SetFullCDF(expertID, itemID string, cdf CDF) error {
	e, err := p.expertIndex(expertID, "set cdf")
	if err != nil {
		return err
	}
	i, err := p.itemIndex(itemID, "set cdf")
	if err != nil {
		return err
	}
	p.fullCDF[e][i] = CDF{Values: slices.Clone(cdf.Values), Probabilities: slices.Clone(cdf.Probabilities)}
	return nil
}

func (p *Project) checkValueShape(values [][]float64) error {
	if len(values) != p.NumItems() {
		return fmt.Errorf("%w: got %d item rows, want %d", ErrShapeMismatch, len(values), p.NumItems())
	}
	for _, row := range values {
		if len(row) != p.NumQuantiles() {
			return fmt.Errorf("%w: got %d quantile values, want %d", ErrShapeMismatch, len(row), p.NumQuantiles())
		}
	}
	return nil
}

func (p *Project) newValueRows(values [][]float64) [][]float64 {
	rows := make([][]float64, p.NumItems())
	for i := range rows {
		if values != nil {
			rows[i] = slices.Clone(values[i])
		} else {
			rows[i] = nanSlice(p.NumQuantiles())
		}
	}
	return rows
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	c := &Project{
		quantiles: slices.Clone(p.quantiles),
		items: itemColumns{
			ids:          slices.Clone(p.items.ids),
			scales:       slices.Clone(p.items.scales),
			realizations: slices.Clone(p.items.realizations),
			questions:    slices.Clone(p.items.questions),
			units:        slices.Clone(p.items.units),
			bounds:       slices.Clone(p.items.bounds),
			overshoots:   slices.Clone(p.items.overshoots),
			use:          cloneMatrix(p.items.use),
			excluded:     slices.Clone(p.items.excluded),
		},
		experts: expertColumns{
			ids:         slices.Clone(p.experts.ids),
			names:       slices.Clone(p.experts.names),
			roles:       slices.Clone(p.experts.roles),
			userWeights: slices.Clone(p.experts.userWeights),
			excluded:    slices.Clone(p.experts.excluded),
			scores:      slices.Clone(p.experts.scores),
		},
		values:     make([][][]float64, len(p.values)),
		infoPerVar: cloneMatrix(p.infoPerVar),
		fullCDF:    make([][]CDF, len(p.fullCDF)),
	}
	c.items.index = indexOf(c.items.ids)
	c.experts.index = indexOf(c.experts.ids)
	for e := range p.values {
		c.values[e] = cloneMatrix(p.values[e])
	}
	for e, row := range p.fullCDF {
		c.fullCDF[e] = make([]CDF, len(row))
		for i, cdf := range row {
			c.fullCDF[e][i] = CDF{Values: slices.Clone(cdf.Values), Probabilities: slices.Clone(cdf.Probabilities)}
		}
	}
	return c
}

// CloneState lets a *Project travel through a State without losing its
// unexported columns.
func (p *Project) CloneState() any { return p.Clone() }

// Validate checks that every column agrees with the registry dimensions.
func (p *Project) Validate() error {
	ne, ni, nq := p.NumExperts(), p.NumItems(), p.NumQuantiles()
	verr := NewValidationError("project")
	check := func(name string, got, want int) {
		if got != want {
			verr.AddError(fmt.Sprintf("%s has length %d, want %d", name, got, want))
		}
	}
	check("expert names", len(p.experts.names), ne)
	check("expert roles", len(p.experts.roles), ne)
	check("user weights", len(p.experts.userWeights), ne)
	check("expert excluded", len(p.experts.excluded), ne)
	check("expert scores", len(p.experts.scores), ne)
	check("expert index", len(p.experts.index), ne)
	check("values", len(p.values), ne)
	check("info per var", len(p.infoPerVar), ne)
	check("full cdf", len(p.fullCDF), ne)
	check("scales", len(p.items.scales), ni)
	check("realizations", len(p.items.realizations), ni)
	check("questions", len(p.items.questions), ni)
	check("units", len(p.items.units), ni)
	check("bounds", len(p.items.bounds), ni)
	check("overshoots", len(p.items.overshoots), ni)
	check("use quantiles", len(p.items.use), ni)
	check("item excluded", len(p.items.excluded), ni)
	check("item index", len(p.items.index), ni)
	for i, mask := range p.items.use {
		check(fmt.Sprintf("use quantiles[%d]", i), len(mask), nq)
	}
	for e := range p.values {
		check(fmt.Sprintf("values[%d]", e), len(p.values[e]), ni)
		check(fmt.Sprintf("info per var[%d]", e), len(p.infoPerVar[e]), ni)
		check(fmt.Sprintf("full cdf[%d]", e), len(p.fullCDF[e]), ni)
		for i := range p.values[e] {
			check(fmt.Sprintf("values[%d][%d]", e, i), len(p.values[e][i]), nq)
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func indexOf(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func cloneMatrix[T any](m [][]T) [][]T {
	if m == nil {
		return nil
	}
	out := make([][]T, len(m))
	for i, row := range m {
		out[i] = slices.Clone(row)
	}
	return out
}

func formatQuantile(q float64) string { return fmt.Sprintf("%g", q) }
