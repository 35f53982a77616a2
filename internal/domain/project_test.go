package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var projectCmp = []cmp.Option{
	cmp.AllowUnexported(Project{}, itemColumns{}, expertColumns{}),
	cmpopts.EquateNaNs(),
	cmpopts.EquateEmpty(),
}

// newTestProject builds two experts and three items, one of them a log-scale
// target item.
func newTestProject(t *testing.T) *Project {
	t.Helper()
	p, err := NewProject()
	require.NoError(t, err)

	for _, id := range []string{"s1", "s2"} {
		it := NewItem(id)
		it.Realization = 5
		require.NoError(t, p.AddItem(it))
	}
	target := NewItem("t1")
	target.Scale = ScaleLog
	require.NoError(t, p.AddItem(target))

	require.NoError(t, p.AddExpert(NewExpert("A", "Expert A"),
		[][]float64{{1, 5, 9}, {2, 4, 8}, {10, 100, 1000}}, false))
	require.NoError(t, p.AddExpert(NewExpert("B", "Expert B"),
		[][]float64{{3, 4, 6}, {1, 2, 3}, {5, 50, 500}}, false))
	return p
}

func TestNewProject(t *testing.T) {
	tests := []struct {
		name      string
		quantiles []float64
		want      []float64
		wantErr   error
	}{
		{name: "defaults", want: []float64{0.05, 0.5, 0.95}},
		{name: "sorted on create", quantiles: []float64{0.9, 0.1, 0.5}, want: []float64{0.1, 0.5, 0.9}},
		{name: "zero rejected", quantiles: []float64{0, 0.5}, wantErr: ErrInvalidQuantile},
		{name: "one rejected", quantiles: []float64{0.5, 1}, wantErr: ErrInvalidQuantile},
		{name: "duplicate rejected", quantiles: []float64{0.5, 0.5}, wantErr: ErrDuplicateQuantile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProject(tt.quantiles...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Quantiles())
		})
	}
}

func TestProject_BinProbs(t *testing.T) {
	p, err := NewProject()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.05, 0.45, 0.45, 0.05}, p.BinProbs(), 1e-12)
}

// TestProject_AddRemoveItemIdempotent verifies that adding then removing an
// item restores every column and every assessment value.
func TestProject_AddRemoveItemIdempotent(t *testing.T) {
	p := newTestProject(t)
	before := p.Clone()

	it := NewItem("extra")
	it.Realization = 1
	require.NoError(t, p.AddItem(it))
	require.True(t, p.HasItem("extra"))
	require.NoError(t, p.SetValue("A", "extra", 0.5, 7))
	require.NoError(t, p.Validate())
	require.NoError(t, p.RemoveItem("extra"))
	assert.False(t, p.HasItem("extra"))

	require.NoError(t, p.Validate())
	if diff := cmp.Diff(before, p, projectCmp...); diff != "" {
		t.Errorf("project changed after add/remove item (-want +got):\n%s", diff)
	}
}

func TestProject_AddRemoveExpertIdempotent(t *testing.T) {
	p := newTestProject(t)
	before := p.Clone()

	require.NoError(t, p.AddExpert(NewExpert("C", "Expert C"), nil, false))
	require.NoError(t, p.RemoveExpert("C"))

	if diff := cmp.Diff(before, p, projectCmp...); diff != "" {
		t.Errorf("project changed after add/remove expert (-want +got):\n%s", diff)
	}
}

func TestProject_AddExpert(t *testing.T) {
	t.Run("duplicate without overwrite", func(t *testing.T) {
		p := newTestProject(t)
		err := p.AddExpert(NewExpert("A", "again"), nil, false)
		assert.ErrorIs(t, err, ErrDuplicateID)
		e, _ := p.Expert("A")
		assert.Equal(t, "Expert A", e.Name, "Failed add must not change the expert")
	})

	t.Run("overwrite keeps position and resets scores", func(t *testing.T) {
		p := newTestProject(t)
		require.NoError(t, p.SetScores("A", ExpertScores{Calibration: 0.5}))

		dm := NewExpert("A", "replaced")
		dm.Role = RoleDecisionMaker
		require.NoError(t, p.AddExpert(dm, nil, true))

		assert.Equal(t, []string{"A", "B"}, p.ExpertIDs())
		e, err := p.Expert("A")
		require.NoError(t, err)
		assert.Equal(t, "replaced", e.Name)
		assert.True(t, e.IsDecisionMaker())
		assert.True(t, math.IsNaN(e.Scores.Calibration))
		assert.True(t, math.IsNaN(p.Value(0, 1, 0)))
		assert.Equal(t, []string{"A"}, p.ExpertIDs(RoleDecisionMaker))
		assert.Equal(t, []string{"B"}, p.ExpertIDs(RoleActual))
	})

	t.Run("shape mismatch", func(t *testing.T) {
		p := newTestProject(t)
		err := p.AddExpert(NewExpert("C", ""), [][]float64{{1, 2, 3}}, false)
		assert.ErrorIs(t, err, ErrShapeMismatch)
		assert.False(t, p.HasExpert("C"))
	})

	t.Run("empty id", func(t *testing.T) {
		p := newTestProject(t)
		assert.ErrorIs(t, p.AddExpert(NewExpert("", ""), nil, false), ErrEmptyID)
	})
}

func TestProject_MoveItem(t *testing.T) {
	p := newTestProject(t)

	require.NoError(t, p.MoveItem("t1", 0))
	assert.Equal(t, []string{"t1", "s1", "s2"}, p.ItemIDs())

	a, err := p.Assessment("A", "t1")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 100, 1000}, a.Values)
	assert.Equal(t, ScaleLog, a.Scale)
	assert.Equal(t, 10.0, p.Value(0, 0, 0))

	require.NoError(t, p.MoveItem("t1", 2))
	assert.Equal(t, []string{"s1", "s2", "t1"}, p.ItemIDs())
	require.NoError(t, p.Validate())

	assert.ErrorIs(t, p.MoveItem("t1", 3), ErrInvalidPosition)
	assert.ErrorIs(t, p.MoveItem("nope", 0), ErrUnknownItem)
}

func TestProject_Quantiles(t *testing.T) {
	p := newTestProject(t)

	require.NoError(t, p.AddQuantile(0.25))
	assert.Equal(t, []float64{0.05, 0.25, 0.5, 0.95}, p.Quantiles())
	require.NoError(t, p.Validate())

	vals, err := p.Values("A", "s1")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(vals[1]))
	assert.Equal(t, 5.0, vals[2])

	item, _ := p.Item("s1")
	assert.Equal(t, []float64{0.05, 0.5, 0.95}, item.Quantiles, "New levels are not used until selected")

	assert.ErrorIs(t, p.AddQuantile(0.25), ErrDuplicateQuantile)
	assert.ErrorIs(t, p.AddQuantile(1.0), ErrInvalidQuantile)
	assert.ErrorIs(t, p.AddQuantile(-0.1), ErrInvalidQuantile)

	require.NoError(t, p.RemoveQuantile(0.25))
	assert.Equal(t, []float64{0.05, 0.5, 0.95}, p.Quantiles())
	assert.ErrorIs(t, p.RemoveQuantile(0.25), ErrUnknownQuantile)
}

func TestProject_SetAssessment(t *testing.T) {
	p := newTestProject(t)
	require.NoError(t, p.SetItemQuantiles("t1", []float64{0.05, 0.95}))

	require.NoError(t, p.SetAssessment("A", "t1", []float64{1, 20}))
	vals, err := p.Values("A", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, vals[0])
	assert.True(t, math.IsNaN(vals[1]), "Unused level must be NaN")
	assert.Equal(t, 20.0, vals[2])

	a, err := p.Assessment("A", "t1")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.05, 0.95}, a.Quantiles)
	assert.True(t, a.Complete())

	err = p.SetAssessment("A", "t1", []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	assert.ErrorIs(t, p.SetItemQuantiles("t1", []float64{0.3}), ErrUnknownQuantile)
	assert.ErrorIs(t, p.SetValue("A", "t1", 0.3, 1), ErrUnknownQuantile)
}

func TestProject_RejectsUnorderedValues(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		set  func(p *Project) error
	}{
		{
			name: "assessment below the lower value",
			set:  func(p *Project) error { return p.SetAssessment("A", "t1", []float64{15, 0, 40}) },
		},
		{
			name: "assessment with a tie",
			set:  func(p *Project) error { return p.SetAssessment("A", "t1", []float64{10, 10, 40}) },
		},
		{
			name: "assessment unordered around a gap",
			set:  func(p *Project) error { return p.SetAssessment("A", "t1", []float64{50, nan, 40}) },
		},
		{
			name: "value above the upper value",
			set:  func(p *Project) error { return p.SetValue("A", "t1", 0.5, 2000) },
		},
		{
			name: "value equal to the lower value",
			set:  func(p *Project) error { return p.SetValue("A", "s1", 0.95, 1) },
		},
		{
			name: "new expert",
			set: func(p *Project) error {
				return p.AddExpert(NewExpert("C", "Expert C"), [][]float64{{1, 2, 3}, {1, 2, 3}, {9, 5, 1}}, false)
			},
		},
		{
			name: "replaced expert",
			set: func(p *Project) error {
				return p.AddExpert(NewExpert("A", "Expert A"), [][]float64{{3, 2, 1}, {1, 2, 3}, {1, 2, 3}}, true)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProject(t)
			before := p.Clone()

			err := tt.set(p)
			require.ErrorIs(t, err, ErrUnorderedValues)
			var me *ModelError
			require.ErrorAs(t, err, &me)

			if diff := cmp.Diff(before, p, projectCmp...); diff != "" {
				t.Errorf("project changed after rejected values (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProject_AcceptsOrderedValues(t *testing.T) {
	nan := math.NaN()
	p := newTestProject(t)

	require.NoError(t, p.SetAssessment("A", "t1", []float64{0.5, nan, 40}))
	require.NoError(t, p.SetValue("A", "t1", 0.5, 1))
	vals, err := p.Values("A", "t1")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1, 40}, vals)

	require.NoError(t, p.SetValue("A", "t1", 0.05, nan), "Clearing a value keeps the row ordered")

	dm := NewExpert("DM", "DM")
	dm.Role = RoleDecisionMaker
	require.NoError(t, p.AddExpert(dm, [][]float64{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}}, true),
		"Decision maker rows are stored as computed")
}

func TestAssessment_Answered(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name         string
		values       []float64
		wantAnswered bool
		wantComplete bool
	}{
		{name: "complete", values: []float64{1, 2, 3}, wantAnswered: true, wantComplete: true},
		{name: "partial", values: []float64{1, nan, 3}, wantAnswered: true},
		{name: "empty", values: []float64{nan, nan, nan}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Assessment{Values: tt.values}
			assert.Equal(t, tt.wantAnswered, a.Answered())
			assert.Equal(t, tt.wantComplete, a.Complete())
		})
	}
}

func TestProject_ItemSetters(t *testing.T) {
	p := newTestProject(t)

	require.NoError(t, p.SetRealization("t1", 42))
	require.NoError(t, p.SetBounds("s1", 0, math.NaN()))
	require.NoError(t, p.SetOvershoots("s1", 0.2, math.NaN()))
	require.NoError(t, p.SetItemText("s1", "How many?", "kg"))
	require.NoError(t, p.SetItemExcluded("s2", true))

	assert.Equal(t, []string{"s1", "s2", "t1"}, p.SeedItemIDs())
	s1, err := p.Item("s1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, s1.Bounds[0])
	assert.True(t, math.IsNaN(s1.Bounds[1]))
	assert.Equal(t, 0.2, s1.Overshoots[0])
	assert.Equal(t, "kg", s1.Unit)

	s2, _ := p.Item("s2")
	assert.True(t, s2.Excluded)

	require.NoError(t, p.SetScale("s1", "LOG"))
	s1, _ = p.Item("s1")
	assert.True(t, s1.Scale.IsLog())
	assert.ErrorIs(t, p.SetScale("s1", "cubic"), ErrInvalidScale)

	err = p.SetRealization("missing", 1)
	var me *ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "item", me.Entity)
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestProject_AddItemErrors(t *testing.T) {
	p := newTestProject(t)
	assert.ErrorIs(t, p.AddItem(NewItem("s1")), ErrDuplicateID)
	assert.ErrorIs(t, p.AddItem(NewItem("")), ErrEmptyID)

	bad := NewItem("x")
	bad.Scale = "cubic"
	assert.ErrorIs(t, p.AddItem(bad), ErrInvalidScale)

	bad = NewItem("y")
	bad.Quantiles = []float64{0.3}
	assert.ErrorIs(t, p.AddItem(bad), ErrUnknownQuantile)

	assert.Equal(t, 3, p.NumItems(), "Failed adds must not change the registry")
	require.NoError(t, p.Validate())
}

func TestProject_ExpertData(t *testing.T) {
	p := newTestProject(t)

	require.NoError(t, p.SetUserWeight("A", 0.3))
	require.NoError(t, p.SetExpertExcluded("B", true))
	require.NoError(t, p.SetExpertName("B", "Bee"))
	require.NoError(t, p.SetInfoPerVar("A", []float64{1, 2, 3}))
	assert.ErrorIs(t, p.SetInfoPerVar("A", []float64{1}), ErrShapeMismatch)

	cdf := CDF{Values: []float64{0, 1}, Probabilities: []float64{0, 1}}
	require.NoError(t, p.SetFullCDF("A", "s1", cdf))
	got, ok := p.FullCDF("A", "s1")
	assert.True(t, ok)
	assert.Equal(t, cdf, got)
	_, ok = p.FullCDF("A", "s2")
	assert.False(t, ok)

	experts := p.Experts()
	require.Len(t, experts, 2)
	assert.Equal(t, 0.3, experts[0].UserWeight)
	assert.True(t, experts[1].Excluded)
	assert.Equal(t, "Bee", experts[1].Name)

	info, err := p.InfoPerVar("A")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, info)
}

func TestProject_CloneIsDeep(t *testing.T) {
	p := newTestProject(t)
	c := p.Clone()

	require.NoError(t, c.SetValue("A", "s1", 0.5, 3))
	require.NoError(t, c.AddItem(NewItem("new")))

	assert.Equal(t, 5.0, p.Value(0, 1, 0))
	assert.Equal(t, 3, p.NumItems())
	require.NoError(t, p.Validate())
	require.NoError(t, c.Validate())
}
