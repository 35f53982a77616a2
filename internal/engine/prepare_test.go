package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-cooke/internal/domain"
)

func TestPrepare(t *testing.T) {
	p := mixedProject(t)
	// Answers only a target item.
	require.NoError(t, p.AddExpert(domain.NewExpert("late", "late"), nil, false))
	require.NoError(t, p.SetAssessment("late", "t1", []float64{1, 2, 3}))
	require.NoError(t, p.AddExpert(domain.NewExpert("silent", "silent"), nil, false))
	require.NoError(t, p.SetExpertExcluded("wide", true))

	tests := []struct {
		name         string
		weight       domain.WeightType
		wantExperts  []string
		wantExcluded []string
	}{
		{
			name:         "performance weights need a seed answer",
			weight:       domain.WeightGlobal,
			wantExperts:  []string{"good", "narrow"},
			wantExcluded: []string{"late", "silent"},
		},
		{
			name:         "equal weights need any answer",
			weight:       domain.WeightEqual,
			wantExperts:  []string{"good", "narrow", "late"},
			wantExcluded: []string{"silent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := domain.DefaultCalculationSettings()
			s.Weight = tt.weight
			c, err := Prepare(p, s)
			require.NoError(t, err)
			assert.Equal(t, tt.wantExperts, c.Data.ExpertIDs())
			assert.Equal(t, tt.wantExcluded, c.ExcludedExperts)
			assert.Len(t, c.Warnings, 1)
		})
	}
}

func TestPrepareErrors(t *testing.T) {
	t.Run("invalid weight", func(t *testing.T) {
		s := domain.DefaultCalculationSettings()
		s.Weight = "median"
		_, err := Prepare(mixedProject(t), s)
		require.ErrorIs(t, err, domain.ErrInvalidWeightType)
	})

	t.Run("no items", func(t *testing.T) {
		p := mixedProject(t)
		for _, id := range p.ItemIDs() {
			require.NoError(t, p.SetItemExcluded(id, true))
		}
		_, err := Prepare(p, domain.DefaultCalculationSettings())
		require.ErrorIs(t, err, domain.ErrNoItems)
	})

	t.Run("no experts", func(t *testing.T) {
		p := mixedProject(t)
		for _, id := range p.ExpertIDs() {
			require.NoError(t, p.SetExpertExcluded(id, true))
		}
		_, err := Prepare(p, domain.DefaultCalculationSettings())
		require.ErrorIs(t, err, domain.ErrNoExperts)
	})
}

func TestExpertWeights(t *testing.T) {
	p := mixedProject(t)
	require.NoError(t, p.SetUserWeight("good", 3))
	require.NoError(t, p.SetUserWeight("narrow", 1))
	d := mustDataset(t, p, Selection{})
	table, err := newTestEngine().Scores(d, globalParams(nil))
	require.NoError(t, err)

	t.Run("global at zero", func(t *testing.T) {
		w, err := ExpertWeights(d, table, domain.WeightGlobal, 0)
		require.NoError(t, err)
		sum := 0.0
		for e, id := range d.ExpertIDs() {
			want := table.Calibration[e] * table.InfoReal[e]
			assert.Greater(t, w[id], 0.0)
			assert.InDelta(t, want, w[id]*totalComb(table), 1e-9)
			sum += w[id]
		}
		assert.InDelta(t, 1, sum, 1e-9)
	})

	t.Run("global above every calibration", func(t *testing.T) {
		w, err := ExpertWeights(d, table, domain.WeightGlobal, 2)
		require.NoError(t, err)
		for _, v := range w {
			assert.Equal(t, 0.0, v)
		}
	})

	t.Run("equal", func(t *testing.T) {
		w, err := ExpertWeights(d, table, domain.WeightEqual, 0)
		require.NoError(t, err)
		assert.InDelta(t, 1.0/3, w["wide"], 1e-12)
	})

	t.Run("user", func(t *testing.T) {
		w, err := ExpertWeights(d, table, domain.WeightUser, 0)
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"good": 0.75, "narrow": 0.25, "wide": 0}, w)
	})
}

func totalComb(t *domain.ScoreTable) float64 {
	sum := 0.0
	for e := range t.Calibration {
		if !math.IsNaN(t.Calibration[e]) {
			sum += t.Calibration[e] * t.InfoReal[e]
		}
	}
	return sum
}
