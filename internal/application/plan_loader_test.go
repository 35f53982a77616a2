package application

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-cooke/infrastructure/units"
	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// testProject has three experts, six seed items and one target item.
func testProject(t *testing.T) *domain.Project {
	t.Helper()
	p, err := domain.NewProject(0.05, 0.5, 0.95)
	require.NoError(t, err)

	realizations := []float64{3, 12, 7, 40, 25, 9}
	for i, r := range realizations {
		it := domain.NewItem("s" + string(rune('1'+i)))
		it.Realization = r
		require.NoError(t, p.AddItem(it))
	}
	require.NoError(t, p.AddItem(domain.NewItem("t1")))

	experts := map[string][][]float64{
		"good":   {{1, 3.5, 6}, {8, 11, 15}, {4, 8, 10}, {30, 38, 50}, {20, 26, 31}, {6, 9.5, 12}, {5, 10, 20}},
		"narrow": {{2, 2.5, 2.8}, {12.5, 13, 13.5}, {6.8, 7.1, 7.3}, {41, 42, 43}, {24, 24.5, 25.5}, {9.2, 9.4, 9.6}, {9, 10, 11}},
		"wide":   {{0, 5, 20}, {1, 10, 40}, {0, 6, 25}, {5, 35, 90}, {2, 20, 60}, {1, 12, 30}, {0, 15, 40}},
	}
	for _, id := range []string{"good", "narrow", "wide"} {
		require.NoError(t, p.AddExpert(domain.NewExpert(id, id), experts[id], false))
	}
	return p
}

const standardPlan = `
version: "1.0.0"
metadata:
  name: standard
  description: score, synthesize, then test robustness
settings:
  id: DM
  name: Decision Maker
  weight: global
  overshoot: 0.1
  optimisation: true
  calpower: 1
units:
  - id: score
    type: score
  - id: dm
    type: decision_maker
    parameters:
      store: true
  - id: items
    type: item_robustness
    parameters:
      max_exclude: 2
  - id: experts
    type: expert_robustness
    timeout:
      execution_timeout_seconds: 60
graph:
  pipelines:
    - id: main
      units: [score, dm]
  layers:
    - id: robustness
      units: [items, experts]
  edges:
    - from: main
      to: robustness
`

func newLoader(t *testing.T, opts ...LoaderOption) *PlanLoader {
	t.Helper()
	loader, err := NewPlanLoader(NewDefaultUnitRegistry(units.Deps{}), opts...)
	require.NoError(t, err)
	return loader
}

// TestPlanLoader_RunsStandardPlan loads a complete plan and checks every
// output it promises.
func TestPlanLoader_RunsStandardPlan(t *testing.T) {
	loader := newLoader(t)
	plan, err := loader.LoadFromReader(context.Background(), strings.NewReader(standardPlan))
	require.NoError(t, err)
	assert.Equal(t, "standard", plan.Name)
	assert.Len(t, plan.ID, 12)

	nodes, err := plan.Nodes()
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "robustness"}, nodes)

	state, err := plan.Run(context.Background(), testProject(t), nil)
	require.NoError(t, err)

	result := ResultFromState(state)
	assert.NotEmpty(t, result.RunID)
	require.NotNil(t, result.DecisionMaker)
	assert.True(t, result.DecisionMaker.Optimised)
	require.NotNil(t, result.Scores)
	require.NotNil(t, result.ItemRobustness)
	assert.Equal(t, 1+6+15, result.ItemRobustness.Len())
	require.NotNil(t, result.ExpertRobustness)
	assert.Equal(t, 4, result.ExpertRobustness.Len())

	combos, _ := domain.Get(state, domain.KeyCombinations)
	assert.Equal(t, int64(22+4), combos)

	p, ok := domain.Get(state, domain.KeyProject)
	require.True(t, ok)
	assert.True(t, p.HasExpert("DM"))
}

func TestResultFromState_MissingOutputs(t *testing.T) {
	scores := &domain.ScoreTable{Experts: []string{"good"}, Calibration: []float64{0.5}}
	state := domain.With(domain.NewState(), domain.KeyScores, scores)

	r := ResultFromState(state)
	require.NotNil(t, r.Scores)
	assert.Equal(t, []string{"good"}, r.Scores.Experts)
	assert.Empty(t, r.RunID)
	assert.Equal(t, domain.CalculationSettings{}, r.Settings)
	assert.Nil(t, r.DecisionMaker)
	assert.Nil(t, r.ItemRobustness)
	assert.Nil(t, r.ExpertRobustness)
	assert.Empty(t, r.Warnings)
}

func TestPlanLoader_CachesByContent(t *testing.T) {
	loader := newLoader(t)

	first, err := loader.LoadFromReader(context.Background(), strings.NewReader(standardPlan))
	require.NoError(t, err)
	reformatted := strings.ReplaceAll(standardPlan, "units: [score, dm]", "units:\n        - score\n        - dm")
	second, err := loader.LoadFromReader(context.Background(), strings.NewReader(reformatted))
	require.NoError(t, err)
	assert.Same(t, first, second)

	var wg sync.WaitGroup
	plans := make([]*Plan, 8)
	for i := range plans {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plans[i], _ = loader.LoadFromReader(context.Background(), strings.NewReader(standardPlan))
		}()
	}
	wg.Wait()
	for _, p := range plans {
		assert.Same(t, first, p)
	}

	loader.ClearCache()
	third, err := loader.LoadFromReader(context.Background(), strings.NewReader(standardPlan))
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

// TestPlanLoader_Rejects covers structural and semantic plan errors.
func TestPlanLoader_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "version: 1.0.0\nmetadata: {name: x}\nunits: [{id: a, type: score}]\nprompt: hi\n",
			wantErr: "field prompt not found",
		},
		{
			name:    "bad version",
			yaml:    "version: one\nmetadata: {name: x}\nunits: [{id: a, type: score}]\n",
			wantErr: "semver",
		},
		{
			name:    "unknown unit type",
			yaml:    "version: 1.0.0\nmetadata: {name: x}\nunits: [{id: a, type: answerer}]\n",
			wantErr: "oneof",
		},
		{
			name:    "duplicate id",
			yaml:    "version: 1.0.0\nmetadata: {name: x}\nunits: [{id: a, type: score}, {id: a, type: decision_maker}]\n",
			wantErr: "duplicate ID",
		},
		{
			name: "bad robustness bounds",
			yaml: "version: 1.0.0\nmetadata: {name: x}\nunits:\n  - id: a\n    type: item_robustness\n    parameters: {min_exclude: 2, max_exclude: 1}\n",
			wantErr: "min_exclude 2 is larger than max_exclude 1",
		},
		{
			name:    "bad weight override",
			yaml:    "version: 1.0.0\nmetadata: {name: x}\nunits:\n  - id: a\n    type: score\n    parameters: {weight: loud}\n",
			wantErr: "weight type must be one of",
		},
		{
			name:    "edge to unknown node",
			yaml:    "version: 1.0.0\nmetadata: {name: x}\nunits: [{id: a, type: score}]\ngraph:\n  edges: [{from: a, to: b}]\n",
			wantErr: "non-existent node: b",
		},
		{
			name: "unit placed twice",
			yaml: "version: 1.0.0\nmetadata: {name: x}\nunits: [{id: a, type: score}, {id: b, type: score}]\n" +
				"graph:\n  pipelines: [{id: p, units: [a]}]\n  layers: [{id: l, units: [a, b]}]\n",
			wantErr: "unit a is used by both",
		},
		{
			name: "cycle",
			yaml: "version: 1.0.0\nmetadata: {name: x}\nunits: [{id: a, type: score}, {id: b, type: score}]\n" +
				"graph:\n  edges: [{from: a, to: b}, {from: b, to: a}]\n",
			wantErr: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLoader(t).LoadFromReader(context.Background(), strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// countingUnit records how often the wrapper passed it through.
type countingUnit struct {
	ports.Unit
	mu    *sync.Mutex
	calls *int
}

func (c countingUnit) Execute(ctx context.Context, s domain.State) (domain.State, error) {
	c.mu.Lock()
	*c.calls++
	c.mu.Unlock()
	return c.Unit.Execute(ctx, s)
}

func TestPlanLoader_WrapsUnits(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
		seen  []string
	)
	loader := newLoader(t, WithUnitWrapper(func(u ports.Unit, cfg UnitConfig) (ports.Unit, error) {
		seen = append(seen, cfg.ID)
		return countingUnit{Unit: u, mu: &mu, calls: &calls}, nil
	}))

	plan, err := loader.LoadFromReader(context.Background(), strings.NewReader(standardPlan))
	require.NoError(t, err)
	assert.Equal(t, []string{"score", "dm", "items", "experts"}, seen)

	_, err = plan.Run(context.Background(), testProject(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestPlan_RunOverridesSettings(t *testing.T) {
	plan, err := newLoader(t).LoadFromReader(context.Background(), strings.NewReader(standardPlan))
	require.NoError(t, err)

	s := plan.Settings()
	s.Weight = domain.WeightEqual
	_, err = plan.Run(context.Background(), testProject(t), &s)
	require.ErrorIs(t, err, domain.ErrRobustnessWeight)
}
