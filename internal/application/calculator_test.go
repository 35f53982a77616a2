package application

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/engine"
)

// recordingMetrics is an in-memory ports.MetricsCollector.
type recordingMetrics struct {
	mu        sync.Mutex
	latencies []string
	counters  map[string]float64
	histos    map[string][]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: map[string]float64{}, histos: map[string][]float64{}}
}

func (m *recordingMetrics) RecordLatency(op string, _ time.Duration, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, op)
}

func (m *recordingMetrics) RecordCounter(name string, v float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name+"/"+labels["kind"]] += v
}

func (m *recordingMetrics) RecordGauge(string, float64, map[string]string) {}

func (m *recordingMetrics) RecordHistogram(name string, v float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histos[name] = append(m.histos[name], v)
}

func TestCalculator_Calculate(t *testing.T) {
	metrics := newRecordingMetrics()
	var (
		mu       sync.Mutex
		progress = map[string]int{}
	)
	calc := NewCalculator(WithMetrics(metrics), WithProgress(func(kind string, done, _ int) {
		mu.Lock()
		defer mu.Unlock()
		progress[kind] = done
	}))

	in := testProject(t)
	result, out, err := calc.Calculate(context.Background(), in, domain.DefaultCalculationSettings())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	require.NotNil(t, result.DecisionMaker)
	assert.True(t, result.DecisionMaker.Optimised)
	assert.Empty(t, result.ExcludedExperts)

	var total float64
	for _, w := range result.Weights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)

	require.NotNil(t, result.ItemRobustness)
	assert.Equal(t, 7, result.ItemRobustness.Len())
	require.NotNil(t, result.ExpertRobustness)
	assert.Equal(t, 4, result.ExpertRobustness.Len())
	assert.Equal(t, 7, progress[engine.KindItems])
	assert.Equal(t, 4, progress[engine.KindExperts])

	assert.False(t, in.HasExpert("DM"))
	dm, err := out.Expert("DM")
	require.NoError(t, err)
	assert.True(t, dm.IsDecisionMaker())
	assert.Equal(t, "Decision Maker", dm.Name)
	for id, w := range result.Weights {
		e, err := out.Expert(id)
		require.NoError(t, err)
		assert.InDelta(t, w, e.Scores.Weight, 1e-12, id)
	}
	cdf, ok := out.FullCDF("DM", "t1")
	require.True(t, ok)
	assert.NotEmpty(t, cdf.Values)

	assert.Equal(t, []string{"calculate"}, metrics.latencies)
	assert.InDelta(t, 7, metrics.counters["robustness_combinations_total/items"], 0)
	assert.Len(t, metrics.histos["decision_maker_calibration"], 1)
}

func TestCalculator_RecalculateReplacesDecisionMaker(t *testing.T) {
	calc := NewCalculator()
	s := domain.DefaultCalculationSettings()
	s.Robustness = false

	_, out, err := calc.Calculate(context.Background(), testProject(t), s)
	require.NoError(t, err)
	_, again, err := calc.Calculate(context.Background(), out, s)
	require.NoError(t, err)
	assert.Equal(t, out.ExpertIDs(), again.ExpertIDs())
}

// TestCalculator_WeightPolicies checks the alpha policy and reported
// weights of the non-performance policies.
func TestCalculator_WeightPolicies(t *testing.T) {
	tests := []struct {
		name   string
		weight domain.WeightType
		user   map[string]float64
		want   map[string]float64
	}{
		{
			name:   "equal",
			weight: domain.WeightEqual,
			want:   map[string]float64{"good": 1.0 / 3, "narrow": 1.0 / 3, "wide": 1.0 / 3},
		},
		{
			name:   "user",
			weight: domain.WeightUser,
			user:   map[string]float64{"good": 2, "narrow": 1, "wide": 1},
			want:   map[string]float64{"good": 0.5, "narrow": 0.25, "wide": 0.25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProject(t)
			for id, w := range tt.user {
				require.NoError(t, p.SetUserWeight(id, w))
			}
			s := domain.DefaultCalculationSettings()
			s.Weight = tt.weight

			result, _, err := NewCalculator().Calculate(context.Background(), p, s)
			require.NoError(t, err)
			assert.InDelta(t, 0, result.DecisionMaker.Alpha, 0)
			assert.False(t, result.DecisionMaker.Optimised)
			assert.Nil(t, result.ItemRobustness)
			for id, w := range tt.want {
				assert.InDelta(t, w, result.Weights[id], 1e-12, id)
			}
		})
	}
}

func TestCalculator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T, p *domain.Project, s *domain.CalculationSettings)
		wantErr error
	}{
		{
			name: "unknown weight type",
			mutate: func(_ *testing.T, _ *domain.Project, s *domain.CalculationSettings) {
				s.Weight = "loudest"
			},
			wantErr: domain.ErrInvalidWeightType,
		},
		{
			name: "every expert excluded",
			mutate: func(t *testing.T, p *domain.Project, _ *domain.CalculationSettings) {
				for _, id := range p.ExpertIDs() {
					require.NoError(t, p.SetExpertExcluded(id, true))
				}
			},
			wantErr: domain.ErrNoExperts,
		},
		{
			name: "alpha above every calibration",
			mutate: func(_ *testing.T, _ *domain.Project, s *domain.CalculationSettings) {
				s.Optimisation = false
				s.Alpha = domain.Float64(1)
			},
			wantErr: domain.ErrAlphaTooHigh,
		},
		{
			name: "user weights missing",
			mutate: func(_ *testing.T, _ *domain.Project, s *domain.CalculationSettings) {
				s.Weight = domain.WeightUser
			},
			wantErr: domain.ErrUserWeightsUnset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProject(t)
			s := domain.DefaultCalculationSettings()
			tt.mutate(t, p, &s)
			_, _, err := NewCalculator().Calculate(context.Background(), p, s)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCalculator_ExcludesSilentExperts(t *testing.T) {
	p := testProject(t)
	silent := make([][]float64, p.NumItems())
	for i := range silent {
		silent[i] = []float64{math.NaN(), math.NaN(), math.NaN()}
	}
	require.NoError(t, p.AddExpert(domain.NewExpert("silent", "silent"), silent, false))

	s := domain.DefaultCalculationSettings()
	s.Robustness = false
	result, _, err := NewCalculator().Calculate(context.Background(), p, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"silent"}, result.ExcludedExperts)
	assert.NotContains(t, result.Weights, "silent")
	require.NotEmpty(t, result.Warnings)
}

func TestCalculator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewCalculator().Calculate(ctx, testProject(t), domain.DefaultCalculationSettings())
	require.ErrorIs(t, err, context.Canceled)
}
