package distribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-cooke/internal/domain"
)

// TestInterp covers the interpolation rule shared by all distributions,
// including repeated abscissae and out-of-range inputs.
func TestInterp(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		xp   []float64
		fp   []float64
		want float64
	}{
		{name: "midpoint", x: 1.5, xp: []float64{1, 2}, fp: []float64{0, 1}, want: 0.5},
		{name: "below range", x: -1, xp: []float64{0, 1}, fp: []float64{0.2, 1}, want: 0.2},
		{name: "above range", x: 5, xp: []float64{0, 1}, fp: []float64{0, 0.7}, want: 0.7},
		{name: "at last point", x: 1, xp: []float64{0, 1}, fp: []float64{0, 1}, want: 1},
		{name: "exact interior point", x: 2, xp: []float64{0, 2, 4}, fp: []float64{0, 0.5, 1}, want: 0.5},
		{name: "repeated abscissa uses last", x: 1, xp: []float64{0, 1, 1, 2}, fp: []float64{0, 0.2, 0.6, 1}, want: 0.6},
		{name: "flat probability plateau", x: 0.5, xp: []float64{0, 0.5, 0.5, 1}, fp: []float64{10, 20, 30, 40}, want: 30},
		{name: "plateau at zero", x: 0, xp: []float64{0, 0, 0.5, 1}, fp: []float64{1, 2, 3, 4}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Interp(tt.x, tt.xp, tt.fp), 1e-12)
		})
	}

	assert.True(t, math.IsNaN(Interp(math.NaN(), []float64{0, 1}, []float64{0, 1})))
	assert.True(t, math.IsNaN(Interp(0.5, nil, nil)))
}

func TestPiecewiseLinear(t *testing.T) {
	d, err := NewPiecewiseLinear([]float64{0, 1, 5, 9, 10}, []float64{0, 0.05, 0.5, 0.95, 1})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, d.CDF(5), 1e-12)
	assert.InDelta(t, 0.275, d.CDF(3), 1e-12)
	assert.Equal(t, 0.0, d.CDF(-1))
	assert.Equal(t, 1.0, d.CDF(11))

	for _, p := range []float64{0.05, 0.3, 0.5, 0.95} {
		assert.InDelta(t, p, d.CDF(d.PPF(p)), 1e-12, "PPF must invert CDF at %g", p)
	}

	table := d.Table()
	table.Values[0] = 100
	assert.Equal(t, 0.0, d.Table().Values[0], "Table must return a copy")
}

func TestNewPiecewiseLinear_Errors(t *testing.T) {
	tests := []struct {
		name    string
		xs, ps  []float64
		wantErr error
	}{
		{name: "length mismatch", xs: []float64{0, 1}, ps: []float64{0}, wantErr: ErrLengthMismatch},
		{name: "single point", xs: []float64{0}, ps: []float64{0}, wantErr: ErrTooFewPoints},
		{name: "decreasing values", xs: []float64{0, 2, 1}, ps: []float64{0, 0.5, 1}, wantErr: ErrNotMonotone},
		{name: "decreasing probabilities", xs: []float64{0, 1, 2}, ps: []float64{0, 0.6, 0.5}, wantErr: ErrNotMonotone},
		{name: "nan value", xs: []float64{0, math.NaN(), 2}, ps: []float64{0, 0.5, 1}, wantErr: ErrNotMonotone},
		{name: "probability above one", xs: []float64{0, 1}, ps: []float64{0, 1.5}, wantErr: ErrProbabilityRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPiecewiseLinear(tt.xs, tt.ps)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEmpirical(t *testing.T) {
	e, err := NewEmpirical(domain.CDF{Values: []float64{0, 2, 4}, Probabilities: []float64{0, 0.5, 1}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, 2, 3.8}, e.Quantiles([]float64{0.05, 0.5, 0.95}), 1e-12)
	assert.InDelta(t, 0.25, e.CDF(1), 1e-12)

	empty, err := NewEmpirical(domain.CDF{})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(empty.CDF(1)))
	assert.True(t, math.IsNaN(empty.PPF(0.5)))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"pwl"}, r.Names())

	f, err := r.Get("")
	require.NoError(t, err)
	assert.Equal(t, NamePWL, f.Name())

	d, err := f.Build([]float64{0, 1}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, d.CDF(0.25), 1e-12)

	_, err = r.Get("metalog")
	assert.ErrorContains(t, err, "unknown distribution")
}
