package ports

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIOError covers message formatting and unwrapping of IOError.
func TestIOError(t *testing.T) {
	tests := []struct {
		name    string
		err     *IOError
		wantMsg string
	}{
		{
			name:    "format only",
			err:     NewIOError("json", ErrMalformedInput),
			wantMsg: "json io error: malformed input",
		},
		{
			name:    "with path and line",
			err:     &IOError{Format: "excalibur", Path: "case.dtt", Line: 7, Err: ErrMalformedInput},
			wantMsg: "excalibur io error: path=case.dtt: line=7: malformed input",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.True(t, errors.Is(tt.err, ErrMalformedInput))
		})
	}
}

func TestMetricsError(t *testing.T) {
	err := NewMetricsError("combinations_total", "RecordCounter", errors.New("registry closed"))

	assert.Equal(t, "metrics error: operation=RecordCounter, metric=combinations_total, err=registry closed", err.Error())
	assert.Equal(t, "combinations_total", err.Metric)
	assert.NotNil(t, err.Unwrap())
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("settings.alpha", ErrConfigNotFound)

	assert.Equal(t, "config error: key=settings.alpha, err=configuration not found", err.Error())
	assert.True(t, errors.Is(err, ErrConfigNotFound))

	var ce *ConfigError
	assert.True(t, errors.As(joinOuter(err), &ce))
}

func joinOuter(err error) error { return errors.Join(errors.New("outer"), err) }
