package application

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// UnitAdapter lets a ports.Unit take part in pipelines, layers and graphs
// as a ports.Executable.
type UnitAdapter struct {
	unit    ports.Unit
	id      string
	timeout time.Duration
}

// NewUnitAdapter wraps unit under id.
func NewUnitAdapter(unit ports.Unit, id string) *UnitAdapter {
	return &UnitAdapter{unit: unit, id: id}
}

// WithTimeout bounds every execution of the unit. Zero disables the bound.
func (ua *UnitAdapter) WithTimeout(d time.Duration) *UnitAdapter {
	ua.timeout = d
	return ua
}

// Execute runs the unit, under the adapter's timeout if one is set.
func (ua *UnitAdapter) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if ua.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ua.timeout)
		defer cancel()
	}
	next, err := ua.unit.Execute(ctx, state)
	if err != nil {
		return state, fmt.Errorf("unit %s: %w", ua.id, err)
	}
	return next, nil
}

// ID returns the plan identifier of the unit.
func (ua *UnitAdapter) ID() string { return ua.id }

// Unit returns the wrapped unit.
func (ua *UnitAdapter) Unit() ports.Unit { return ua.unit }
