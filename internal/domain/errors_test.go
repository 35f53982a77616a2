package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelError(t *testing.T) {
	tests := []struct {
		name      string
		entity    string
		id        string
		operation string
		err       error
		wantMsg   string
	}{
		{
			name:      "duplicate expert",
			entity:    "expert",
			id:        "Exp A",
			operation: "add",
			err:       ErrDuplicateID,
			wantMsg:   `expert "Exp A": add: duplicate id`,
		},
		{
			name:      "unknown quantile",
			entity:    "quantile",
			id:        "0.25",
			operation: "remove",
			err:       ErrUnknownQuantile,
			wantMsg:   `quantile "0.25": remove: quantile not present`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.entity, tt.id, tt.operation, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error(), "Error message mismatch")
			assert.Equal(t, tt.entity, err.Entity, "Entity mismatch")
			assert.Equal(t, tt.id, err.ID, "ID mismatch")
			assert.True(t, errors.Is(err, tt.err), "Should unwrap to underlying error")

			var me *ModelError
			assert.True(t, errors.As(err, &me), "Should match ModelError with errors.As")
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("project")
		err.AddError("values has length 2, want 3")

		assert.Equal(t, "validation error for project: values has length 2, want 3", err.Error())
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.Len(t, err.Errors, 1, "Should have one error")
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("project")
		err.AddError("scales has length 1, want 2")
		err.AddError("units has length 1, want 2")

		assert.Contains(t, err.Error(), "validation errors for project")
		assert.Len(t, err.Errors, 2)
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("project")
		assert.False(t, err.HasErrors())
	})
}
