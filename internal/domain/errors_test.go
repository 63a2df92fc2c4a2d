package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationError(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		context string
		err     error
		wantMsg string
	}{
		{
			name:    "with context",
			subject: "Rating",
			context: `calculation_type="median"`,
			err:     ErrUnsupportedCalculationType,
			wantMsg: `configuration error: subject=Rating, err=unsupported calculation type, config=calculation_type="median"`,
		},
		{
			name:    "without context",
			subject: "quarterly",
			err:     ErrUnsupportedAverage,
			wantMsg: "configuration error: subject=quarterly, err=unsupported totalisation period unit and make up to combination",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfigurationError(tt.subject, tt.context, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.subject, err.Subject)
			assert.True(t, errors.Is(err, tt.err), "Should unwrap to underlying error")

			wrapped := fmt.Errorf("entity instance 3: %w", err)
			var target *ConfigurationError
			assert.True(t, errors.As(wrapped, &target))
			assert.Equal(t, tt.context, target.Context)
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("metadata")
		err.AddError("duplicate subset ID \"UK\"")

		assert.Equal(t, "validation error for metadata: duplicate subset ID \"UK\"", err.Error())
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("metadata")
		err.AddError("first")
		err.AddError("second")

		assert.Contains(t, err.Error(), "validation errors for metadata")
		assert.Equal(t, []string{"first", "second"}, err.Errors)
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("metadata")

		assert.False(t, err.HasErrors(), "Should not have errors")
		assert.Empty(t, err.Errors)
	})
}

func TestCommonDomainErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrInvalidConfiguration, "invalid configuration"},
		{ErrUnsupportedCalculationType, "unsupported calculation type"},
		{ErrInvalidRangeFilter, "range filter requires exactly two primary values"},
		{ErrMultipleSpans, "calculation period must contain exactly one span"},
		{ErrTreeShapeMismatch, "result trees have different shapes"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
		})
	}
}
