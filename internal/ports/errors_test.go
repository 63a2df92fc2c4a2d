package ports

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRepositoryError tests message formatting and unwrapping of
// RepositoryError.
func TestRepositoryError(t *testing.T) {
	err := NewRepositoryError("measure", "Awareness", ErrNotFound)

	assert.Equal(t, "repository error: kind=measure, key=Awareness, err=not found", err.Error())
	assert.Equal(t, "measure", err.Kind)
	assert.Equal(t, "Awareness", err.Key)
	assert.True(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("resolve measure: %w", err)
	var repoErr *RepositoryError
	assert.True(t, errors.As(wrapped, &repoErr), "should be extractable through wrapping")
	assert.Equal(t, "Awareness", repoErr.Key)
}

// TestQueryError tests message formatting and unwrapping of QueryError.
func TestQueryError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewQueryError("QueryWeighted", "base=q1[1 2]", fmt.Errorf("%w: %w", ErrQueryFailed, cause))

	assert.Contains(t, err.Error(), "operation=QueryWeighted")
	assert.Contains(t, err.Error(), "subject=base=q1[1 2]")
	assert.True(t, errors.Is(err, ErrQueryFailed))
	assert.True(t, errors.Is(err, cause))
}

// TestConfigError tests message formatting and unwrapping of ConfigError.
func TestConfigError(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		err     error
		wantMsg string
	}{
		{
			name:    "missing file",
			key:     "metadata.yaml",
			err:     ErrConfigNotFound,
			wantMsg: "config error: key=metadata.yaml, err=configuration not found",
		},
		{
			name:    "custom error",
			key:     "averages",
			err:     errors.New("duplicate id"),
			wantMsg: "config error: key=averages, err=duplicate id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfigError(tt.key, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}
