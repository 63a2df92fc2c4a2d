package aggregators

import (
	"context"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

var _ ports.ResultStage = Scaler{}

// Scaler multiplies every result in the tree by the measure's scale
// factor. Measures without a scale factor pass through untouched.
type Scaler struct{}

// Name returns the stage identifier.
func (Scaler) Name() string { return "scaler" }

// Apply scales results in place, including dispersion fields.
func (Scaler) Apply(_ context.Context, measure *domain.Measure, _ domain.EntityInstance, results []domain.WeightedDailyResult) error {
	if measure == nil {
		return ErrNilMeasure
	}
	if measure.ScaleFactor == nil {
		return nil
	}
	factor := *measure.ScaleFactor
	walkResults(results, func(r *domain.WeightedDailyResult) {
		r.WeightedResult *= factor
		scaleDispersion(r, factor)
	})
	return nil
}
