// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-tabulate/internal/domain"
)

// PeriodAggregator turns an ordered series of per-period weighted totals
// into an ordered, possibly shorter, series of finalised results.
// Implementations are stateless and safe for concurrent use, but they do
// not copy their input: callers pass a series no other goroutine touches.
type PeriodAggregator interface {
	// Name returns a unique identifier for this aggregator.
	// The name is used for logging, metrics, and error context.
	Name() string

	// Aggregate produces one result per logical output period, preserving
	// the ChildResults tree shape of the input.
	//
	// Example:
	//
	//	results, err := aggregator.Aggregate(ctx, measure, totals)
	//	if err != nil {
	//	    return nil, fmt.Errorf("aggregator %s failed: %w", aggregator.Name(), err)
	//	}
	Aggregate(ctx context.Context, measure *domain.Measure, totals []domain.WeightedTotal) ([]domain.WeightedDailyResult, error)

	// Validate checks the aggregator is properly configured.
	Validate() error
}

// ResultStage post-processes aggregated results in place. Stages run in a
// fixed order after aggregation.
type ResultStage interface {
	// Name returns a unique identifier for this stage.
	Name() string

	// Apply rewrites results for one entity instance of a measure.
	// Non-fatal data issues are logged, never returned.
	Apply(ctx context.Context, measure *domain.Measure, instance domain.EntityInstance, results []domain.WeightedDailyResult) error
}

// AggregatorFactory builds the period aggregator for an averaging
// configuration and calculation period.
type AggregatorFactory func(average domain.AverageDescriptor, period domain.CalculationPeriod) (PeriodAggregator, error)

// AggregatorRegistry selects period aggregators from averaging configuration.
type AggregatorRegistry interface {
	// CreateAggregator returns the aggregator mapped to the descriptor's
	// totalisation unit and make-up-to boundary. Unmapped combinations are
	// fatal configuration errors.
	CreateAggregator(average domain.AverageDescriptor, period domain.CalculationPeriod) (PeriodAggregator, error)

	// RegisterAggregatorFactory maps a combination to a factory.
	RegisterAggregatorFactory(unit domain.TotalisationPeriodUnit, makeUpTo domain.MakeUpTo, factory AggregatorFactory) error
}
