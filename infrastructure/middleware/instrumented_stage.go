package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

// ErrNilStage is returned when wrapping a nil stage or aggregator.
var ErrNilStage = errors.New("instrumented stage: next stage is required")

// StageObserver provides observability hooks around pipeline steps.
// Implementations can add tracing, metrics, and logging without coupling
// observability concerns to calculation logic.
type StageObserver interface {
	// PreApply is called before the wrapped step runs. The returned context
	// is passed back to PostApply.
	PreApply(ctx context.Context, stage string, measure *domain.Measure, instance domain.EntityInstance) context.Context

	// PostApply is called after the step with its output and timing.
	PostApply(
		ctx context.Context,
		stage string,
		measure *domain.Measure,
		instance domain.EntityInstance,
		results []domain.WeightedDailyResult,
		elapsed time.Duration,
		err error,
	)
}

var (
	_ ports.ResultStage      = (*InstrumentedStage)(nil)
	_ ports.PeriodAggregator = (*InstrumentedAggregator)(nil)
)

// InstrumentedStage wraps a ResultStage with observer hooks. Spans nest
// under the context passed to each Apply call.
type InstrumentedStage struct {
	next     ports.ResultStage
	observer StageObserver
}

// NewInstrumentedStage wraps next. A nil observer makes the wrapper a
// transparent pass-through.
func NewInstrumentedStage(next ports.ResultStage, observer StageObserver) (*InstrumentedStage, error) {
	if next == nil {
		return nil, ErrNilStage
	}
	return &InstrumentedStage{next: next, observer: observer}, nil
}

// Name returns the wrapped stage's name.
func (s *InstrumentedStage) Name() string { return s.next.Name() }

// Apply runs the wrapped stage between the observer hooks.
func (s *InstrumentedStage) Apply(ctx context.Context, measure *domain.Measure, instance domain.EntityInstance, results []domain.WeightedDailyResult) error {
	if s.observer == nil {
		return s.next.Apply(ctx, measure, instance, results)
	}

	ctx = s.observer.PreApply(ctx, s.next.Name(), measure, instance)
	start := time.Now()
	err := s.next.Apply(ctx, measure, instance, results)
	s.observer.PostApply(ctx, s.next.Name(), measure, instance, results, time.Since(start), err)
	return err
}

// InstrumentedAggregator wraps a PeriodAggregator with observer hooks.
type InstrumentedAggregator struct {
	next     ports.PeriodAggregator
	instance domain.EntityInstance
	observer StageObserver
}

// NewInstrumentedAggregator wraps next for the series of one entity
// instance.
func NewInstrumentedAggregator(
	next ports.PeriodAggregator,
	instance domain.EntityInstance,
	observer StageObserver,
) (*InstrumentedAggregator, error) {
	if next == nil {
		return nil, ErrNilStage
	}
	return &InstrumentedAggregator{next: next, instance: instance, observer: observer}, nil
}

// Name returns the wrapped aggregator's name.
func (a *InstrumentedAggregator) Name() string { return a.next.Name() }

// Aggregate runs the wrapped aggregator between the observer hooks.
func (a *InstrumentedAggregator) Aggregate(ctx context.Context, measure *domain.Measure, totals []domain.WeightedTotal) ([]domain.WeightedDailyResult, error) {
	if a.observer == nil {
		return a.next.Aggregate(ctx, measure, totals)
	}

	ctx = a.observer.PreApply(ctx, a.next.Name(), measure, a.instance)
	start := time.Now()
	results, err := a.next.Aggregate(ctx, measure, totals)
	a.observer.PostApply(ctx, a.next.Name(), measure, a.instance, results, time.Since(start), err)
	return results, err
}

// Validate checks the wrapped aggregator.
func (a *InstrumentedAggregator) Validate() error {
	if a.next == nil {
		return ErrNilStage
	}
	if err := a.next.Validate(); err != nil {
		return fmt.Errorf("instrumented aggregator %s: %w", a.next.Name(), err)
	}
	return nil
}
