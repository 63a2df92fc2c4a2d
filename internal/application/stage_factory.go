package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-tabulate/infrastructure/aggregators"
	"github.com/ahrav/go-tabulate/infrastructure/middleware"
	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

// MetricCalculations counts finished CreateFinalResult calls by status.
const MetricCalculations = "calculations_total"

// CalculationStageFactory turns intermediate weighted-total series into
// final per-entity results. For every series it runs, in this order:
// aggregate, scale, normalise, optionally test significance, then trim
// results dated before the subset or target instance start date.
//
// The factory holds no per-call state and may serve concurrent calls.
// Inputs are cloned on entry, so callers keep ownership of what they pass.
type CalculationStageFactory struct {
	registry     ports.AggregatorRegistry
	scaler       aggregators.Scaler
	normaliser   *aggregators.Normaliser
	significance ports.ResultStage
	observer     middleware.StageObserver
	metrics      ports.MetricsCollector
	logger       *slog.Logger
	tracer       trace.Tracer
}

// StageFactoryOption configures a CalculationStageFactory.
type StageFactoryOption func(*CalculationStageFactory)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) StageFactoryOption {
	return func(f *CalculationStageFactory) { f.logger = logger }
}

// WithMetrics sets the metrics collector. Unless an observer is supplied,
// stages are also instrumented with an OpenTelemetry observer reporting to
// it.
func WithMetrics(metrics ports.MetricsCollector) StageFactoryOption {
	return func(f *CalculationStageFactory) { f.metrics = metrics }
}

// WithStageObserver instruments every pipeline step with observer.
func WithStageObserver(observer middleware.StageObserver) StageFactoryOption {
	return func(f *CalculationStageFactory) { f.observer = observer }
}

// WithNormaliser replaces the default normaliser.
func WithNormaliser(normaliser *aggregators.Normaliser) StageFactoryOption {
	return func(f *CalculationStageFactory) { f.normaliser = normaliser }
}

// WithSignificance appends a significance stage after normalisation.
func WithSignificance(stage ports.ResultStage) StageFactoryOption {
	return func(f *CalculationStageFactory) { f.significance = stage }
}

// NewCalculationStageFactory creates a factory selecting aggregators from
// registry.
func NewCalculationStageFactory(registry ports.AggregatorRegistry, opts ...StageFactoryOption) (*CalculationStageFactory, error) {
	if registry == nil {
		return nil, fmt.Errorf("aggregator registry cannot be nil")
	}
	f := &CalculationStageFactory{
		registry: registry,
		tracer:   otel.Tracer(middleware.TracerName),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "calculation_stage_factory")
	if f.observer == nil && f.metrics != nil {
		f.observer = middleware.NewOTelStageObserver(f.metrics)
	}
	if f.normaliser == nil {
		n, err := aggregators.NewNormaliser(aggregators.DefaultNormaliserConfig(), f.logger, f.metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create normaliser: %w", err)
		}
		f.normaliser = n
	}
	return f, nil
}

// CreateFinalResult calculates final results for every intermediate
// series. Any error is fatal for the whole call; no partial output is
// returned.
func (f *CalculationStageFactory) CreateFinalResult(
	ctx context.Context,
	subset domain.Subset,
	average domain.AverageDescriptor,
	period domain.CalculationPeriod,
	measure *domain.Measure,
	intermediates []domain.EntityTotalsSeries,
	targetInstances []domain.EntityInstance,
) (results []domain.EntityWeightedDailyResults, err error) {
	ctx, span := f.tracer.Start(ctx, "calculation.CreateFinalResult", trace.WithAttributes(
		attribute.String("calculation.subset", subset.ID),
		attribute.String("calculation.average", average.AverageID),
		attribute.Int("calculation.series", len(intermediates)),
	))
	start := time.Now()
	defer func() {
		f.finish(span, measure, time.Since(start), err)
		span.End()
	}()

	if measure == nil {
		return nil, fmt.Errorf("%w: measure is required", domain.ErrInvalidMeasure)
	}
	span.SetAttributes(attribute.String("calculation.measure", measure.Name))
	if err := period.Validate(); err != nil {
		return nil, err
	}

	aggregator, err := f.registry.CreateAggregator(average, period)
	if err != nil {
		return nil, err
	}

	stages, err := f.stages()
	if err != nil {
		return nil, err
	}

	targets := make(map[int]domain.EntityInstance, len(targetInstances))
	for _, inst := range targetInstances {
		targets[inst.ID] = inst
	}

	results = make([]domain.EntityWeightedDailyResults, 0, len(intermediates))
	for _, series := range intermediates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		series = series.Clone()

		daily, err := f.calculateSeries(ctx, aggregator, stages, measure, series)
		if err != nil {
			return nil, fmt.Errorf("measure %s, entity instance %d: %w", measure.Name, series.EntityInstance.ID, err)
		}

		daily = trimBefore(daily, subset.StartDate)
		if target, ok := targets[series.EntityInstance.ID]; ok {
			daily = trimBefore(daily, target.StartDate)
		}

		results = append(results, domain.EntityWeightedDailyResults{
			EntityInstance:       series.EntityInstance,
			WeightedDailyResults: daily,
		})
	}

	f.logger.DebugContext(ctx, "final results calculated",
		"measure", measure.Name,
		"subset", subset.ID,
		"average", average.AverageID,
		"aggregator", aggregator.Name(),
		"series", len(results),
	)
	return results, nil
}

func (f *CalculationStageFactory) calculateSeries(
	ctx context.Context,
	aggregator ports.PeriodAggregator,
	stages []ports.ResultStage,
	measure *domain.Measure,
	series domain.EntityTotalsSeries,
) ([]domain.WeightedDailyResult, error) {
	agg, err := middleware.NewInstrumentedAggregator(aggregator, series.EntityInstance, f.observer)
	if err != nil {
		return nil, err
	}
	daily, err := agg.Aggregate(ctx, measure, series.Totals)
	if err != nil {
		return nil, fmt.Errorf("aggregator %s failed: %w", agg.Name(), err)
	}
	for _, stage := range stages {
		if err := stage.Apply(ctx, measure, series.EntityInstance, daily); err != nil {
			return nil, fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}
	}
	return daily, nil
}

// stages returns the post-aggregation stages in their fixed order.
func (f *CalculationStageFactory) stages() ([]ports.ResultStage, error) {
	raw := []ports.ResultStage{f.scaler, f.normaliser}
	if f.significance != nil {
		raw = append(raw, f.significance)
	}
	stages := make([]ports.ResultStage, len(raw))
	for i, s := range raw {
		wrapped, err := middleware.NewInstrumentedStage(s, f.observer)
		if err != nil {
			return nil, err
		}
		stages[i] = wrapped
	}
	return stages, nil
}

func (f *CalculationStageFactory) finish(span trace.Span, measure *domain.Measure, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		name := ""
		if measure != nil {
			name = measure.Name
		}
		f.logger.Error("final result calculation failed", "measure", name, "error", err)
	} else {
		span.SetStatus(codes.Ok, "calculation completed")
	}
	if f.metrics != nil {
		labels := map[string]string{"stage": "create_final_result"}
		f.metrics.RecordLatency("create_final_result", elapsed, labels)
		labels["status"] = status
		f.metrics.RecordCounter(MetricCalculations, 1, labels)
	}
}

// trimBefore drops results dated before start. A nil start keeps all.
func trimBefore(results []domain.WeightedDailyResult, start *time.Time) []domain.WeightedDailyResult {
	if start == nil {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if !r.Date.Before(*start) {
			kept = append(kept, r)
		}
	}
	return kept
}
