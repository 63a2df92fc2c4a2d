package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

var _ StageObserver = (*OTelStageObserver)(nil)

// TracerName is the instrumentation scope of pipeline spans.
const TracerName = "github.com/ahrav/go-tabulate/calculation"

// DefaultLowSampleThreshold is the unweighted sample below which a result
// is flagged on its span.
const DefaultLowSampleThreshold = 30

// OTelStageObserver implements observability for pipeline steps using
// OpenTelemetry tracing. It opens a span per step, records latency and
// outcome metrics, and adds events for low samples and configuration
// errors. The observer keeps no per-call state, so one instance may serve
// concurrent calculations.
type OTelStageObserver struct {
	metrics            ports.MetricsCollector
	tracer             trace.Tracer
	lowSampleThreshold uint32
}

// NewOTelStageObserver creates an observer using the global tracer
// provider. metrics may be nil.
func NewOTelStageObserver(metrics ports.MetricsCollector) *OTelStageObserver {
	return &OTelStageObserver{
		metrics:            metrics,
		tracer:             otel.Tracer(TracerName),
		lowSampleThreshold: DefaultLowSampleThreshold,
	}
}

// PreApply starts the step span.
func (o *OTelStageObserver) PreApply(
	ctx context.Context,
	stage string,
	measure *domain.Measure,
	instance domain.EntityInstance,
) context.Context {
	ctx, span := o.tracer.Start(ctx, "stage."+stage)
	span.SetAttributes(
		attribute.String("calculation.stage", stage),
		attribute.Int("calculation.entity_instance_id", instance.ID),
	)
	if measure != nil {
		span.SetAttributes(
			attribute.String("calculation.measure", measure.Name),
			attribute.String("calculation.type", string(measure.CalculationType)),
		)
	}
	return ctx
}

// PostApply finalizes the span and records metrics.
func (o *OTelStageObserver) PostApply(
	ctx context.Context,
	stage string,
	measure *domain.Measure,
	_ domain.EntityInstance,
	results []domain.WeightedDailyResult,
	elapsed time.Duration,
	err error,
) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	labels := map[string]string{"stage": stage}
	if o.metrics != nil {
		o.metrics.RecordLatency(stage, elapsed, labels)
	}

	if err != nil {
		kind := "calculation"
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			kind = "configuration"
			span.AddEvent("configuration.error", trace.WithAttributes(
				attribute.String("subject", cfgErr.Subject),
				attribute.String("config", cfgErr.Context),
			))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if o.metrics != nil {
			labels["kind"] = kind
			o.metrics.RecordCounter(MetricCalculationErrors, 1, labels)
		}
		return
	}

	span.SetAttributes(attribute.Int("calculation.results", len(results)))
	if len(results) > 0 {
		latest := results[len(results)-1]
		span.SetAttributes(attribute.Int64("calculation.latest_sample", int64(latest.UnweightedSampleCount)))
		if latest.UnweightedSampleCount < o.lowSampleThreshold {
			span.AddEvent("sample.threshold.low", trace.WithAttributes(
				attribute.Int64("unweighted_sample", int64(latest.UnweightedSampleCount)),
				attribute.Int64("threshold", int64(o.lowSampleThreshold)),
			))
		}
		if o.metrics != nil && measure != nil {
			o.metrics.RecordHistogram(MetricResultSampleSize, float64(latest.UnweightedSampleCount),
				map[string]string{"measure": measure.Name})
		}
	}

	if o.metrics != nil {
		o.metrics.RecordCounter("stage_runs_total", 1, labels)
	}
	span.SetStatus(codes.Ok, "stage completed")
}
