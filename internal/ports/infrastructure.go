package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-tabulate/internal/domain"
)

// EntityRepository resolves entity instances by id. Implementations return
// an error wrapping ErrNotFound for unknown instances; callers treat that as
// fatal.
type EntityRepository interface {
	// Instance returns the instance of entityType with the given id.
	Instance(ctx context.Context, entityType domain.EntityType, id int) (domain.EntityInstance, error)

	// Instances returns every instance of entityType, ordered by id.
	Instances(ctx context.Context, entityType domain.EntityType) ([]domain.EntityInstance, error)
}

// MeasureRepository resolves configured measures.
type MeasureRepository interface {
	// Measure returns the measure with the given name.
	// The returned measure is shared and must not be modified.
	Measure(ctx context.Context, name string) (*domain.Measure, error)
}

// SubsetRepository resolves configured subsets.
type SubsetRepository interface {
	Subset(ctx context.Context, id string) (domain.Subset, error)
}

// AverageRepository resolves averaging configuration.
type AverageRepository interface {
	// Average returns the descriptor with the given id.
	Average(ctx context.Context, id string) (domain.AverageDescriptor, error)

	// Averages returns every configured descriptor, used for lookups by
	// display name.
	Averages(ctx context.Context) ([]domain.AverageDescriptor, error)
}

// TotalsRequest describes the weighted totals a calculation needs.
type TotalsRequest struct {
	SubsetID string
	Measure  *domain.Measure
	Average  domain.AverageDescriptor
	Period   domain.CalculationPeriod

	// Filter restricts the responses that contribute to the totals.
	Filter Filter

	// Instances are the entity instances to produce series for.
	Instances []domain.EntityInstance

	// Breaks shape the ChildResults of every total.
	Breaks []domain.Break
}

// WeightedTotalSource supplies per-period weighted totals per entity
// instance. It is implemented by the external totalisation layer.
type WeightedTotalSource interface {
	Totals(ctx context.Context, req TotalsRequest) ([]domain.EntityTotalsSeries, error)
}

// ProfileQuery is one weighted query issued for a group of profile measures
// sharing a base.
type ProfileQuery struct {
	SubsetID     string
	Span         domain.CalculationPeriodSpan
	Average      domain.AverageDescriptor
	BaseField    *domain.Field
	BaseValues   []int
	Measures     []*domain.Measure
	BrandIDs     []int
	Organisation string

	// OtherInstances lists, per second entity type of the grouped measures,
	// the instance ids rows are produced for.
	OtherInstances map[domain.EntityType][]int
}

// ProfileRow is one weighted row returned for a profile query.
type ProfileRow struct {
	// MeasureName identifies which grouped measure the row belongs to.
	MeasureName string

	// BrandID is the value of the measure's first entity type.
	BrandID int

	// OtherInstanceID is the value of the measure's second entity type.
	OtherInstanceID int

	WeightedValueTotal  float64
	WeightedSampleCount float64
}

// ProfileQuerier executes weighted profile queries against the data store.
type ProfileQuerier interface {
	QueryWeighted(ctx context.Context, query ProfileQuery) ([]ProfileRow, error)
}

// MetricNormalisationOutOfBounds counts result series that fell outside the
// expected range before or after normalisation.
const MetricNormalisationOutOfBounds = "normalisation_out_of_bounds_total"

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like calculations, warnings, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like sample sizes and
	// result counts.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
