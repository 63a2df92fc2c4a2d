package aggregators

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

var _ ports.ResultStage = (*Normaliser)(nil)

// Normaliser linearly remaps results from a measure's pre-normalisation
// range onto its post-normalisation range.
//
// Out-of-range data is reported, never fatal: the normaliser logs a
// warning, rate limited so a misconfigured measure cannot flood the logs,
// and counts every occurrence.
type Normaliser struct {
	config  NormaliserConfig
	logger  *slog.Logger
	metrics ports.MetricsCollector
	limiter *rate.Limiter
}

// NormaliserConfig bounds how often out-of-range warnings are logged.
type NormaliserConfig struct {
	// WarningsPerSecond is the sustained warning rate.
	WarningsPerSecond float64 `yaml:"warnings_per_second" json:"warnings_per_second" validate:"gt=0"`

	// WarningBurst is the number of warnings allowed at once.
	WarningBurst int `yaml:"warning_burst" json:"warning_burst" validate:"min=1"`
}

// DefaultNormaliserConfig allows one warning per second with a burst of ten.
func DefaultNormaliserConfig() NormaliserConfig {
	return NormaliserConfig{WarningsPerSecond: 1, WarningBurst: 10}
}

// NewNormaliser creates a normalisation stage. A nil logger uses
// slog.Default; metrics may be nil.
func NewNormaliser(config NormaliserConfig, logger *slog.Logger, metrics ports.MetricsCollector) (*Normaliser, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normaliser{
		config:  config,
		logger:  logger.With("component", "normaliser"),
		metrics: metrics,
		limiter: rate.NewLimiter(rate.Limit(config.WarningsPerSecond), config.WarningBurst),
	}, nil
}

// Name returns the stage identifier.
func (n *Normaliser) Name() string { return "normaliser" }

// Apply remaps results in place when the measure has two distinct
// normalisation ranges. Observed values are checked against the source
// range before remapping and against the target range after.
func (n *Normaliser) Apply(ctx context.Context, measure *domain.Measure, instance domain.EntityInstance, results []domain.WeightedDailyResult) error {
	if measure == nil {
		return ErrNilMeasure
	}
	from, to, ok := measure.NormalisationRanges()
	if !ok {
		return nil
	}
	if from.Max == from.Min {
		return domain.NewConfigurationError(measure.Name,
			fmt.Sprintf("pre_normalisation=[%g,%g]", from.Min, from.Max), ErrDegenerateRange)
	}

	n.checkRange(ctx, measure, instance, results, from, "pre")

	k := (to.Max - to.Min) / (from.Max - from.Min)
	walkResults(results, func(r *domain.WeightedDailyResult) {
		r.WeightedResult = to.Min + (r.WeightedResult-from.Min)*k
		scaleDispersion(r, k)
	})

	n.checkRange(ctx, measure, instance, results, to, "post")
	return nil
}

// checkRange compares the observed extent of results that have a sample
// against the expected range.
func (n *Normaliser) checkRange(
	ctx context.Context,
	measure *domain.Measure,
	instance domain.EntityInstance,
	results []domain.WeightedDailyResult,
	expected domain.Range,
	phase string,
) {
	lo, hi := math.Inf(1), math.Inf(-1)
	walkResults(results, func(r *domain.WeightedDailyResult) {
		if r.UnweightedSampleCount == 0 {
			return
		}
		lo = math.Min(lo, r.WeightedResult)
		hi = math.Max(hi, r.WeightedResult)
	})
	if math.IsInf(lo, 1) || (expected.Contains(lo) && expected.Contains(hi)) {
		return
	}

	if n.metrics != nil {
		n.metrics.RecordCounter(ports.MetricNormalisationOutOfBounds, 1, map[string]string{
			"measure": measure.Name,
			"phase":   phase,
		})
	}
	if n.limiter.Allow() {
		n.logger.WarnContext(ctx, "results outside expected normalisation range",
			"measure", measure.Name,
			"entity_instance_id", instance.ID,
			"entity_instance", instance.Name,
			"phase", phase,
			"observed_min", lo,
			"observed_max", hi,
			"expected_min", expected.Min,
			"expected_max", expected.Max,
		)
	}
}
