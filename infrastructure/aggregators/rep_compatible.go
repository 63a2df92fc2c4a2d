package aggregators

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

var _ ports.PeriodAggregator = (*RepCompatible)(nil)

// RepCompatible rolls monthly totals up to calendar boundaries: quarter,
// half-year or calendar year end. It emits one result for every boundary
// month present in the input and not before NotBefore, combining the months
// of the window that ends there. Months missing from the input simply do
// not contribute.
type RepCompatible struct {
	name   string
	config RepCompatibleConfig
}

// RepCompatibleConfig selects the boundary and how months inside a window
// combine.
type RepCompatibleConfig struct {
	// MakeUpTo is the boundary months are rolled up to.
	MakeUpTo domain.MakeUpTo `yaml:"make_up_to" json:"make_up_to" validate:"required,oneof=quarter_end half_year_end calendar_year_end"`

	// AverageStrategy chooses between summing the window's totals and
	// averaging its monthly results.
	AverageStrategy domain.AverageStrategy `yaml:"average_strategy" json:"average_strategy" validate:"required,oneof=over_all_periods mean_of_periods"`

	// WeightAcrossPeriods weights each month by its unweighted sample in
	// the mean_of_periods strategy.
	WeightAcrossPeriods bool `yaml:"weight_across_periods" json:"weight_across_periods"`

	IncludeResponseIDs bool `yaml:"include_response_ids" json:"include_response_ids"`

	// NotBefore drops boundary results dated before it. Input reaching back
	// further still feeds the first window. Zero keeps every boundary.
	NotBefore time.Time `yaml:"-" json:"-"`
}

// DefaultRepCompatibleConfig returns a quarterly rollup that sums totals.
func DefaultRepCompatibleConfig() RepCompatibleConfig {
	return RepCompatibleConfig{
		MakeUpTo:        domain.MakeUpToQuarterEnd,
		AverageStrategy: domain.AverageOverAllPeriods,
	}
}

// NewRepCompatible creates a boundary rollup aggregator.
func NewRepCompatible(name string, config RepCompatibleConfig) (*RepCompatible, error) {
	if name == "" {
		return nil, ErrEmptyAggregatorName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &RepCompatible{name: name, config: config}, nil
}

// Name returns the aggregator identifier.
func (a *RepCompatible) Name() string { return a.name }

// Aggregate expects one total per month, ordered by date.
//
// For each total dated in a boundary month, the window is every total from
// the first month of the window up to and including it. The output is
// dated at the boundary total.
func (a *RepCompatible) Aggregate(_ context.Context, measure *domain.Measure, totals []domain.WeightedTotal) ([]domain.WeightedDailyResult, error) {
	if measure == nil {
		return nil, ErrNilMeasure
	}
	if !sortedByDate(totals) {
		return nil, fmt.Errorf("%s: %w", a.name, ErrUnsortedTotals)
	}

	months := a.config.MakeUpTo.MonthsInWindow()
	combiner := windowCombiner{
		strategy:            a.config.AverageStrategy,
		weightAcrossPeriods: a.config.WeightAcrossPeriods,
		keepIDs:             a.config.IncludeResponseIDs,
	}

	var results []domain.WeightedDailyResult
	for end, t := range totals {
		if int(t.Date.Month())%months != 0 || t.Date.Before(a.config.NotBefore) {
			continue
		}

		windowStart := time.Date(t.Date.Year(), t.Date.Month()-time.Month(months-1), 1, 0, 0, 0, 0, t.Date.Location())
		start := end
		for start > 0 && !totals[start-1].Date.Before(windowStart) {
			start--
		}

		r, err := combiner.combine(measure, totals[start:end+1])
		if err != nil {
			return nil, fmt.Errorf("%s: window ending %s: %w", a.name, t.Date.Format("2006-01"), err)
		}
		results = append(results, r)
	}
	return results, nil
}

// Validate checks the configuration.
func (a *RepCompatible) Validate() error {
	if err := validate.Struct(a.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters overlays a YAML node onto the configuration. The
// configuration is unchanged on error.
func (a *RepCompatible) UnmarshalParameters(params yaml.Node) error {
	config := a.config
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	a.config = config
	return nil
}

// NewRepCompatibleForAverage is the registry factory for monthly averages
// made up to a calendar boundary. Boundaries before the period start are
// not reported.
func NewRepCompatibleForAverage(average domain.AverageDescriptor, period domain.CalculationPeriod) (ports.PeriodAggregator, error) {
	cfg := RepCompatibleConfig{
		MakeUpTo:            average.MakeUpTo,
		AverageStrategy:     average.AverageStrategy,
		WeightAcrossPeriods: average.WeightAcrossPeriods,
		IncludeResponseIDs:  average.IncludeResponseIDs,
	}
	if cfg.AverageStrategy == "" {
		cfg.AverageStrategy = domain.AverageOverAllPeriods
	}
	if len(period.Spans) > 0 {
		cfg.NotBefore = period.StartDate()
	}
	agg, err := NewRepCompatible("rep_compatible:"+average.AverageID, cfg)
	if err != nil {
		return nil, domain.NewConfigurationError(average.AverageID, average.String(), err)
	}
	return agg, nil
}

// NewRepCompatibleFromConfig creates a RepCompatible from a configuration
// map, overlaying DefaultRepCompatibleConfig.
func NewRepCompatibleFromConfig(id string, config map[string]any) (ports.PeriodAggregator, error) {
	cfg := DefaultRepCompatibleConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewRepCompatible(id, cfg)
}
