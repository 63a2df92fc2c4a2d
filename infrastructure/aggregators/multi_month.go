package aggregators

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

var _ ports.PeriodAggregator = (*MultiMonth)(nil)

// MultiMonth computes trailing moving averages over monthly totals.
//
// Given M inputs, a window of N and K requested outputs, output k sums
// the N totals ending at index M-K+k and applies the measure formula to
// the sums. Windows that would start before the first input are dropped,
// so fewer than K results come back when the input is short.
//
// Example: totals with values [1,2,3,4,5], N=3 and K=3 yield windows
// [1,2,3], [2,3,4] and [3,4,5], i.e. sums [6,9,12].
type MultiMonth struct {
	name   string
	config MultiMonthConfig
}

// MultiMonthConfig controls window length and output count.
type MultiMonthConfig struct {
	// NumberOfPeriodsInAverage is the trailing window length N.
	NumberOfPeriodsInAverage int `yaml:"number_of_periods_in_average" json:"number_of_periods_in_average" validate:"min=1"`

	// NumberOfOutputPeriods is the number of results K to emit.
	NumberOfOutputPeriods int `yaml:"number_of_output_periods" json:"number_of_output_periods" validate:"min=1"`

	IncludeResponseIDs bool `yaml:"include_response_ids" json:"include_response_ids"`
}

// DefaultMultiMonthConfig returns a single three-month average.
func DefaultMultiMonthConfig() MultiMonthConfig {
	return MultiMonthConfig{
		NumberOfPeriodsInAverage: 3,
		NumberOfOutputPeriods:    1,
	}
}

// NewMultiMonth creates a moving-average aggregator.
func NewMultiMonth(name string, config MultiMonthConfig) (*MultiMonth, error) {
	if name == "" {
		return nil, ErrEmptyAggregatorName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &MultiMonth{name: name, config: config}, nil
}

// Name returns the aggregator identifier.
func (a *MultiMonth) Name() string { return a.name }

// Aggregate emits the trailing windows described on MultiMonth. Children
// are summed node-wise within each window.
func (a *MultiMonth) Aggregate(_ context.Context, measure *domain.Measure, totals []domain.WeightedTotal) ([]domain.WeightedDailyResult, error) {
	if measure == nil {
		return nil, ErrNilMeasure
	}
	if !sortedByDate(totals) {
		return nil, fmt.Errorf("%s: %w", a.name, ErrUnsortedTotals)
	}

	n, k, m := a.config.NumberOfPeriodsInAverage, a.config.NumberOfOutputPeriods, len(totals)
	firstEnd := max(n-1, m-k)
	if firstEnd >= m {
		return []domain.WeightedDailyResult{}, nil
	}

	combiner := windowCombiner{strategy: domain.AverageOverAllPeriods, keepIDs: a.config.IncludeResponseIDs}
	results := make([]domain.WeightedDailyResult, 0, m-firstEnd)
	for end := firstEnd; end < m; end++ {
		r, err := combiner.combine(measure, totals[end-n+1:end+1])
		if err != nil {
			return nil, fmt.Errorf("%s: window ending %s: %w", a.name, totals[end].Date.Format("2006-01"), err)
		}
		results = append(results, r)
	}
	return results, nil
}

// Validate checks the configuration.
func (a *MultiMonth) Validate() error {
	if err := validate.Struct(a.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters overlays a YAML node onto the configuration. The
// configuration is unchanged on error.
func (a *MultiMonth) UnmarshalParameters(params yaml.Node) error {
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

// NewMultiMonthForAverage is the registry factory for monthly moving
// averages. The number of outputs is the number of months the calculation
// period covers, at least one. A window length of zero means single months.
func NewMultiMonthForAverage(average domain.AverageDescriptor, period domain.CalculationPeriod) (ports.PeriodAggregator, error) {
	outputs := 1
	if len(period.Spans) > 0 {
		start, end := period.StartDate(), period.EndDate()
		outputs = max(1, (end.Year()-start.Year())*12+int(end.Month())-int(start.Month())+1)
	}

	cfg := MultiMonthConfig{
		NumberOfPeriodsInAverage: max(average.NumberOfPeriodsInAverage, 1),
		NumberOfOutputPeriods:    outputs,
		IncludeResponseIDs:       average.IncludeResponseIDs,
	}
	agg, err := NewMultiMonth("multi_month:"+average.AverageID, cfg)
	if err != nil {
		return nil, domain.NewConfigurationError(average.AverageID, average.String(), err)
	}
	return agg, nil
}

// NewMultiMonthFromConfig creates a MultiMonth from a configuration map,
// overlaying DefaultMultiMonthConfig.
func NewMultiMonthFromConfig(id string, config map[string]any) (ports.PeriodAggregator, error) {
	cfg := DefaultMultiMonthConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewMultiMonth(id, cfg)
}
