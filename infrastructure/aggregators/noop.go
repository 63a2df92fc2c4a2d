package aggregators

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

var _ ports.PeriodAggregator = (*NoOp)(nil)

// NoOp finalises each total independently: one output per input, same
// date, same tree shape. It serves daily and whole-period averages where
// the totals source has already bucketed the data.
type NoOp struct {
	name   string
	config NoOpConfig
}

// NoOpConfig controls the pass-through aggregator.
type NoOpConfig struct {
	// IncludeResponseIDs keeps the audit list on each result.
	IncludeResponseIDs bool `yaml:"include_response_ids" json:"include_response_ids"`
}

// NewNoOp creates a pass-through aggregator.
func NewNoOp(name string, config NoOpConfig) (*NoOp, error) {
	if name == "" {
		return nil, ErrEmptyAggregatorName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &NoOp{name: name, config: config}, nil
}

// Name returns the aggregator identifier.
func (n *NoOp) Name() string { return n.name }

// Aggregate applies the measure formula to every total.
func (n *NoOp) Aggregate(_ context.Context, measure *domain.Measure, totals []domain.WeightedTotal) ([]domain.WeightedDailyResult, error) {
	if measure == nil {
		return nil, ErrNilMeasure
	}

	results := make([]domain.WeightedDailyResult, len(totals))
	for i, t := range totals {
		r, err := CalculateResult(measure, t)
		if err != nil {
			return nil, fmt.Errorf("%s: period %s: %w", n.name, t.Date.Format("2006-01-02"), err)
		}
		results[i] = r
		if !n.config.IncludeResponseIDs {
			walkResults(results[i:i+1], func(r *domain.WeightedDailyResult) { r.ResponseIDsForDay = nil })
		}
	}
	return results, nil
}

// Validate checks the configuration.
func (n *NoOp) Validate() error {
	if err := validate.Struct(n.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters overlays a YAML node onto the configuration.
func (n *NoOp) UnmarshalParameters(params yaml.Node) error {
	config := n.config
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	n.config = config
	return nil
}

// NewNoOpForAverage is the registry factory for day and whole-period
// averages.
func NewNoOpForAverage(average domain.AverageDescriptor, _ domain.CalculationPeriod) (ports.PeriodAggregator, error) {
	return NewNoOp("noop:"+average.AverageID, NoOpConfig{IncludeResponseIDs: average.IncludeResponseIDs})
}

// NewNoOpFromConfig creates a NoOp from a configuration map.
func NewNoOpFromConfig(id string, config map[string]any) (ports.PeriodAggregator, error) {
	var cfg NoOpConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewNoOp(id, cfg)
}
