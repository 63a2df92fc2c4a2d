package application

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ahrav/go-tabulate/infrastructure/aggregators"
	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.AggregatorRegistry = (*DefaultAggregatorRegistry)(nil)

// NamedAggregatorFactory builds an aggregator of one type from an id and a
// parameter map, the way aggregators are declared in configuration.
type NamedAggregatorFactory func(id string, config map[string]any) (ports.PeriodAggregator, error)

type aggregatorKey struct {
	unit     domain.TotalisationPeriodUnit
	makeUpTo domain.MakeUpTo
}

type aggregatorOverride struct {
	aggregatorType string
	params         map[string]any
}

// DefaultAggregatorRegistry maps averaging configuration to period
// aggregators. Selection is an explicit table keyed by totalisation unit
// and make-up-to boundary; unmapped pairs fail loudly. Averages may also be
// pinned to a named aggregator type with their own parameters.
type DefaultAggregatorRegistry struct {
	// factories maps (unit, make-up-to) pairs to their factory functions.
	factories map[aggregatorKey]ports.AggregatorFactory
	// named maps aggregator type names to configuration factories.
	named map[string]NamedAggregatorFactory
	// overrides pins average ids to a named aggregator.
	overrides map[string]aggregatorOverride
	// mu protects concurrent access to the maps above.
	mu sync.RWMutex
}

// NewDefaultAggregatorRegistry creates a registry with the built-in
// selection table pre-registered.
func NewDefaultAggregatorRegistry() *DefaultAggregatorRegistry {
	registry := &DefaultAggregatorRegistry{
		factories: make(map[aggregatorKey]ports.AggregatorFactory),
		named:     make(map[string]NamedAggregatorFactory),
		overrides: make(map[string]aggregatorOverride),
	}
	registry.registerBuiltinFactories()
	return registry
}

// registerBuiltinFactories installs the standard selection table:
// day and whole-period totals pass through unchanged, monthly totals roll
// up to calendar boundaries or a trailing moving window.
func (r *DefaultAggregatorRegistry) registerBuiltinFactories() {
	r.factories[aggregatorKey{domain.TotalisationDay, domain.MakeUpToDay}] = aggregators.NewNoOpForAverage
	r.factories[aggregatorKey{domain.TotalisationAll, domain.MakeUpToDay}] = aggregators.NewNoOpForAverage

	for _, boundary := range []domain.MakeUpTo{
		domain.MakeUpToQuarterEnd,
		domain.MakeUpToHalfYearEnd,
		domain.MakeUpToCalendarYearEnd,
	} {
		r.factories[aggregatorKey{domain.TotalisationMonth, boundary}] = aggregators.NewRepCompatibleForAverage
	}
	r.factories[aggregatorKey{domain.TotalisationMonth, domain.MakeUpToMonthEnd}] = aggregators.NewMultiMonthForAverage

	r.named["noop"] = aggregators.NewNoOpFromConfig
	r.named["rep_compatible"] = aggregators.NewRepCompatibleFromConfig
	r.named["multi_month"] = aggregators.NewMultiMonthFromConfig
}

// CreateAggregator returns the aggregator for the descriptor. A pinned
// named aggregator wins over the selection table.
func (r *DefaultAggregatorRegistry) CreateAggregator(
	average domain.AverageDescriptor,
	period domain.CalculationPeriod,
) (ports.PeriodAggregator, error) {
	r.mu.RLock()
	override, pinned := r.overrides[average.AverageID]
	factory, exists := r.factories[aggregatorKey{average.TotalisationPeriodUnit, average.MakeUpTo}]
	r.mu.RUnlock()

	if pinned {
		agg, err := r.CreateNamedAggregator(override.aggregatorType, "average:"+average.AverageID, maps.Clone(override.params))
		if err != nil {
			return nil, domain.NewConfigurationError(average.AverageID, average.String(), err)
		}
		return agg, nil
	}

	if !exists {
		return nil, domain.NewConfigurationError(average.AverageID, average.String(),
			fmt.Errorf("%w: %s/%s", domain.ErrUnsupportedAverage, average.TotalisationPeriodUnit, average.MakeUpTo))
	}

	agg, err := factory(average, period)
	if err != nil {
		return nil, err
	}
	if err := agg.Validate(); err != nil {
		return nil, domain.NewConfigurationError(average.AverageID, average.String(), err)
	}
	return agg, nil
}

// RegisterAggregatorFactory maps a unit and make-up-to pair to a factory,
// replacing any existing mapping.
func (r *DefaultAggregatorRegistry) RegisterAggregatorFactory(
	unit domain.TotalisationPeriodUnit,
	makeUpTo domain.MakeUpTo,
	factory ports.AggregatorFactory,
) error {
	if unit == "" || makeUpTo == "" {
		return fmt.Errorf("totalisation unit and make up to cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[aggregatorKey{unit, makeUpTo}] = factory
	return nil
}

// CreateNamedAggregator creates an aggregator by type name from a
// parameter map.
func (r *DefaultAggregatorRegistry) CreateNamedAggregator(
	aggregatorType string,
	id string,
	config map[string]any,
) (ports.PeriodAggregator, error) {
	r.mu.RLock()
	factory, exists := r.named[aggregatorType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported aggregator type: %s", aggregatorType)
	}
	if id == "" {
		return nil, fmt.Errorf("aggregator ID cannot be empty")
	}
	if config == nil {
		config = make(map[string]any)
	}

	agg, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator %s of type %s: %w", id, aggregatorType, err)
	}
	return agg, nil
}

// RegisterNamedAggregatorFactory registers a configuration factory for an
// aggregator type name.
func (r *DefaultAggregatorRegistry) RegisterNamedAggregatorFactory(aggregatorType string, factory NamedAggregatorFactory) error {
	if aggregatorType == "" {
		return fmt.Errorf("aggregator type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.named[aggregatorType] = factory
	return nil
}

// PinAverage makes the average always use the named aggregator type with
// the given parameters. The parameters are checked by building the
// aggregator once.
func (r *DefaultAggregatorRegistry) PinAverage(averageID, aggregatorType string, params map[string]any) error {
	if averageID == "" {
		return fmt.Errorf("average ID cannot be empty")
	}
	if _, err := r.CreateNamedAggregator(aggregatorType, "average:"+averageID, maps.Clone(params)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.overrides[averageID] = aggregatorOverride{aggregatorType: aggregatorType, params: maps.Clone(params)}
	return nil
}

// GetSupportedTypes returns the registered named aggregator types, sorted.
func (r *DefaultAggregatorRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.named))
}
