package filters

import (
	"fmt"
	"math"
	"slices"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

var _ ports.Filter = (*Metric)(nil)

// Metric accepts responses that are in a measure's base and whose measure
// value matches a configured set of values or an inclusive range.
//
// Entity values come from two places: the explicit combination the filter
// was built with, and, for the measure's remaining ("implicit") entity
// types, whatever the evaluation context supplies, e.g. the brand currently
// being calculated.
type Metric struct {
	measure  *domain.Measure
	explicit domain.EntityValueCombination
	implicit []domain.EntityType

	values  []int
	allowed map[int]struct{}
	isRange bool
	min     int
	max     int
	invert  bool
}

// NewMetric creates a metric filter over measure.
//
// In range mode values must hold exactly two bounds, min then max; a
// negative bound leaves that end open. Otherwise values is the set of
// allowed primary values, and an empty set matches anything. invert flips
// the match, but never admits responses outside the base.
//
// Returns an error wrapping domain.ErrInvalidRangeFilter for a range that
// does not have two bounds, or domain.ErrInvalidMeasure for a nil measure.
func NewMetric(
	measure *domain.Measure,
	explicit domain.EntityValueCombination,
	values []int,
	isRange bool,
	invert bool,
) (*Metric, error) {
	if measure == nil {
		return nil, fmt.Errorf("%w: metric filter requires a measure", domain.ErrInvalidMeasure)
	}
	if isRange && len(values) != 2 {
		return nil, fmt.Errorf("%w: measure %q got %d values %v",
			domain.ErrInvalidRangeFilter, measure.Name, len(values), values)
	}

	m := &Metric{
		measure:  measure,
		explicit: explicit,
		values:   slices.Clone(values),
		isRange:  isRange,
		invert:   invert,
	}

	for _, t := range measure.EntityCombination {
		if !explicit.Has(t) {
			m.implicit = append(m.implicit, t)
		}
	}

	if isRange {
		m.min, m.max = values[0], values[1]
		if m.min < 0 {
			m.min = math.MinInt
		}
		if m.max < 0 {
			m.max = math.MaxInt
		}
	} else if len(values) > 0 {
		m.allowed = make(map[int]struct{}, len(values))
		for _, v := range values {
			m.allowed[v] = struct{}{}
		}
	}

	return m, nil
}

// Measure returns the measure the filter reads.
func (m *Metric) Measure() *domain.Measure { return m.measure }

// CreateForEntityValues merges the explicit entity values with the
// target's values for the implicit entity types and builds the predicate.
func (m *Metric) CreateForEntityValues(targets domain.EntityValueCombination) domain.Predicate {
	entities := m.explicit.WithAdditionalValues(targets.Restrict(m.implicit).Values()...)
	measure := m.measure

	return func(r *domain.Response) bool {
		if !measure.InBase(r, entities) {
			return false
		}
		primary, ok := measure.PrimaryValue(r, entities)
		match := m.matches(primary, ok)
		if !match && measure.IsOr() {
			secondary, ok := measure.SecondaryValue(r, entities)
			match = m.matches(secondary, ok)
		}
		return match != m.invert
	}
}

func (m *Metric) matches(v int, answered bool) bool {
	if len(m.values) == 0 {
		return true
	}
	if !answered {
		return false
	}
	if m.isRange {
		return v >= m.min && v <= m.max
	}
	_, ok := m.allowed[v]
	return ok
}

// FieldDependenciesAndDataTargets returns the measure's fields and the
// concatenation of three target sources: the explicit filter values, the
// result's own targets for implicit entity types, and the measure's hidden
// targets. Duplicates across sources are left for consumers to tolerate.
func (m *Metric) FieldDependenciesAndDataTargets(resultTargets []domain.DataTarget) ([]domain.Field, []domain.DataTarget) {
	targets := make([]domain.DataTarget, 0, m.explicit.Len()+len(resultTargets)+len(m.measure.HiddenDataTargets))
	for _, v := range m.explicit.Values() {
		targets = append(targets, domain.DataTarget{EntityType: v.Type, Instances: []int{v.Value}})
	}
	for _, t := range resultTargets {
		if slices.Contains(m.implicit, t.EntityType) {
			targets = append(targets, t)
		}
	}
	targets = append(targets, m.measure.HiddenDataTargets...)
	return m.measure.FieldDependencies(), targets
}

// ImplicitEntityCombination returns the measure's entity types the filter
// leaves to the evaluation context.
func (m *Metric) ImplicitEntityCombination() []domain.EntityType {
	return slices.Clone(m.implicit)
}
