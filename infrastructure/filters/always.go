// Package filters provides the response filters that decide base-population
// and measure-value inclusion. The set is closed: AlwaysInclude, And, Or and
// Metric.
package filters

import (
	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

var _ ports.Filter = AlwaysInclude{}

// AlwaysInclude accepts every response.
type AlwaysInclude struct{}

// CreateForEntityValues returns a predicate that is always true.
func (AlwaysInclude) CreateForEntityValues(domain.EntityValueCombination) domain.Predicate {
	return func(*domain.Response) bool { return true }
}

// FieldDependenciesAndDataTargets reports no dependencies.
func (AlwaysInclude) FieldDependenciesAndDataTargets([]domain.DataTarget) ([]domain.Field, []domain.DataTarget) {
	return nil, nil
}

// ImplicitEntityCombination returns an empty combination.
func (AlwaysInclude) ImplicitEntityCombination() []domain.EntityType { return nil }
