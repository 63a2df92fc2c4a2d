package ports

import (
	"github.com/ahrav/go-tabulate/internal/domain"
)

// Filter decides which response records take part in a calculation.
// The set of implementations is closed: AlwaysInclude, And, Or and Metric.
type Filter interface {
	// CreateForEntityValues builds the predicate for a coordinate in the
	// data space. The predicate is pure and may be shared between goroutines.
	CreateForEntityValues(targets domain.EntityValueCombination) domain.Predicate

	// FieldDependenciesAndDataTargets reports the fields and entity
	// instances the query layer must fetch to evaluate the filter, given
	// the data targets of the result being calculated.
	FieldDependenciesAndDataTargets(resultTargets []domain.DataTarget) ([]domain.Field, []domain.DataTarget)

	// ImplicitEntityCombination lists the entity types whose values come
	// from the evaluation context rather than the filter itself.
	ImplicitEntityCombination() []domain.EntityType
}
