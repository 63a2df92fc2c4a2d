package filters

import (
	"fmt"
	"slices"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

var (
	_ ports.Filter = (*And)(nil)
	_ ports.Filter = (*Or)(nil)
)

// composite holds the children shared by And and Or. Dependencies and
// implicit entity types are the distinct union over all children.
type composite struct {
	filters []ports.Filter
}

func (c composite) predicates(targets domain.EntityValueCombination) []domain.Predicate {
	preds := make([]domain.Predicate, len(c.filters))
	for i, f := range c.filters {
		preds[i] = f.CreateForEntityValues(targets)
	}
	return preds
}

// FieldDependenciesAndDataTargets returns the distinct union of the
// children's fields and data targets, in first-seen order.
func (c composite) FieldDependenciesAndDataTargets(resultTargets []domain.DataTarget) ([]domain.Field, []domain.DataTarget) {
	var (
		fields     []domain.Field
		targets    []domain.DataTarget
		seenFields = make(map[string]struct{})
		seenTarget = make(map[string]struct{})
	)
	for _, f := range c.filters {
		childFields, childTargets := f.FieldDependenciesAndDataTargets(resultTargets)
		for _, field := range childFields {
			if _, ok := seenFields[field.Name]; ok {
				continue
			}
			seenFields[field.Name] = struct{}{}
			fields = append(fields, field)
		}
		for _, t := range childTargets {
			key := fmt.Sprintf("%s%v", t.EntityType, t.Instances)
			if _, ok := seenTarget[key]; ok {
				continue
			}
			seenTarget[key] = struct{}{}
			targets = append(targets, t)
		}
	}
	return fields, targets
}

// ImplicitEntityCombination returns the distinct union of the children's
// implicit entity types.
func (c composite) ImplicitEntityCombination() []domain.EntityType {
	var types []domain.EntityType
	for _, f := range c.filters {
		for _, t := range f.ImplicitEntityCombination() {
			if !slices.Contains(types, t) {
				types = append(types, t)
			}
		}
	}
	return types
}

// And accepts a response only when every child filter accepts it.
// An And with no children accepts everything.
type And struct{ composite }

// NewAnd combines filters with logical AND.
func NewAnd(filters ...ports.Filter) *And {
	return &And{composite{filters: slices.Clone(filters)}}
}

// CreateForEntityValues builds every child predicate against the same
// targets and requires all of them to pass.
func (a *And) CreateForEntityValues(targets domain.EntityValueCombination) domain.Predicate {
	preds := a.predicates(targets)
	return func(r *domain.Response) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// Or accepts a response when any child filter accepts it.
// An Or with no children rejects everything.
type Or struct{ composite }

// NewOr combines filters with logical OR.
func NewOr(filters ...ports.Filter) *Or {
	return &Or{composite{filters: slices.Clone(filters)}}
}

// CreateForEntityValues builds every child predicate against the same
// targets and requires any of them to pass.
func (o *Or) CreateForEntityValues(targets domain.EntityValueCombination) domain.Predicate {
	preds := o.predicates(targets)
	return func(r *domain.Response) bool {
		for _, p := range preds {
			if p(r) {
				return true
			}
		}
		return false
	}
}
