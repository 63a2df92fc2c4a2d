// Package domain contains pure, dependency-free domain models and types
// for the weighted-result calculation core.
package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// EntityType identifies a dimension of the data space, such as "brand"
// or "gender".
type EntityType string

// EntityInstance is a concrete value of an EntityType.
type EntityInstance struct {
	// ID is the numeric identifier stored against responses.
	ID int `yaml:"id" json:"id" validate:"min=0"`

	// Name is the display name used in category results.
	Name string `yaml:"name" json:"name" validate:"required"`

	// StartDate is the first date results are reported for this instance.
	// Results dated earlier are trimmed from final output.
	StartDate *time.Time `yaml:"start_date,omitempty" json:"start_date,omitempty"`
}

// EntityValue pairs an EntityType with one of its instance IDs.
type EntityValue struct {
	Type  EntityType `json:"type"`
	Value int        `json:"value"`
}

// EntityValueCombination is an ordered set of entity values identifying a
// coordinate in the data space. It holds at most one value per EntityType
// and is immutable once constructed.
type EntityValueCombination struct {
	values []EntityValue
}

// NewEntityValueCombination builds a combination from the given values.
// It returns an error if two values share an EntityType.
func NewEntityValueCombination(values ...EntityValue) (EntityValueCombination, error) {
	seen := make(map[EntityType]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v.Type]; dup {
			return EntityValueCombination{}, fmt.Errorf("%w: duplicate entity type %q", ErrInvalidEntityCombination, v.Type)
		}
		seen[v.Type] = struct{}{}
	}
	return EntityValueCombination{values: slices.Clone(values)}, nil
}

// MustEntityValueCombination is like NewEntityValueCombination but panics on
// duplicate types. Intended for literals in tests and static configuration.
func MustEntityValueCombination(values ...EntityValue) EntityValueCombination {
	evc, err := NewEntityValueCombination(values...)
	if err != nil {
		panic(err)
	}
	return evc
}

// Get returns the value for the given type, if present.
func (c EntityValueCombination) Get(t EntityType) (int, bool) {
	for _, v := range c.values {
		if v.Type == t {
			return v.Value, true
		}
	}
	return 0, false
}

// Has reports whether the combination holds a value for t.
func (c EntityValueCombination) Has(t EntityType) bool {
	_, ok := c.Get(t)
	return ok
}

// Len returns the number of entity values in the combination.
func (c EntityValueCombination) Len() int { return len(c.values) }

// Values returns a copy of the entity values in order.
func (c EntityValueCombination) Values() []EntityValue { return slices.Clone(c.values) }

// Types returns the entity types in order.
func (c EntityValueCombination) Types() []EntityType {
	types := make([]EntityType, len(c.values))
	for i, v := range c.values {
		types[i] = v.Type
	}
	return types
}

// WithAdditionalValues returns a new combination extended by the values
// whose types are not already present. Existing values always win, so the
// result never holds a type twice.
func (c EntityValueCombination) WithAdditionalValues(values ...EntityValue) EntityValueCombination {
	merged := slices.Clone(c.values)
	for _, v := range values {
		if c.Has(v.Type) || slices.ContainsFunc(merged[len(c.values):], func(m EntityValue) bool { return m.Type == v.Type }) {
			continue
		}
		merged = append(merged, v)
	}
	return EntityValueCombination{values: merged}
}

// Restrict returns a combination holding only the values for the given
// types, ordered by types. Missing types are skipped.
func (c EntityValueCombination) Restrict(types []EntityType) EntityValueCombination {
	out := make([]EntityValue, 0, len(types))
	for _, t := range types {
		if v, ok := c.Get(t); ok {
			out = append(out, EntityValue{Type: t, Value: v})
		}
	}
	return EntityValueCombination{values: out}
}

// Key returns a canonical string for the combination, independent of the
// order values were supplied in.
func (c EntityValueCombination) Key() string {
	parts := make([]string, len(c.values))
	for i, v := range c.values {
		parts[i] = string(v.Type) + "=" + strconv.Itoa(v.Value)
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

// String implements fmt.Stringer.
func (c EntityValueCombination) String() string { return "{" + c.Key() + "}" }

// DataTarget names the entity instances of one type that a query must
// fetch for a result.
type DataTarget struct {
	EntityType EntityType `yaml:"entity_type" json:"entity_type" validate:"required"`
	Instances  []int      `yaml:"instances" json:"instances"`
}

// Field is a stored question addressed by values of its entity types.
type Field struct {
	// Name is the field (varcode) identifier.
	Name string `yaml:"name" json:"name" validate:"required"`

	// EntityCombination lists the entity types an answer is keyed by.
	EntityCombination []EntityType `yaml:"entity_combination" json:"entity_combination"`
}
