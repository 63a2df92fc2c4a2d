package domain

import (
	"slices"
)

// CalculationType selects the statistic a Measure produces.
type CalculationType string

// Supported calculation types.
const (
	// CalculationAverage produces the weighted mean of the measure value.
	CalculationAverage CalculationType = "average"

	// CalculationYesNo produces the weighted proportion of respondents whose
	// answer counts as "yes".
	CalculationYesNo CalculationType = "yes_no"

	// CalculationNetPromoterScore produces promoters minus detractors as a
	// percentage of the base.
	CalculationNetPromoterScore CalculationType = "net_promoter_score"
)

// FieldOperation controls how the secondary field takes part in value
// matching.
type FieldOperation string

const (
	// FieldOperationNone ignores the secondary field.
	FieldOperationNone FieldOperation = "none"

	// FieldOperationOr matches when either the primary or secondary value matches.
	FieldOperationOr FieldOperation = "or"
)

// Net promoter score answer bands on the usual 0-10 scale.
const (
	npsDetractorMax = 6
	npsPromoterMin  = 9
)

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the range, inclusive.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Measure is a configured metric definition. It is created once when
// configuration is loaded and read by every pipeline stage; it must not be
// mutated afterwards.
type Measure struct {
	// Name uniquely identifies the measure.
	Name string `yaml:"name" json:"name" validate:"required"`

	// VarCode is the short code the measure is reported under.
	VarCode string `yaml:"varcode" json:"varcode"`

	// CalculationType selects the final statistic.
	CalculationType CalculationType `yaml:"calculation_type" json:"calculation_type" validate:"required,calctype"`

	// EntityCombination lists the entity types the measure is defined over.
	EntityCombination []EntityType `yaml:"entity_combination" json:"entity_combination"`

	// BaseField and BaseValues decide base population membership. A nil
	// BaseField puts every response in base; empty BaseValues accepts any
	// answered value.
	BaseField  *Field `yaml:"base_field,omitempty" json:"base_field,omitempty"`
	BaseValues []int  `yaml:"base_values,omitempty" json:"base_values,omitempty"`

	// PrimaryField holds the measured answer.
	PrimaryField *Field `yaml:"primary_field" json:"primary_field" validate:"required"`

	// SecondaryField is consulted when FieldOperation is "or".
	SecondaryField *Field         `yaml:"secondary_field,omitempty" json:"secondary_field,omitempty"`
	FieldOperation FieldOperation `yaml:"field_operation,omitempty" json:"field_operation,omitempty" validate:"omitempty,oneof=none or"`

	// TrueValues are the answers counted as "yes" by yes/no measures.
	TrueValues []int `yaml:"true_values,omitempty" json:"true_values,omitempty"`

	// ScaleFactor multiplies final results when set.
	ScaleFactor *float64 `yaml:"scale_factor,omitempty" json:"scale_factor,omitempty"`

	// PreNormalisation and PostNormalisation remap results linearly when
	// both are set and differ.
	PreNormalisation  *Range `yaml:"pre_normalisation,omitempty" json:"pre_normalisation,omitempty"`
	PostNormalisation *Range `yaml:"post_normalisation,omitempty" json:"post_normalisation,omitempty"`

	// HiddenDataTargets are entity instances the measure needs for data
	// access but which are never shown to the user.
	HiddenDataTargets []DataTarget `yaml:"hidden_data_targets,omitempty" json:"hidden_data_targets,omitempty"`

	// BaseVariableConfigurationID links the measure to a configured base
	// variable, when it has one.
	BaseVariableConfigurationID *int `yaml:"base_variable_configuration_id,omitempty" json:"base_variable_configuration_id,omitempty"`
}

// IsOr reports whether the secondary field takes part in matching.
func (m *Measure) IsOr() bool {
	return m.FieldOperation == FieldOperationOr && m.SecondaryField != nil
}

// InBase reports whether the response belongs to the measure's base
// population at the given entity values.
func (m *Measure) InBase(r *Response, entities EntityValueCombination) bool {
	if m.BaseField == nil {
		return true
	}
	v, ok := r.Answer(*m.BaseField, entities)
	if !ok {
		return false
	}
	return len(m.BaseValues) == 0 || slices.Contains(m.BaseValues, v)
}

// PrimaryValue returns the answer held in the primary field.
func (m *Measure) PrimaryValue(r *Response, entities EntityValueCombination) (int, bool) {
	if m.PrimaryField == nil {
		return 0, false
	}
	return r.Answer(*m.PrimaryField, entities)
}

// SecondaryValue returns the answer held in the secondary field.
func (m *Measure) SecondaryValue(r *Response, entities EntityValueCombination) (int, bool) {
	if m.SecondaryField == nil {
		return 0, false
	}
	return r.Answer(*m.SecondaryField, entities)
}

// Value converts a response into the number the measure accumulates:
// the raw answer for averages, 0/1 for yes/no and -1/0/+1 for net promoter
// score. ok is false when the response is out of base or unanswered.
func (m *Measure) Value(r *Response, entities EntityValueCombination) (float64, bool) {
	if !m.InBase(r, entities) {
		return 0, false
	}
	primary, hasPrimary := m.PrimaryValue(r, entities)
	switch m.CalculationType {
	case CalculationYesNo:
		yes := hasPrimary && slices.Contains(m.TrueValues, primary)
		if !yes && m.IsOr() {
			if secondary, ok := m.SecondaryValue(r, entities); ok {
				yes = slices.Contains(m.TrueValues, secondary)
			}
		}
		if yes {
			return 1, true
		}
		return 0, true
	case CalculationNetPromoterScore:
		if !hasPrimary {
			return 0, false
		}
		switch {
		case primary >= npsPromoterMin:
			return 1, true
		case primary <= npsDetractorMax:
			return -1, true
		default:
			return 0, true
		}
	default:
		if !hasPrimary {
			return 0, false
		}
		return float64(primary), true
	}
}

// FieldDependencies returns the distinct fields the measure reads.
func (m *Measure) FieldDependencies() []Field {
	fields := make([]Field, 0, 3)
	for _, f := range []*Field{m.BaseField, m.PrimaryField, m.SecondaryField} {
		if f == nil {
			continue
		}
		if slices.ContainsFunc(fields, func(existing Field) bool { return existing.Name == f.Name }) {
			continue
		}
		fields = append(fields, *f)
	}
	return fields
}

// NormalisationRanges returns both normalisation ranges and whether a remap
// applies, i.e. both are configured and they differ.
func (m *Measure) NormalisationRanges() (from, to Range, ok bool) {
	if m.PreNormalisation == nil || m.PostNormalisation == nil {
		return Range{}, Range{}, false
	}
	from, to = *m.PreNormalisation, *m.PostNormalisation
	return from, to, from != to
}
