package domain

import (
	"slices"
	"time"
)

// WeightedTotal is the accumulated, pre-calculation total for one time
// bucket. It is mutated only while totals are accumulated.
type WeightedTotal struct {
	// Date is the end date of the bucket.
	Date time.Time `json:"date"`

	WeightedValueTotal    float64 `json:"weighted_value_total"`
	UnweightedValueTotal  float64 `json:"unweighted_value_total"`
	UnweightedSampleCount uint32  `json:"unweighted_sample_count"`
	WeightedSampleCount   float64 `json:"weighted_sample_count"`

	// ResponseIDsForDay is the audit list of contributing responses.
	ResponseIDsForDay []int64 `json:"response_ids_for_day,omitempty"`

	// ChildResults holds the totals for nested breaks.
	ChildResults []WeightedTotal `json:"child_results,omitempty"`
}

// Clone returns a deep copy of the total and its children.
func (t WeightedTotal) Clone() WeightedTotal {
	t.ResponseIDsForDay = slices.Clone(t.ResponseIDsForDay)
	t.ChildResults = CloneWeightedTotals(t.ChildResults)
	return t
}

// CloneWeightedTotals deep copies a slice of totals, preserving nil.
func CloneWeightedTotals(totals []WeightedTotal) []WeightedTotal {
	if totals == nil {
		return nil
	}
	out := make([]WeightedTotal, len(totals))
	for i, t := range totals {
		out[i] = t.Clone()
	}
	return out
}

// Significance marks a statistically significant change.
type Significance string

// Significance outcomes.
const (
	SignificanceNone Significance = ""
	SignificanceUp   Significance = "up"
	SignificanceDown Significance = "down"
)

// WeightedDailyResult is the finalised value for one output period. Scaling
// and normalisation rewrite WeightedResult in place.
type WeightedDailyResult struct {
	Date time.Time `json:"date"`

	WeightedValueTotal    float64 `json:"weighted_value_total"`
	UnweightedValueTotal  float64 `json:"unweighted_value_total"`
	UnweightedSampleCount uint32  `json:"unweighted_sample_count"`
	WeightedSampleCount   float64 `json:"weighted_sample_count"`
	ResponseIDsForDay     []int64 `json:"response_ids_for_day,omitempty"`

	// WeightedResult is the computed statistic.
	WeightedResult float64 `json:"weighted_result"`

	StandardDeviation *float64     `json:"standard_deviation,omitempty"`
	Variance          *float64     `json:"variance,omitempty"`
	Tscore            *float64     `json:"tscore,omitempty"`
	Significance      Significance `json:"significance,omitempty"`

	// ChildResults mirrors break nesting.
	ChildResults []WeightedDailyResult `json:"child_results,omitempty"`
}

// NewWeightedDailyResult copies the total's fields into a result with a
// zero WeightedResult. Children are left for the caller to fill.
func NewWeightedDailyResult(t WeightedTotal) WeightedDailyResult {
	return WeightedDailyResult{
		Date:                  t.Date,
		WeightedValueTotal:    t.WeightedValueTotal,
		UnweightedValueTotal:  t.UnweightedValueTotal,
		UnweightedSampleCount: t.UnweightedSampleCount,
		WeightedSampleCount:   t.WeightedSampleCount,
		ResponseIDsForDay:     slices.Clone(t.ResponseIDsForDay),
	}
}

// Clone returns a deep copy of the result and its children.
func (r WeightedDailyResult) Clone() WeightedDailyResult {
	r.ResponseIDsForDay = slices.Clone(r.ResponseIDsForDay)
	r.StandardDeviation = cloneFloat(r.StandardDeviation)
	r.Variance = cloneFloat(r.Variance)
	r.Tscore = cloneFloat(r.Tscore)
	r.ChildResults = CloneWeightedDailyResults(r.ChildResults)
	return r
}

// CloneWeightedDailyResults deep copies a slice of results, preserving nil.
func CloneWeightedDailyResults(results []WeightedDailyResult) []WeightedDailyResult {
	if results == nil {
		return nil
	}
	out := make([]WeightedDailyResult, len(results))
	for i, r := range results {
		out[i] = r.Clone()
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// EntityTotalsSeries is the intermediate weighted-total series for one
// entity instance, supplied by the totalisation layer.
type EntityTotalsSeries struct {
	EntityInstance EntityInstance  `json:"entity_instance"`
	Totals         []WeightedTotal `json:"totals"`
}

// Clone returns a deep copy of the series.
func (s EntityTotalsSeries) Clone() EntityTotalsSeries {
	s.Totals = CloneWeightedTotals(s.Totals)
	return s
}

// EntityWeightedDailyResults pairs an entity instance with its finalised
// results across the requested period.
type EntityWeightedDailyResults struct {
	EntityInstance       EntityInstance        `json:"entity_instance"`
	WeightedDailyResults []WeightedDailyResult `json:"weighted_daily_results"`
}

// CategoryResult is the flattened output row for profile breakdowns.
type CategoryResult struct {
	MeasureName                 string   `json:"measure_name"`
	EntityInstanceName          string   `json:"entity_instance_name"`
	Result                      float64  `json:"result"`
	AverageValue                *float64 `json:"average_value,omitempty"`
	BaseVariableConfigurationID *int     `json:"base_variable_configuration_id,omitempty"`
}
