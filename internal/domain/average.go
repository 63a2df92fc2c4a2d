package domain

import "encoding/json"

// TotalisationPeriodUnit is the granularity raw totals are bucketed at.
type TotalisationPeriodUnit string

// Supported totalisation units.
const (
	TotalisationDay   TotalisationPeriodUnit = "day"
	TotalisationMonth TotalisationPeriodUnit = "month"
	TotalisationAll   TotalisationPeriodUnit = "all"
)

// MakeUpTo is the boundary monthly totals are rolled up to.
type MakeUpTo string

// Supported make-up-to boundaries.
const (
	MakeUpToDay             MakeUpTo = "day"
	MakeUpToMonthEnd        MakeUpTo = "month_end"
	MakeUpToQuarterEnd      MakeUpTo = "quarter_end"
	MakeUpToHalfYearEnd     MakeUpTo = "half_year_end"
	MakeUpToCalendarYearEnd MakeUpTo = "calendar_year_end"
)

// MonthsInWindow returns the number of months a boundary rollup spans,
// or zero for boundaries that are not calendar rollups.
func (m MakeUpTo) MonthsInWindow() int {
	switch m {
	case MakeUpToQuarterEnd:
		return 3
	case MakeUpToHalfYearEnd:
		return 6
	case MakeUpToCalendarYearEnd:
		return 12
	default:
		return 0
	}
}

// WeightingMethod names how respondent weights were produced.
type WeightingMethod string

// Supported weighting methods.
const (
	WeightingNone      WeightingMethod = "none"
	WeightingQuotaCell WeightingMethod = "quota_cell"
)

// AverageStrategy chooses how periods inside a rollup window combine.
type AverageStrategy string

const (
	// AverageOverAllPeriods sums totals across the window, then divides.
	AverageOverAllPeriods AverageStrategy = "over_all_periods"

	// AverageMeanOfPeriods averages the per-period results.
	AverageMeanOfPeriods AverageStrategy = "mean_of_periods"
)

// AverageDescriptor is the averaging configuration for a calculation.
type AverageDescriptor struct {
	AverageID   string `yaml:"average_id" json:"average_id" validate:"required"`
	DisplayName string `yaml:"display_name" json:"display_name"`

	TotalisationPeriodUnit TotalisationPeriodUnit `yaml:"totalisation_period_unit" json:"totalisation_period_unit" validate:"required,oneof=day month all"`
	MakeUpTo               MakeUpTo               `yaml:"make_up_to" json:"make_up_to" validate:"required,makeupto"`

	// NumberOfPeriodsInAverage is the trailing window length for moving
	// averages.
	NumberOfPeriodsInAverage int `yaml:"number_of_periods_in_average" json:"number_of_periods_in_average" validate:"min=0"`

	WeightingMethod WeightingMethod `yaml:"weighting_method" json:"weighting_method" validate:"omitempty,oneof=none quota_cell"`
	AverageStrategy AverageStrategy `yaml:"average_strategy" json:"average_strategy" validate:"omitempty,oneof=over_all_periods mean_of_periods"`

	// WeightAcrossPeriods weights each period's mean by its unweighted sample
	// when AverageStrategy is mean_of_periods.
	WeightAcrossPeriods bool `yaml:"weight_across_periods" json:"weight_across_periods"`

	// IncludeResponseIDs keeps the per-bucket response id audit list.
	IncludeResponseIDs bool `yaml:"include_response_ids" json:"include_response_ids"`
}

// String renders the descriptor as JSON for error and log context.
func (a AverageDescriptor) String() string {
	b, err := json.Marshal(a)
	if err != nil {
		return a.AverageID
	}
	return string(b)
}
