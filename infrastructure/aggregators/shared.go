// Package aggregators provides the period aggregation strategies and the
// post-aggregation result stages (scaling and normalisation) of the
// weighted-result pipeline.
package aggregators

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tabulate/internal/domain"
)

// Common errors returned by aggregators and stages.
var (
	// ErrNilMeasure is returned when an aggregator is called without a measure.
	ErrNilMeasure = errors.New("measure is required")

	// ErrEmptyAggregatorName is returned when creating an aggregator or
	// stage without a name.
	ErrEmptyAggregatorName = errors.New("aggregator name cannot be empty")

	// ErrUnsortedTotals is returned when totals do not ascend by date.
	ErrUnsortedTotals = errors.New("totals must be ordered by date")

	// ErrDegenerateRange is returned when a normalisation source range has
	// zero width.
	ErrDegenerateRange = errors.New("normalisation range has zero width")
)

// npsMultiplier converts the promoter/detractor balance into a percentage.
const npsMultiplier = 100

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// ApplyCalculationType computes the measure's statistic from weighted totals.
//
// Average and yes/no divide the weighted value total by the weighted sample
// count; net promoter score multiplies that ratio by 100. A zero weighted
// sample returns the value total unchanged, so "no data" shows up as a zero
// sample size rather than NaN. Any other calculation type is a fatal
// configuration error.
func ApplyCalculationType(measure *domain.Measure, weightedValueTotal, weightedSampleCount float64) (float64, error) {
	var multiplier float64
	switch measure.CalculationType {
	case domain.CalculationAverage, domain.CalculationYesNo:
		multiplier = 1
	case domain.CalculationNetPromoterScore:
		multiplier = npsMultiplier
	default:
		return 0, domain.NewConfigurationError(measure.Name,
			fmt.Sprintf("calculation_type=%q", measure.CalculationType), domain.ErrUnsupportedCalculationType)
	}

	if weightedSampleCount == 0 {
		return weightedValueTotal, nil
	}
	return weightedValueTotal / weightedSampleCount * multiplier, nil
}

// CalculateResult converts a weighted total and its children into a
// finalised result using the measure's formula. Yes/no results also carry
// the binomial variance and standard deviation of the proportion.
func CalculateResult(measure *domain.Measure, total domain.WeightedTotal) (domain.WeightedDailyResult, error) {
	result := domain.NewWeightedDailyResult(total)
	if err := finalise(measure, &result); err != nil {
		return domain.WeightedDailyResult{}, err
	}

	if total.ChildResults != nil {
		result.ChildResults = make([]domain.WeightedDailyResult, len(total.ChildResults))
		for i, child := range total.ChildResults {
			childResult, err := CalculateResult(measure, child)
			if err != nil {
				return domain.WeightedDailyResult{}, fmt.Errorf("child %d: %w", i, err)
			}
			result.ChildResults[i] = childResult
		}
	}
	return result, nil
}

// finalise sets WeightedResult and the dispersion fields from the result's
// own totals.
func finalise(measure *domain.Measure, result *domain.WeightedDailyResult) error {
	value, err := ApplyCalculationType(measure, result.WeightedValueTotal, result.WeightedSampleCount)
	if err != nil {
		return err
	}
	result.WeightedResult = value
	setBinomialDispersion(measure, result)
	return nil
}

func setBinomialDispersion(measure *domain.Measure, result *domain.WeightedDailyResult) {
	if measure.CalculationType != domain.CalculationYesNo || result.WeightedSampleCount <= 0 {
		return
	}
	p := result.WeightedResult
	variance := p * (1 - p)
	if variance < 0 {
		variance = 0
	}
	sd := math.Sqrt(variance)
	result.Variance = &variance
	result.StandardDeviation = &sd
}

// sumTotals adds the counts of totals, ignoring children. Response ids are
// concatenated only when keepIDs is set.
func sumTotals(totals []domain.WeightedTotal, keepIDs bool) domain.WeightedTotal {
	var sum domain.WeightedTotal
	for _, t := range totals {
		sum.WeightedValueTotal += t.WeightedValueTotal
		sum.UnweightedValueTotal += t.UnweightedValueTotal
		sum.UnweightedSampleCount += t.UnweightedSampleCount
		sum.WeightedSampleCount += t.WeightedSampleCount
		if keepIDs {
			sum.ResponseIDsForDay = append(sum.ResponseIDsForDay, t.ResponseIDsForDay...)
		}
	}
	if len(totals) > 0 {
		sum.Date = totals[len(totals)-1].Date
	}
	return sum
}

// windowCombiner rolls a window of totals into a single result.
type windowCombiner struct {
	strategy            domain.AverageStrategy
	weightAcrossPeriods bool
	keepIDs             bool
}

// combine produces one result for the window, dated at its last total, and
// recurses into the children of every total that has them. Totals with
// children must agree on the number of children.
func (c windowCombiner) combine(measure *domain.Measure, window []domain.WeightedTotal) (domain.WeightedDailyResult, error) {
	result := domain.NewWeightedDailyResult(sumTotals(window, c.keepIDs))

	switch c.strategy {
	case domain.AverageMeanOfPeriods:
		value, err := c.meanOfPeriods(measure, window, result)
		if err != nil {
			return domain.WeightedDailyResult{}, err
		}
		result.WeightedResult = value
		setBinomialDispersion(measure, &result)
	default:
		if err := finalise(measure, &result); err != nil {
			return domain.WeightedDailyResult{}, err
		}
	}

	children, err := c.combineChildren(measure, window)
	if err != nil {
		return domain.WeightedDailyResult{}, err
	}
	result.ChildResults = children
	return result, nil
}

// meanOfPeriods averages the per-period results of periods with a
// non-zero weighted sample, weighting each by its unweighted sample when
// weightAcrossPeriods is set. With no contributing periods it falls back
// to the formula over the summed totals.
func (c windowCombiner) meanOfPeriods(measure *domain.Measure, window []domain.WeightedTotal, summed domain.WeightedDailyResult) (float64, error) {
	var weightedSum, weightSum float64
	for _, t := range window {
		if t.WeightedSampleCount == 0 {
			continue
		}
		value, err := ApplyCalculationType(measure, t.WeightedValueTotal, t.WeightedSampleCount)
		if err != nil {
			return 0, err
		}
		w := 1.0
		if c.weightAcrossPeriods {
			w = float64(t.UnweightedSampleCount)
		}
		weightedSum += value * w
		weightSum += w
	}
	if weightSum == 0 {
		return ApplyCalculationType(measure, summed.WeightedValueTotal, summed.WeightedSampleCount)
	}
	return weightedSum / weightSum, nil
}

func (c windowCombiner) combineChildren(measure *domain.Measure, window []domain.WeightedTotal) ([]domain.WeightedDailyResult, error) {
	width := -1
	for _, t := range window {
		if t.ChildResults == nil {
			continue
		}
		if width >= 0 && len(t.ChildResults) != width {
			return nil, fmt.Errorf("%w: %d children vs %d at %s",
				domain.ErrTreeShapeMismatch, len(t.ChildResults), width, t.Date.Format("2006-01-02"))
		}
		width = len(t.ChildResults)
	}
	if width < 0 {
		return nil, nil
	}

	children := make([]domain.WeightedDailyResult, width)
	for i := range width {
		column := make([]domain.WeightedTotal, 0, len(window))
		for _, t := range window {
			if t.ChildResults != nil {
				column = append(column, t.ChildResults[i])
			}
		}
		child, err := c.combine(measure, column)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		children[i] = child
	}
	return children, nil
}

// walkResults calls fn on every result in the forest, parents first.
func walkResults(results []domain.WeightedDailyResult, fn func(r *domain.WeightedDailyResult)) {
	for i := range results {
		fn(&results[i])
		walkResults(results[i].ChildResults, fn)
	}
}

// scaleDispersion rescales the dispersion fields after WeightedResult was
// multiplied by factor.
func scaleDispersion(r *domain.WeightedDailyResult, factor float64) {
	if r.StandardDeviation != nil {
		sd := *r.StandardDeviation * math.Abs(factor)
		r.StandardDeviation = &sd
	}
	if r.Variance != nil {
		v := *r.Variance * factor * factor
		r.Variance = &v
	}
}

// decodeConfig overlays a configuration map onto cfg, which the caller
// pre-fills with defaults.
func decodeConfig(config map[string]any, cfg any) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// sortedByDate reports whether totals ascend by date.
func sortedByDate(totals []domain.WeightedTotal) bool {
	return slices.IsSortedFunc(totals, func(a, b domain.WeightedTotal) int { return a.Date.Compare(b.Date) })
}
