// Package significance flags statistically significant period-on-period
// changes in finalised results.
package significance

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

var _ ports.ResultStage = (*Tester)(nil)

// ErrNilMeasure is returned when Apply is called without a measure.
var ErrNilMeasure = errors.New("measure is required")

var validate = validator.New()

// Config controls the test.
type Config struct {
	// Confidence is the two-sided confidence level, e.g. 0.95.
	Confidence float64 `yaml:"confidence" json:"confidence" validate:"gt=0,lt=1"`

	// MinSampleSize is the smallest unweighted sample either period may
	// have for the comparison to run.
	MinSampleSize uint32 `yaml:"min_sample_size" json:"min_sample_size" validate:"min=2"`
}

// DefaultConfig tests at 95% confidence with at least 30 respondents.
func DefaultConfig() Config {
	return Config{Confidence: 0.95, MinSampleSize: 30}
}

// Tester compares each result with the one before it using Welch's
// unequal-variance t-test and records the t-score and direction of any
// significant change. Results without a variance, such as plain averages,
// are left untouched.
type Tester struct {
	config Config
}

// NewTester creates a significance stage.
func NewTester(config Config) (*Tester, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &Tester{config: config}, nil
}

// Name returns the stage identifier.
func (t *Tester) Name() string { return "significance" }

// Apply annotates results[i] against results[i-1], recursing into children
// that exist on both sides.
func (t *Tester) Apply(_ context.Context, measure *domain.Measure, _ domain.EntityInstance, results []domain.WeightedDailyResult) error {
	if measure == nil {
		return ErrNilMeasure
	}
	for i := 1; i < len(results); i++ {
		t.compare(&results[i-1], &results[i])
	}
	return nil
}

func (t *Tester) compare(prev, cur *domain.WeightedDailyResult) {
	if score, ok := t.tscore(prev, cur); ok {
		cur.Tscore = &score
		cur.Significance = domain.SignificanceNone
		if p := t.pValue(prev, cur, score); p < 1-t.config.Confidence {
			if score > 0 {
				cur.Significance = domain.SignificanceUp
			} else {
				cur.Significance = domain.SignificanceDown
			}
		}
	}

	n := min(len(prev.ChildResults), len(cur.ChildResults))
	for j := range n {
		t.compare(&prev.ChildResults[j], &cur.ChildResults[j])
	}
}

func (t *Tester) tscore(prev, cur *domain.WeightedDailyResult) (float64, bool) {
	if prev.Variance == nil || cur.Variance == nil {
		return 0, false
	}
	if prev.UnweightedSampleCount < t.config.MinSampleSize || cur.UnweightedSampleCount < t.config.MinSampleSize {
		return 0, false
	}
	se := math.Sqrt(*prev.Variance/float64(prev.UnweightedSampleCount) + *cur.Variance/float64(cur.UnweightedSampleCount))
	if se == 0 || math.IsNaN(se) {
		return 0, false
	}
	return (cur.WeightedResult - prev.WeightedResult) / se, true
}

// pValue is the two-sided p-value of score with Welch-Satterthwaite
// degrees of freedom.
func (t *Tester) pValue(prev, cur *domain.WeightedDailyResult, score float64) float64 {
	a := *prev.Variance / float64(prev.UnweightedSampleCount)
	b := *cur.Variance / float64(cur.UnweightedSampleCount)
	df := (a + b) * (a + b) / (a*a/float64(prev.UnweightedSampleCount-1) + b*b/float64(cur.UnweightedSampleCount-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * (1 - dist.CDF(math.Abs(score)))
}
