package significance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tabulate/internal/domain"
)

func proportion(p float64, n uint32) domain.WeightedDailyResult {
	v := p * (1 - p)
	return domain.WeightedDailyResult{
		WeightedResult:        p,
		Variance:              &v,
		UnweightedSampleCount: n,
		WeightedSampleCount:   float64(n),
	}
}

// TestTester_Apply covers direction, insignificance and skipped
// comparisons.
func TestTester_Apply(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur domain.WeightedDailyResult
		want      domain.Significance
		wantScore bool
	}{
		{name: "large rise", prev: proportion(0.30, 1000), cur: proportion(0.40, 1000), want: domain.SignificanceUp, wantScore: true},
		{name: "large fall", prev: proportion(0.40, 1000), cur: proportion(0.30, 1000), want: domain.SignificanceDown, wantScore: true},
		{name: "small change", prev: proportion(0.30, 100), cur: proportion(0.31, 100), want: domain.SignificanceNone, wantScore: true},
		{name: "sample below minimum", prev: proportion(0.10, 10), cur: proportion(0.90, 10), want: domain.SignificanceNone},
		{name: "no variance", prev: domain.WeightedDailyResult{WeightedResult: 1, UnweightedSampleCount: 100}, cur: proportion(0.5, 100), want: domain.SignificanceNone},
	}

	tester, err := NewTester(DefaultConfig())
	require.NoError(t, err)
	measure := &domain.Measure{Name: "Aware", CalculationType: domain.CalculationYesNo}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := []domain.WeightedDailyResult{tt.prev, tt.cur}
			require.NoError(t, tester.Apply(context.Background(), measure, domain.EntityInstance{}, results))

			assert.Nil(t, results[0].Tscore, "first period has nothing to compare with")
			assert.Equal(t, tt.want, results[1].Significance)
			assert.Equal(t, tt.wantScore, results[1].Tscore != nil)
		})
	}
}

// TestTester_Children verifies children are compared index by index.
func TestTester_Children(t *testing.T) {
	tester, err := NewTester(DefaultConfig())
	require.NoError(t, err)

	prev := proportion(0.5, 500)
	prev.ChildResults = []domain.WeightedDailyResult{proportion(0.2, 500)}
	cur := proportion(0.5, 500)
	cur.ChildResults = []domain.WeightedDailyResult{proportion(0.6, 500), proportion(0.9, 500)}

	results := []domain.WeightedDailyResult{prev, cur}
	require.NoError(t, tester.Apply(context.Background(), &domain.Measure{Name: "Aware"}, domain.EntityInstance{}, results))

	assert.Equal(t, domain.SignificanceNone, results[1].Significance)
	assert.Equal(t, domain.SignificanceUp, results[1].ChildResults[0].Significance)
	assert.Nil(t, results[1].ChildResults[1].Tscore)
}

// TestNewTester_Validation rejects out-of-range confidence levels.
func TestNewTester_Validation(t *testing.T) {
	for _, c := range []float64{0, 1, 1.5} {
		_, err := NewTester(Config{Confidence: c, MinSampleSize: 30})
		assert.Error(t, err, "confidence %v", c)
	}
	_, err := NewTester(Config{Confidence: 0.9, MinSampleSize: 1})
	assert.Error(t, err)
}
