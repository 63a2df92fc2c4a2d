package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tabulate/infrastructure/filters"
	"github.com/ahrav/go-tabulate/internal/domain"
)

var (
	genderField = domain.Field{Name: "gender"}
	ageField    = domain.Field{Name: "age_band"}
)

func treeBreaks() []domain.Break {
	return []domain.Break{{
		Name:      "Gender",
		Field:     genderField,
		Instances: []int{1, 2},
		ChildBreak: &domain.Break{
			Name:      "Age",
			Field:     ageField,
			Instances: []int{1, 2, 3},
		},
	}}
}

// treeResponses creates n responses rating brand 1 from 1 to 5, alternating
// gender and cycling through three age bands.
func treeResponses(n int) []*domain.Response {
	evc := domain.MustEntityValueCombination(domain.EntityValue{Type: brand, Value: 1})
	responses := make([]*domain.Response, n)
	for i := range n {
		r := domain.NewResponse(int64(i+1), month(2024, time.March), 1)
		r.SetAnswer(*ratingMeasure().PrimaryField, evc, i%5+1)
		r.SetAnswer(genderField, evc, i%2+1)
		r.SetAnswer(ageField, evc, i%3+1)
		responses[i] = r
	}
	return responses
}

func TestTreeAccumulator_Accumulate(t *testing.T) {
	ctx := context.Background()
	responses := treeResponses(90)
	req := TreeRequest{
		Measure:  ratingMeasure(),
		Entities: domain.MustEntityValueCombination(domain.EntityValue{Type: brand, Value: 1}),
		Breaks:   treeBreaks(),
	}

	sequential, err := NewTreeAccumulator(1).Accumulate(ctx, responses, req)
	require.NoError(t, err)

	assert.Equal(t, uint32(90), sequential.SampleSize)
	assert.Equal(t, 270.0, sequential.Result, "18 of each rating 1..5")
	require.Len(t, sequential.ChildResults, 2)
	for _, gender := range sequential.ChildResults {
		assert.Equal(t, uint32(45), gender.SampleSize)
		require.Len(t, gender.ChildResults, 3)
		var sum uint32
		for _, age := range gender.ChildResults {
			assert.Equal(t, uint32(15), age.SampleSize)
			sum += age.SampleSize
		}
		assert.Equal(t, gender.SampleSize, sum)
	}

	for _, workers := range []int{2, 3, 7, 200} {
		parallel, err := NewTreeAccumulator(workers).Accumulate(ctx, responses, req)
		require.NoError(t, err)
		assert.Equal(t, sequential, parallel, "workers=%d", workers)
	}
}

func TestTreeAccumulator_FilterAndVariance(t *testing.T) {
	responses := treeResponses(10)
	mean := 3.0
	onlyGender1, err := filters.NewMetric(genderMeasure(), domain.EntityValueCombination{}, []int{1}, false, false)
	require.NoError(t, err)
	req := TreeRequest{
		Measure:      ratingMeasure(),
		Entities:     domain.MustEntityValueCombination(domain.EntityValue{Type: brand, Value: 1}),
		Filter:       onlyGender1,
		WeightedMean: &mean,
	}

	tree, err := NewTreeAccumulator(4).Accumulate(context.Background(), responses, req)
	require.NoError(t, err)

	// Gender 1 responses are i = 0,2,4,6,8 with ratings 1,3,5,2,4.
	assert.Equal(t, uint32(5), tree.SampleSize)
	assert.Equal(t, 15.0, tree.Result)
	assert.InDelta(t, 2.0, tree.PopulationVariance(), 1e-9)
	assert.Nil(t, tree.ChildResults)
}

func TestTreeAccumulator_Edges(t *testing.T) {
	acc := NewTreeAccumulator(0)
	entities := domain.MustEntityValueCombination(domain.EntityValue{Type: brand, Value: 1})

	empty, err := acc.Accumulate(context.Background(), nil, TreeRequest{Measure: ratingMeasure(), Entities: entities, Breaks: treeBreaks()})
	require.NoError(t, err)
	assert.Equal(t, domain.NewResultTree(treeBreaks()), empty, "empty input keeps the break shape")

	_, err = acc.Accumulate(context.Background(), treeResponses(3), TreeRequest{Entities: entities})
	assert.ErrorIs(t, err, domain.ErrInvalidMeasure)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = acc.Accumulate(ctx, treeResponses(3), TreeRequest{Measure: ratingMeasure(), Entities: entities})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPartition(t *testing.T) {
	tests := []struct {
		n, k int
		want [][2]int
	}{
		{n: 0, k: 4, want: nil},
		{n: 3, k: 8, want: [][2]int{{0, 1}, {1, 2}, {2, 3}}},
		{n: 10, k: 3, want: [][2]int{{0, 4}, {4, 8}, {8, 10}}},
		{n: 6, k: 1, want: [][2]int{{0, 6}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, partition(tt.n, tt.k), "n=%d k=%d", tt.n, tt.k)
	}
}

func genderMeasure() *domain.Measure {
	return &domain.Measure{
		Name:            "Gender",
		CalculationType: domain.CalculationAverage,
		PrimaryField:    &genderField,
	}
}
