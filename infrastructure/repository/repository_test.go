package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tabulate/internal/domain"
	"github.com/ahrav/go-tabulate/internal/ports"
)

const (
	brand  domain.EntityType = "brand"
	aspect domain.EntityType = "aspect"
)

var (
	regionField  = domain.Field{Name: "region"}
	genderField  = domain.Field{Name: "gender"}
	ratingField  = domain.Field{Name: "rating", EntityCombination: []domain.EntityType{brand}}
	imageryField = domain.Field{Name: "imagery", EntityCombination: []domain.EntityType{brand, aspect}}
)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func ratingMeasure() *domain.Measure {
	return &domain.Measure{
		Name:              "Rating",
		CalculationType:   domain.CalculationAverage,
		EntityCombination: []domain.EntityType{brand},
		PrimaryField:      &ratingField,
	}
}

func imageryMeasure() *domain.Measure {
	return &domain.Measure{
		Name:              "Imagery",
		VarCode:           "img",
		CalculationType:   domain.CalculationYesNo,
		EntityCombination: []domain.EntityType{brand, aspect},
		PrimaryField:      &imageryField,
		TrueValues:        []int{1},
	}
}

func ratingResponse(id int64, d time.Time, weight float64, brandID, rating, gender int) *domain.Response {
	r := domain.NewResponse(id, d, weight)
	r.SetAnswer(ratingField, domain.MustEntityValueCombination(domain.EntityValue{Type: brand, Value: brandID}), rating)
	r.SetAnswer(genderField, domain.EntityValueCombination{}, gender)
	r.SetAnswer(regionField, domain.EntityValueCombination{}, 1)
	return r
}

func TestMetadata_AddAndLookup(t *testing.T) {
	ctx := context.Background()
	md := NewMetadata()

	require.NoError(t, md.AddMeasure(ratingMeasure()))
	require.NoError(t, md.AddSubset(domain.Subset{ID: "UK"}))
	require.NoError(t, md.AddAverage(domain.AverageDescriptor{AverageID: "quarterly"}))
	require.NoError(t, md.AddAverage(domain.AverageDescriptor{AverageID: "monthly"}))
	require.NoError(t, md.AddEntityInstance(brand, domain.EntityInstance{ID: 2, Name: "Beta"}))
	require.NoError(t, md.AddEntityInstance(brand, domain.EntityInstance{ID: 1, Name: "Alpha"}))

	m, err := md.Measure(ctx, "Rating")
	require.NoError(t, err)
	assert.Equal(t, "Rating", m.Name)

	subset, err := md.Subset(ctx, "UK")
	require.NoError(t, err)
	assert.Equal(t, "UK", subset.ID)

	averages, err := md.Averages(ctx)
	require.NoError(t, err)
	require.Len(t, averages, 2)
	assert.Equal(t, "monthly", averages[0].AverageID)

	instances, err := md.Instances(ctx, brand)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "Alpha", instances[0].Name)

	none, err := md.Instances(ctx, aspect)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMetadata_Errors(t *testing.T) {
	ctx := context.Background()
	md := NewMetadata()
	require.NoError(t, md.AddMeasure(ratingMeasure()))
	require.NoError(t, md.AddEntityInstance(brand, domain.EntityInstance{ID: 1, Name: "Alpha"}))

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"duplicate measure", func() error { return md.AddMeasure(ratingMeasure()) }, ErrDuplicate},
		{"nil measure", func() error { return md.AddMeasure(nil) }, domain.ErrInvalidMeasure},
		{"duplicate instance", func() error {
			return md.AddEntityInstance(brand, domain.EntityInstance{ID: 1, Name: "Again"})
		}, ErrDuplicate},
		{"missing measure", func() error { _, err := md.Measure(ctx, "Nope"); return err }, ports.ErrNotFound},
		{"missing subset", func() error { _, err := md.Subset(ctx, "FR"); return err }, ports.ErrNotFound},
		{"missing average", func() error { _, err := md.Average(ctx, "weekly"); return err }, ports.ErrNotFound},
		{"missing instance", func() error { _, err := md.Instance(ctx, brand, 9); return err }, ports.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := md.Instance(ctx, brand, 9)
	var repoErr *ports.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.Equal(t, "brand", repoErr.Kind)
	assert.Equal(t, "9", repoErr.Key)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = md.Measure(cancelled, "Rating")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResponseStore_MonthlyTotals(t *testing.T) {
	store := NewResponseStore()
	store.Add("UK",
		ratingResponse(1, date(2024, 1, 5), 2, 1, 4, 1),
		ratingResponse(2, date(2024, 1, 20), 1, 1, 2, 2),
		ratingResponse(3, date(2024, 3, 3), 1, 1, 5, 1),
		ratingResponse(4, date(2024, 3, 3), 1, 2, 1, 1),
		ratingResponse(5, date(2023, 6, 1), 1, 1, 3, 1),
	)

	period, err := domain.NewCalculationPeriod(domain.CalculationPeriodSpan{StartDate: date(2024, 3, 1), EndDate: date(2024, 3, 31)})
	require.NoError(t, err)

	series, err := store.Totals(context.Background(), ports.TotalsRequest{
		SubsetID: "UK",
		Measure:  ratingMeasure(),
		Average: domain.AverageDescriptor{
			AverageID:              "quarterly",
			TotalisationPeriodUnit: domain.TotalisationMonth,
			MakeUpTo:               domain.MakeUpToQuarterEnd,
			IncludeResponseIDs:     true,
		},
		Period:    period,
		Instances: []domain.EntityInstance{{ID: 1, Name: "Alpha"}},
		Breaks:    []domain.Break{{Name: "gender", Field: genderField, Instances: []int{1, 2}}},
	})
	require.NoError(t, err)
	require.Len(t, series, 1)

	totals := series[0].Totals
	require.Len(t, totals, 3, "a quarter-end average starts at the first month of the quarter")
	assert.Equal(t, date(2024, 1, 31), totals[0].Date)
	assert.Equal(t, date(2024, 2, 29), totals[1].Date)
	assert.Equal(t, date(2024, 3, 31), totals[2].Date)

	jan := totals[0]
	assert.Equal(t, 10.0, jan.WeightedValueTotal)
	assert.Equal(t, 6.0, jan.UnweightedValueTotal)
	assert.Equal(t, uint32(2), jan.UnweightedSampleCount)
	assert.Equal(t, 3.0, jan.WeightedSampleCount)
	assert.Equal(t, []int64{1, 2}, jan.ResponseIDsForDay)
	require.Len(t, jan.ChildResults, 2)
	assert.Equal(t, 8.0, jan.ChildResults[0].WeightedValueTotal)
	assert.Equal(t, 2.0, jan.ChildResults[1].WeightedValueTotal)

	assert.Zero(t, totals[1].UnweightedSampleCount)
	assert.Len(t, totals[1].ChildResults, 2, "empty buckets keep the break shape")
	assert.Equal(t, uint32(1), totals[2].UnweightedSampleCount, "brand 2 answers are not counted for brand 1")
}

func TestResponseStore_MonthlySeriesStart(t *testing.T) {
	tests := []struct {
		name      string
		makeUpTo  domain.MakeUpTo
		periods   int
		start     time.Time
		wantFirst time.Time
		wantLen   int
	}{
		{name: "quarter from its first month", makeUpTo: domain.MakeUpToQuarterEnd, start: date(2024, 1, 1), wantFirst: date(2024, 1, 31), wantLen: 6},
		{name: "quarter from a later quarter start", makeUpTo: domain.MakeUpToQuarterEnd, start: date(2024, 4, 1), wantFirst: date(2024, 4, 30), wantLen: 3},
		{name: "quarter from mid quarter", makeUpTo: domain.MakeUpToQuarterEnd, start: date(2024, 5, 15), wantFirst: date(2024, 4, 30), wantLen: 3},
		{name: "half year", makeUpTo: domain.MakeUpToHalfYearEnd, start: date(2024, 8, 1), wantFirst: date(2024, 7, 31), wantLen: 6},
		{name: "calendar year", makeUpTo: domain.MakeUpToCalendarYearEnd, start: date(2024, 2, 1), wantFirst: date(2024, 1, 31), wantLen: 6},
		{name: "three month rolling", makeUpTo: domain.MakeUpToMonthEnd, periods: 3, start: date(2024, 3, 1), wantFirst: date(2024, 1, 31), wantLen: 6},
		{name: "single month", makeUpTo: domain.MakeUpToMonthEnd, start: date(2024, 3, 1), wantFirst: date(2024, 3, 31), wantLen: 4},
	}

	store := NewResponseStore()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end := date(2024, 6, 30)
			if tt.start.After(end) {
				end = date(2024, 12, 31)
			}
			period, err := domain.NewCalculationPeriod(domain.CalculationPeriodSpan{StartDate: tt.start, EndDate: end})
			require.NoError(t, err)

			series, err := store.Totals(context.Background(), ports.TotalsRequest{
				SubsetID: "UK",
				Measure:  ratingMeasure(),
				Average: domain.AverageDescriptor{
					AverageID:                "avg",
					TotalisationPeriodUnit:   domain.TotalisationMonth,
					MakeUpTo:                 tt.makeUpTo,
					NumberOfPeriodsInAverage: tt.periods,
				},
				Period:    period,
				Instances: []domain.EntityInstance{{ID: 1}},
			})
			require.NoError(t, err)
			require.NotEmpty(t, series[0].Totals)
			assert.Equal(t, tt.wantFirst, series[0].Totals[0].Date)
			assert.Len(t, series[0].Totals, tt.wantLen)
		})
	}
}

func TestResponseStore_FilterAndUnits(t *testing.T) {
	store := NewResponseStore()
	store.Add("UK",
		ratingResponse(1, date(2024, 3, 1), 1, 1, 4, 1),
		ratingResponse(2, date(2024, 3, 2), 1, 1, 2, 2),
	)
	period, err := domain.NewCalculationPeriod(domain.CalculationPeriodSpan{StartDate: date(2024, 3, 1), EndDate: date(2024, 3, 2)})
	require.NoError(t, err)

	req := ports.TotalsRequest{
		SubsetID:  "UK",
		Measure:   ratingMeasure(),
		Period:    period,
		Instances: []domain.EntityInstance{{ID: 1}},
		Filter:    genderFilter(1),
	}

	req.Average = domain.AverageDescriptor{TotalisationPeriodUnit: domain.TotalisationDay, MakeUpTo: domain.MakeUpToDay}
	series, err := store.Totals(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, series[0].Totals, 2)
	assert.Equal(t, 4.0, series[0].Totals[0].WeightedValueTotal)
	assert.Zero(t, series[0].Totals[1].UnweightedSampleCount, "filtered out")

	req.Average = domain.AverageDescriptor{TotalisationPeriodUnit: domain.TotalisationAll, MakeUpTo: domain.MakeUpToDay}
	req.Filter = nil
	series, err = store.Totals(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, series[0].Totals, 1)
	assert.Equal(t, date(2024, 3, 2), series[0].Totals[0].Date)
	assert.Equal(t, uint32(2), series[0].Totals[0].UnweightedSampleCount)

	req.Average = domain.AverageDescriptor{TotalisationPeriodUnit: "week"}
	_, err = store.Totals(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrUnsupportedAverage)
	var queryErr *ports.QueryError
	assert.ErrorAs(t, err, &queryErr)
}

// genderFilter admits responses with the given gender answer.
type genderFilter int

func (g genderFilter) CreateForEntityValues(domain.EntityValueCombination) domain.Predicate {
	return func(r *domain.Response) bool {
		v, ok := r.Answer(genderField, domain.EntityValueCombination{})
		return ok && v == int(g)
	}
}

func (genderFilter) FieldDependenciesAndDataTargets([]domain.DataTarget) ([]domain.Field, []domain.DataTarget) {
	return []domain.Field{genderField}, nil
}

func (genderFilter) ImplicitEntityCombination() []domain.EntityType { return nil }

func TestResponseStore_QueryWeighted(t *testing.T) {
	store := NewResponseStore()
	for i, answers := range []struct {
		weight float64
		region int
		yes    bool
	}{
		{2, 1, true},
		{1, 1, false},
		{1, 2, true},
	} {
		r := domain.NewResponse(int64(i), date(2024, 3, 10), answers.weight)
		r.SetAnswer(regionField, domain.EntityValueCombination{}, answers.region)
		v := 2
		if answers.yes {
			v = 1
		}
		r.SetAnswer(imageryField, domain.MustEntityValueCombination(
			domain.EntityValue{Type: brand, Value: 1}, domain.EntityValue{Type: aspect, Value: 7}), v)
		store.Add("UK", r)
	}

	rows, err := store.QueryWeighted(context.Background(), ports.ProfileQuery{
		SubsetID:       "UK",
		Span:           domain.CalculationPeriodSpan{StartDate: date(2024, 3, 1), EndDate: date(2024, 3, 31)},
		BaseField:      &regionField,
		BaseValues:     []int{1},
		Measures:       []*domain.Measure{imageryMeasure()},
		BrandIDs:       []int{1, 2},
		OtherInstances: map[domain.EntityType][]int{aspect: {7}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ports.ProfileRow{MeasureName: "Imagery", BrandID: 1, OtherInstanceID: 7, WeightedValueTotal: 2, WeightedSampleCount: 3}, rows[0])
	assert.Equal(t, ports.ProfileRow{MeasureName: "Imagery", BrandID: 2, OtherInstanceID: 7, WeightedSampleCount: 3}, rows[1],
		"in-base respondents who did not pick the brand count as no")

	_, err = store.QueryWeighted(context.Background(), ports.ProfileQuery{Measures: []*domain.Measure{ratingMeasure()}})
	assert.ErrorIs(t, err, domain.ErrInvalidMeasure)
}
