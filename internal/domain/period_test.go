package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestCalculationPeriod_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spans   []CalculationPeriodSpan
		wantErr bool
	}{
		{name: "no spans", wantErr: true},
		{name: "single day", spans: []CalculationPeriodSpan{{StartDate: day(2024, 1, 1), EndDate: day(2024, 1, 1)}}},
		{name: "ends before start", spans: []CalculationPeriodSpan{{StartDate: day(2024, 2, 1), EndDate: day(2024, 1, 1)}}, wantErr: true},
		{
			name: "ascending spans",
			spans: []CalculationPeriodSpan{
				{StartDate: day(2024, 1, 1), EndDate: day(2024, 1, 31)},
				{StartDate: day(2024, 3, 1), EndDate: day(2024, 3, 31)},
			},
		},
		{
			name: "overlapping spans",
			spans: []CalculationPeriodSpan{
				{StartDate: day(2024, 1, 1), EndDate: day(2024, 1, 31)},
				{StartDate: day(2024, 1, 31), EndDate: day(2024, 2, 28)},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewCalculationPeriod(tt.spans...)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPeriod)
				assert.Empty(t, p.Spans)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.spans[0].StartDate, p.StartDate())
			assert.Equal(t, tt.spans[len(tt.spans)-1].EndDate, p.EndDate())
		})
	}
}

func TestCalculationPeriod_EmptyBounds(t *testing.T) {
	var p CalculationPeriod
	assert.True(t, p.StartDate().IsZero())
	assert.True(t, p.EndDate().IsZero())
}

func TestMakeUpTo_MonthsInWindow(t *testing.T) {
	assert.Equal(t, 3, MakeUpToQuarterEnd.MonthsInWindow())
	assert.Equal(t, 6, MakeUpToHalfYearEnd.MonthsInWindow())
	assert.Equal(t, 12, MakeUpToCalendarYearEnd.MonthsInWindow())
	assert.Equal(t, 0, MakeUpToMonthEnd.MonthsInWindow())
	assert.Equal(t, 0, MakeUpToDay.MonthsInWindow())
}

func TestAverageDescriptor_String(t *testing.T) {
	a := AverageDescriptor{AverageID: "quarterly", TotalisationPeriodUnit: TotalisationMonth, MakeUpTo: MakeUpToQuarterEnd}
	s := a.String()
	assert.Contains(t, s, `"average_id":"quarterly"`)
	assert.Contains(t, s, `"make_up_to":"quarter_end"`)
}
