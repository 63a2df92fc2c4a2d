package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	testRegionField  = Field{Name: "region"}
	testPrimaryField = Field{Name: "answer", EntityCombination: []EntityType{testBrand}}
	testSecondField  = Field{Name: "prompted", EntityCombination: []EntityType{testBrand}}
)

func testResponse(answers map[*Field]int) *Response {
	r := NewResponse(1, day(2024, 1, 1), 1)
	evc := MustEntityValueCombination(EntityValue{Type: testBrand, Value: 1})
	for f, v := range answers {
		r.SetAnswer(*f, evc, v)
	}
	return r
}

func TestMeasure_Value(t *testing.T) {
	evc := MustEntityValueCombination(EntityValue{Type: testBrand, Value: 1}, EntityValue{Type: testAspect, Value: 3})
	based := func(m Measure) *Measure {
		m.BaseField = &testRegionField
		m.BaseValues = []int{1}
		m.PrimaryField = &testPrimaryField
		return &m
	}

	tests := []struct {
		name    string
		measure *Measure
		answers map[*Field]int
		want    float64
		wantOK  bool
	}{
		{
			name:    "average uses raw answer",
			measure: based(Measure{CalculationType: CalculationAverage}),
			answers: map[*Field]int{&testRegionField: 1, &testPrimaryField: 7},
			want:    7, wantOK: true,
		},
		{
			name:    "average unanswered",
			measure: based(Measure{CalculationType: CalculationAverage}),
			answers: map[*Field]int{&testRegionField: 1},
		},
		{
			name:    "out of base",
			measure: based(Measure{CalculationType: CalculationAverage}),
			answers: map[*Field]int{&testRegionField: 2, &testPrimaryField: 7},
		},
		{
			name:    "base field unanswered",
			measure: based(Measure{CalculationType: CalculationAverage}),
			answers: map[*Field]int{&testPrimaryField: 7},
		},
		{
			name:    "yes",
			measure: based(Measure{CalculationType: CalculationYesNo, TrueValues: []int{1, 2}}),
			answers: map[*Field]int{&testRegionField: 1, &testPrimaryField: 2},
			want:    1, wantOK: true,
		},
		{
			name:    "no",
			measure: based(Measure{CalculationType: CalculationYesNo, TrueValues: []int{1}}),
			answers: map[*Field]int{&testRegionField: 1, &testPrimaryField: 4},
			want:    0, wantOK: true,
		},
		{
			name:    "unanswered in base counts as no",
			measure: based(Measure{CalculationType: CalculationYesNo, TrueValues: []int{1}}),
			answers: map[*Field]int{&testRegionField: 1},
			want:    0, wantOK: true,
		},
		{
			name: "or falls back to secondary field",
			measure: based(Measure{
				CalculationType: CalculationYesNo, TrueValues: []int{1},
				SecondaryField: &testSecondField, FieldOperation: FieldOperationOr,
			}),
			answers: map[*Field]int{&testRegionField: 1, &testPrimaryField: 2, &testSecondField: 1},
			want:    1, wantOK: true,
		},
		{
			name: "secondary ignored without or",
			measure: based(Measure{
				CalculationType: CalculationYesNo, TrueValues: []int{1},
				SecondaryField: &testSecondField, FieldOperation: FieldOperationNone,
			}),
			answers: map[*Field]int{&testRegionField: 1, &testPrimaryField: 2, &testSecondField: 1},
			want:    0, wantOK: true,
		},
		{
			name:    "nps promoter",
			measure: based(Measure{CalculationType: CalculationNetPromoterScore}),
			answers: map[*Field]int{&testRegionField: 1, &testPrimaryField: 9},
			want:    1, wantOK: true,
		},
		{
			name:    "nps passive",
			measure: based(Measure{CalculationType: CalculationNetPromoterScore}),
			answers: map[*Field]int{&testRegionField: 1, &testPrimaryField: 8},
			want:    0, wantOK: true,
		},
		{
			name:    "nps detractor",
			measure: based(Measure{CalculationType: CalculationNetPromoterScore}),
			answers: map[*Field]int{&testRegionField: 1, &testPrimaryField: 6},
			want:    -1, wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.measure.Value(testResponse(tt.answers), evc)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMeasure_InBaseWithoutBaseField(t *testing.T) {
	m := &Measure{PrimaryField: &testPrimaryField}
	assert.True(t, m.InBase(testResponse(nil), EntityValueCombination{}))

	anyValue := &Measure{BaseField: &testRegionField}
	assert.True(t, anyValue.InBase(testResponse(map[*Field]int{&testRegionField: 5}), EntityValueCombination{}),
		"empty base values accept any answer")
}

func TestMeasure_FieldDependencies(t *testing.T) {
	m := &Measure{
		BaseField:      &testRegionField,
		PrimaryField:   &testPrimaryField,
		SecondaryField: &Field{Name: "region"},
	}
	assert.Equal(t, []Field{testRegionField, testPrimaryField}, m.FieldDependencies())
}

func TestMeasure_NormalisationRanges(t *testing.T) {
	pct := &Range{Min: 0, Max: 100}
	five := &Range{Min: 1, Max: 5}

	_, _, ok := (&Measure{PreNormalisation: five}).NormalisationRanges()
	assert.False(t, ok, "both ranges are needed")

	_, _, ok = (&Measure{PreNormalisation: pct, PostNormalisation: &Range{Min: 0, Max: 100}}).NormalisationRanges()
	assert.False(t, ok, "identical ranges are a no-op")

	from, to, ok := (&Measure{PreNormalisation: five, PostNormalisation: pct}).NormalisationRanges()
	assert.True(t, ok)
	assert.Equal(t, *five, from)
	assert.Equal(t, *pct, to)

	assert.True(t, five.Contains(1))
	assert.True(t, five.Contains(5))
	assert.False(t, five.Contains(5.01))
}
