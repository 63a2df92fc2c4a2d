package testutils

import "github.com/ahrav/go-tabulate/internal/domain"

func brandField(name string) *domain.Field {
	return &domain.Field{Name: name, EntityCombination: []domain.EntityType{EntityBrand}}
}

// SurveyMeasures returns measures over the fields GenerateSurveyDataset
// writes: awareness, rating and NPS per brand, and brand imagery.
// Rating and NPS are based on aware respondents.
func SurveyMeasures() []*domain.Measure {
	awareBase := brandField(FieldAware)
	tenPoint := &domain.Range{Min: RatingMin, Max: RatingMax}
	percent := &domain.Range{Min: 0, Max: 100}
	hundred := 100.0

	return []*domain.Measure{
		{
			Name:              "Awareness",
			VarCode:           "aware",
			CalculationType:   domain.CalculationYesNo,
			EntityCombination: []domain.EntityType{EntityBrand},
			PrimaryField:      brandField(FieldAware),
			TrueValues:        []int{AnswerYes},
			ScaleFactor:       &hundred,
		},
		{
			Name:              "Rating",
			VarCode:           "rating",
			CalculationType:   domain.CalculationAverage,
			EntityCombination: []domain.EntityType{EntityBrand},
			BaseField:         awareBase,
			BaseValues:        []int{AnswerYes},
			PrimaryField:      brandField(FieldRating),
			PreNormalisation:  tenPoint,
			PostNormalisation: percent,
		},
		{
			Name:              "NPS",
			VarCode:           "nps",
			CalculationType:   domain.CalculationNetPromoterScore,
			EntityCombination: []domain.EntityType{EntityBrand},
			BaseField:         awareBase,
			BaseValues:        []int{AnswerYes},
			PrimaryField:      brandField(FieldRecommend),
		},
		{
			Name:              "Imagery",
			VarCode:           "img",
			CalculationType:   domain.CalculationYesNo,
			EntityCombination: []domain.EntityType{EntityBrand, EntityAspect},
			BaseField:         awareBase,
			BaseValues:        []int{AnswerYes},
			PrimaryField:      &domain.Field{Name: FieldImagery, EntityCombination: []domain.EntityType{EntityBrand, EntityAspect}},
			TrueValues:        []int{AnswerYes},
		},
	}
}
