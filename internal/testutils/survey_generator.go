// Package testutils provides utilities for testing, including synthetic
// survey data generators. These components are intended for internal use
// within the project's test suites and local tooling and are not part of
// the public API.
package testutils

import (
	"math/rand"
	"time"

	"github.com/ahrav/go-tabulate/internal/domain"
)

// GeneratorConfig controls synthetic survey generation.
type GeneratorConfig struct {
	// Respondents is the number of responses to generate.
	Respondents int

	// Start is the first fieldwork month; responses spread evenly over
	// Months consecutive months from it.
	Start  time.Time
	Months int

	Brands  int
	Aspects int

	// Seed controls randomization. Use time.Now().UnixNano() for
	// non-deterministic generation or a fixed value for reproducible tests.
	Seed int64
}

// DefaultGeneratorConfig covers the first half of 2024 with four brands
// and three image aspects.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Respondents: DefaultRespondents,
		Start:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Months:      6,
		Brands:      4,
		Aspects:     3,
		Seed:        1,
	}
}

// GenerateSurveyDataset creates a synthetic brand tracker.
//
// Every respondent answers region and gender, an awareness question per
// brand, and for brands they are aware of a 1-10 rating, a 0-10
// recommendation score and a yes/no imagery grid over the aspects. Women
// are over-sampled roughly 60/40; quota-cell weights restore an even
// weighted gender split. Brand awareness drifts upward month on month so
// trend and significance calculations have something to find.
func GenerateSurveyDataset(cfg GeneratorConfig) *SurveyDataset {
	rng := rand.New(rand.NewSource(cfg.Seed))
	cfg.Brands = min(max(cfg.Brands, 1), len(BrandNames))
	cfg.Aspects = min(max(cfg.Aspects, 1), len(AspectNames))
	cfg.Months = max(cfg.Months, 1)

	dataset := &SurveyDataset{
		Metadata: DatasetMetadata{
			Name:        "Synthetic Brand Tracker",
			Version:     "1.0.0",
			Description: "A synthetic survey generated for testing weighted result calculations. NOT REAL DATA.",
			Seed:        cfg.Seed,
			Size:        cfg.Respondents,
		},
		Brands:    instances(BrandNames[:cfg.Brands]),
		Aspects:   instances(AspectNames[:cfg.Aspects]),
		Responses: make([]ResponseRecord, 0, cfg.Respondents),
	}

	genderCounts := map[int]int{}
	for i := range cfg.Respondents {
		monthIndex := i % cfg.Months
		date := cfg.Start.AddDate(0, monthIndex, rng.Intn(28))

		gender := 2
		if rng.Float64() < 0.4 {
			gender = 1
		}
		genderCounts[gender]++

		record := ResponseRecord{
			ID:   int64(i + 1),
			Date: date,
			Answers: []AnswerRecord{
				{Field: FieldRegion, Value: rng.Intn(RegionCount) + 1},
				{Field: FieldGender, Value: gender},
			},
		}

		for _, b := range dataset.Brands {
			brand := domain.EntityValue{Type: EntityBrand, Value: b.ID}
			pAware := min(0.9, 0.25+0.1*float64(b.ID)+0.02*float64(monthIndex))
			if rng.Float64() >= pAware {
				record.Answers = append(record.Answers, AnswerRecord{Field: FieldAware, Entities: []domain.EntityValue{brand}, Value: AnswerNo})
				continue
			}
			record.Answers = append(record.Answers,
				AnswerRecord{Field: FieldAware, Entities: []domain.EntityValue{brand}, Value: AnswerYes},
				AnswerRecord{Field: FieldRating, Entities: []domain.EntityValue{brand}, Value: rng.Intn(RatingMax-RatingMin+1) + RatingMin},
				AnswerRecord{Field: FieldRecommend, Entities: []domain.EntityValue{brand}, Value: rng.Intn(11)},
			)
			for _, a := range dataset.Aspects {
				answer := AnswerNo
				if rng.Float64() < 0.2+0.1*float64(a.ID) {
					answer = AnswerYes
				}
				record.Answers = append(record.Answers, AnswerRecord{
					Field:    FieldImagery,
					Entities: []domain.EntityValue{brand, {Type: EntityAspect, Value: a.ID}},
					Value:    answer,
				})
			}
		}
		dataset.Responses = append(dataset.Responses, record)
	}

	applyQuotaCellWeights(dataset.Responses, genderCounts)
	return dataset
}

// GenerateSurveyDatasetDefault creates a dataset of size respondents with a
// time-based seed.
func GenerateSurveyDatasetDefault(size int) *SurveyDataset {
	cfg := DefaultGeneratorConfig()
	cfg.Respondents = size
	cfg.Seed = time.Now().UnixNano()
	return GenerateSurveyDataset(cfg)
}

// applyQuotaCellWeights gives each gender cell an equal share of the total
// weight.
func applyQuotaCellWeights(responses []ResponseRecord, counts map[int]int) {
	if len(counts) == 0 {
		return
	}
	target := float64(len(responses)) / float64(len(counts))
	for i := range responses {
		for _, a := range responses[i].Answers {
			if a.Field == FieldGender {
				responses[i].Weight = target / float64(counts[a.Value])
				break
			}
		}
	}
}

func instances(names []string) []domain.EntityInstance {
	out := make([]domain.EntityInstance, len(names))
	for i, n := range names {
		out[i] = domain.EntityInstance{ID: i + 1, Name: n}
	}
	return out
}
