package testutils

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/ahrav/go-tabulate/internal/domain"
)

// SurveyDataset is a self-contained set of synthetic survey responses with
// the entity instances they refer to.
type SurveyDataset struct {
	// Metadata provides information about the dataset itself.
	Metadata DatasetMetadata `json:"metadata"`

	Brands  []domain.EntityInstance `json:"brands" validate:"min=1,dive"`
	Aspects []domain.EntityInstance `json:"aspects" validate:"min=1,dive"`

	// Responses holds one record per respondent.
	Responses []ResponseRecord `json:"responses" validate:"dive"`
}

// DatasetMetadata contains information about how a dataset was produced.
type DatasetMetadata struct {
	// Name identifies the dataset.
	Name string `json:"name" validate:"required"`

	// Version tracks dataset revisions.
	Version string `json:"version" validate:"required"`

	// Description provides details about the dataset contents.
	Description string `json:"description"`

	// Seed reproduces the dataset with GenerateSurveyDataset.
	Seed int64 `json:"seed"`

	// Size indicates the total number of respondents.
	Size int `json:"respondent_count" validate:"gt=0"`
}

// ResponseRecord is the serialisable form of a domain.Response.
type ResponseRecord struct {
	ID      int64          `json:"id" validate:"gt=0"`
	Date    time.Time      `json:"date" validate:"required"`
	Weight  float64        `json:"weight" validate:"gt=0"`
	Answers []AnswerRecord `json:"answers" validate:"dive"`
}

// AnswerRecord is one stored answer. Entities lists the values the field
// is keyed by, in the field's entity order.
type AnswerRecord struct {
	Field    string               `json:"field" validate:"required"`
	Entities []domain.EntityValue `json:"entities,omitempty"`
	Value    int                  `json:"value"`
}

// Response converts the record into a domain response.
func (r ResponseRecord) Response() (*domain.Response, error) {
	resp := domain.NewResponse(r.ID, r.Date, r.Weight)
	for _, a := range r.Answers {
		evc, err := domain.NewEntityValueCombination(a.Entities...)
		if err != nil {
			return nil, fmt.Errorf("response %d field %s: %w", r.ID, a.Field, err)
		}
		resp.SetAnswer(domain.Field{Name: a.Field, EntityCombination: evc.Types()}, evc, a.Value)
	}
	return resp, nil
}

// DomainResponses converts every record.
func (d *SurveyDataset) DomainResponses() ([]*domain.Response, error) {
	out := make([]*domain.Response, len(d.Responses))
	for i, r := range d.Responses {
		resp, err := r.Response()
		if err != nil {
			return nil, err
		}
		out[i] = resp
	}
	return out, nil
}

// LoadSurveyDataset loads a dataset from a JSON file and validates it.
func LoadSurveyDataset(path string) (*SurveyDataset, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	var dataset SurveyDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}

	if err := ValidateSurveyDataset(&dataset); err != nil {
		return nil, fmt.Errorf("dataset validation failed: %w", err)
	}

	return &dataset, nil
}

// ValidateSurveyDataset checks struct constraints, the minimum size,
// unique respondent ids and that the metadata size matches.
func ValidateSurveyDataset(dataset *SurveyDataset) error {
	if dataset == nil {
		return fmt.Errorf("dataset is nil")
	}

	if err := NewTestValidator().Struct(dataset); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}

	if len(dataset.Responses) < MinimumRespondents {
		return fmt.Errorf("dataset must contain at least %d respondents, found %d",
			MinimumRespondents, len(dataset.Responses))
	}

	seenIDs := make(map[int64]bool, len(dataset.Responses))
	for _, r := range dataset.Responses {
		if seenIDs[r.ID] {
			return fmt.Errorf("duplicate response ID: %d", r.ID)
		}
		seenIDs[r.ID] = true
	}

	if dataset.Metadata.Size != len(dataset.Responses) {
		return fmt.Errorf("metadata size (%d) doesn't match actual respondent count (%d)",
			dataset.Metadata.Size, len(dataset.Responses))
	}

	return nil
}

// DatasetStatistics provides summary statistics about a survey dataset.
type DatasetStatistics struct {
	TotalRespondents int

	// ByMonth counts respondents per "2006-01" month.
	ByMonth map[string]int

	TotalWeight float64
	MinWeight   float64
	MaxWeight   float64

	// WeightedGenderShare is each gender code's share of total weight.
	WeightedGenderShare map[int]float64

	// Awareness is each brand's weighted share of aware respondents.
	Awareness map[int]float64
}

// ComputeDatasetStatistics analyzes a dataset and returns summary statistics.
func ComputeDatasetStatistics(dataset *SurveyDataset) *DatasetStatistics {
	stats := &DatasetStatistics{
		TotalRespondents:    len(dataset.Responses),
		ByMonth:             make(map[string]int),
		MinWeight:           math.Inf(1),
		WeightedGenderShare: make(map[int]float64),
		Awareness:           make(map[int]float64),
	}

	for _, r := range dataset.Responses {
		stats.ByMonth[r.Date.Format("2006-01")]++
		stats.TotalWeight += r.Weight
		stats.MinWeight = min(stats.MinWeight, r.Weight)
		stats.MaxWeight = max(stats.MaxWeight, r.Weight)

		for _, a := range r.Answers {
			switch {
			case a.Field == FieldGender:
				stats.WeightedGenderShare[a.Value] += r.Weight
			case a.Field == FieldAware && a.Value == AnswerYes && len(a.Entities) == 1:
				stats.Awareness[a.Entities[0].Value] += r.Weight
			}
		}
	}

	if stats.TotalWeight > 0 {
		for k := range stats.WeightedGenderShare {
			stats.WeightedGenderShare[k] /= stats.TotalWeight
		}
		for k := range stats.Awareness {
			stats.Awareness[k] /= stats.TotalWeight
		}
	}
	if stats.TotalRespondents == 0 {
		stats.MinWeight = 0
	}

	return stats
}

// Months returns the distinct response months in ascending order.
func (s *DatasetStatistics) Months() []string {
	months := make([]string, 0, len(s.ByMonth))
	for m := range s.ByMonth {
		months = append(months, m)
	}
	slices.Sort(months)
	return months
}

// SaveSurveyDataset writes a dataset to a JSON file.
func SaveSurveyDataset(dataset *SurveyDataset, path string) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset file: %w", err)
	}

	return nil
}
