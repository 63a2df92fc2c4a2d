package domain

import (
	"fmt"
	"time"
)

// CalculationPeriodSpan is an inclusive date range results are requested for.
type CalculationPeriodSpan struct {
	StartDate time.Time `yaml:"start_date" json:"start_date"`
	EndDate   time.Time `yaml:"end_date" json:"end_date"`
}

// CalculationPeriod is an ordered, non-empty sequence of spans.
type CalculationPeriod struct {
	Spans []CalculationPeriodSpan `yaml:"spans" json:"spans"`
}

// NewCalculationPeriod builds and validates a period from spans.
func NewCalculationPeriod(spans ...CalculationPeriodSpan) (CalculationPeriod, error) {
	p := CalculationPeriod{Spans: spans}
	if err := p.Validate(); err != nil {
		return CalculationPeriod{}, err
	}
	return p, nil
}

// Validate checks the period has at least one span, every span ends on or
// after its start, and spans ascend without overlapping.
func (p CalculationPeriod) Validate() error {
	if len(p.Spans) == 0 {
		return fmt.Errorf("%w: calculation period has no spans", ErrInvalidPeriod)
	}
	for i, s := range p.Spans {
		if s.EndDate.Before(s.StartDate) {
			return fmt.Errorf("%w: span %d ends %s before it starts %s",
				ErrInvalidPeriod, i, s.EndDate.Format(time.DateOnly), s.StartDate.Format(time.DateOnly))
		}
		if i > 0 && !s.StartDate.After(p.Spans[i-1].EndDate) {
			return fmt.Errorf("%w: span %d starts %s before previous span ends %s",
				ErrInvalidPeriod, i, s.StartDate.Format(time.DateOnly), p.Spans[i-1].EndDate.Format(time.DateOnly))
		}
	}
	return nil
}

// StartDate returns the start of the first span.
func (p CalculationPeriod) StartDate() time.Time {
	if len(p.Spans) == 0 {
		return time.Time{}
	}
	return p.Spans[0].StartDate
}

// EndDate returns the end of the last span.
func (p CalculationPeriod) EndDate() time.Time {
	if len(p.Spans) == 0 {
		return time.Time{}
	}
	return p.Spans[len(p.Spans)-1].EndDate
}

// Subset is a configured slice of the survey population, such as a country.
type Subset struct {
	ID          string `yaml:"id" json:"id" validate:"required"`
	DisplayName string `yaml:"display_name" json:"display_name"`

	// StartDate is the first date results are reported for the subset.
	StartDate *time.Time `yaml:"start_date,omitempty" json:"start_date,omitempty"`
}
