package domain

import "time"

// Response is a single respondent's record: the answers they gave, keyed
// by field and the entity values the field is asked about.
type Response struct {
	// ID uniquely identifies the response within a survey.
	ID int64 `json:"id"`

	// Date is the date the response was collected.
	Date time.Time `json:"date"`

	// Weight is the respondent's weighting factor.
	Weight float64 `json:"weight"`

	answers map[answerKey]int
}

type answerKey struct {
	field    string
	entities string
}

// NewResponse creates an empty response record.
func NewResponse(id int64, date time.Time, weight float64) *Response {
	return &Response{ID: id, Date: date, Weight: weight, answers: make(map[answerKey]int)}
}

// SetAnswer records the answer to field for the given entity values.
// Only values for the field's own entity types are used as the key.
func (r *Response) SetAnswer(field Field, entities EntityValueCombination, value int) {
	if r.answers == nil {
		r.answers = make(map[answerKey]int)
	}
	r.answers[answerKey{field: field.Name, entities: entities.Restrict(field.EntityCombination).Key()}] = value
}

// Answer returns the stored answer to field at the given entity values.
// Extra entity values not used by the field are ignored.
func (r *Response) Answer(field Field, entities EntityValueCombination) (int, bool) {
	if r == nil || r.answers == nil {
		return 0, false
	}
	v, ok := r.answers[answerKey{field: field.Name, entities: entities.Restrict(field.EntityCombination).Key()}]
	return v, ok
}

// Predicate decides whether a response is included.
type Predicate func(*Response) bool
