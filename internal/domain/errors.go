package domain

import (
	"errors"
	"fmt"
)

// Configuration and input errors. All of them are fatal: a calculation that
// hits one stops immediately and is never retried.
var (
	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnsupportedCalculationType indicates a measure whose calculation type
	// has no formula.
	ErrUnsupportedCalculationType = errors.New("unsupported calculation type")

	// ErrUnsupportedAverage indicates a totalisation unit and make-up-to pair
	// with no period aggregator.
	ErrUnsupportedAverage = errors.New("unsupported totalisation period unit and make up to combination")

	// ErrInvalidRangeFilter indicates a range filter without exactly two bounds.
	ErrInvalidRangeFilter = errors.New("range filter requires exactly two primary values")

	// ErrInvalidMeasure indicates a measure unsuitable for the requested calculation.
	ErrInvalidMeasure = errors.New("invalid measure")

	// ErrVarCodeCollision indicates two grouped measures share a varcode.
	ErrVarCodeCollision = errors.New("varcode collision")

	// ErrMultipleSpans indicates a period with more than one span where only
	// a single span is supported.
	ErrMultipleSpans = errors.New("calculation period must contain exactly one span")

	// ErrInvalidPeriod indicates a malformed calculation period.
	ErrInvalidPeriod = errors.New("invalid calculation period")

	// ErrInvalidEntityCombination indicates an entity combination with a
	// repeated entity type.
	ErrInvalidEntityCombination = errors.New("invalid entity value combination")

	// ErrTreeShapeMismatch indicates two result trees with different break shapes.
	ErrTreeShapeMismatch = errors.New("result trees have different shapes")
)

// ConfigurationError is a fatal configuration error carrying enough context
// to diagnose it without re-running the calculation.
type ConfigurationError struct {
	// Subject names what was being configured, e.g. a measure name.
	Subject string

	// Context is the serialised configuration that was rejected.
	Context string

	// Err is the underlying sentinel error.
	Err error
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("configuration error: subject=%s, err=%v", e.Subject, e.Err)
	}
	return fmt.Sprintf("configuration error: subject=%s, err=%v, config=%s", e.Subject, e.Err, e.Context)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError creates a new ConfigurationError with the given details.
func NewConfigurationError(subject, context string, err error) *ConfigurationError {
	return &ConfigurationError{
		Subject: subject,
		Context: context,
		Err:     err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match validation failures with ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
