package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur while talking to external
// collaborators.
var (
	// ErrNotFound indicates that a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrQueryFailed indicates that the data store rejected or failed a query.
	ErrQueryFailed = errors.New("query failed")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// RepositoryError represents a failed metadata lookup.
type RepositoryError struct {
	// Kind is the kind of record looked up, e.g. "measure".
	Kind string

	// Key identifies the record.
	Key string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for RepositoryError.
func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository error: kind=%s, key=%s, err=%v", e.Kind, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *RepositoryError) Unwrap() error { return e.Err }

// NewRepositoryError creates a new RepositoryError with the given details.
func NewRepositoryError(kind, key string, err error) *RepositoryError {
	return &RepositoryError{
		Kind: kind,
		Key:  key,
		Err:  err,
	}
}

// QueryError represents a failure from the weighted query layer.
type QueryError struct {
	// Operation is the name of the query that failed.
	Operation string

	// Subject identifies what was queried, e.g. a measure group key.
	Subject string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for QueryError.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: operation=%s, subject=%s, err=%v", e.Operation, e.Subject, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error { return e.Err }

// NewQueryError creates a new QueryError with the given details.
func NewQueryError(operation, subject string, err error) *QueryError {
	return &QueryError{
		Operation: operation,
		Subject:   subject,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
