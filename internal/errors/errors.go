package errors

import (
	"errors"
	"fmt"
)

// AppError is the structured error type for researchsearch.
// It provides rich context for error handling, logging, and user presentation.
type AppError struct {
	// Code is the unique error code (e.g., "ERR_202_SOURCE_QUERY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, DataSource, Index, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with AppError.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AppError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an AppError from an existing error.
// The error's message becomes the AppError message.
func Wrap(code string, err error) *AppError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AppError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// DataSourceError creates an error for a failed query against the source database.
// These are never retried locally; the caller decides whether to abort or skip.
func DataSourceError(message string, cause error) *AppError {
	return New(ErrCodeSourceQuery, message, cause)
}

// IndexError creates an error for a failed write to the search index.
func IndexError(message string, cause error) *AppError {
	return New(ErrCodeIndexWrite, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AppError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AppError {
	return New(ErrCodeInternal, message, cause)
}

// IsDataSource reports whether any error in err's chain is a data source error.
func IsDataSource(err error) bool {
	return GetCategory(err) == CategoryDataSource
}

// IsIndex reports whether any error in err's chain is an index error.
func IsIndex(err error) bool {
	return GetCategory(err) == CategoryIndex
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first AppError in err's chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from the first AppError in err's chain.
func GetCategory(err error) Category {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
