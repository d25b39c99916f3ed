// Package errors provides structured error handling for researchsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Data source errors (the research projects database)
//   - 3XX: Index errors (the search index sink)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryDataSource indicates failures reading the source database.
	CategoryDataSource Category = "DATA_SOURCE"
	// CategoryIndex indicates failures writing to or reading from the search index.
	CategoryIndex Category = "INDEX"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Data source errors (200-299)
	ErrCodeSourceUnavailable = "ERR_201_SOURCE_UNAVAILABLE"
	ErrCodeSourceQuery       = "ERR_202_SOURCE_QUERY"
	ErrCodeSourceSchema      = "ERR_203_SOURCE_SCHEMA"
	ErrCodeSourceNotFound    = "ERR_204_SOURCE_NOT_FOUND"

	// Index errors (300-399)
	ErrCodeIndexWrite   = "ERR_301_INDEX_WRITE"
	ErrCodeIndexLocked  = "ERR_302_INDEX_LOCKED"
	ErrCodeIndexCorrupt = "ERR_303_INDEX_CORRUPT"
	ErrCodeIndexClosed  = "ERR_304_INDEX_CLOSED"
	ErrCodeIndexSearch  = "ERR_305_INDEX_SEARCH"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "201" from "ERR_201_SOURCE_UNAVAILABLE"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryDataSource
	case '3':
		return CategoryIndex
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexCorrupt, ErrCodeConfigInvalid:
		return SeverityFatal
	case ErrCodeIndexLocked:
		return SeverityWarning
	default:
		return SeverityError
	}
}
