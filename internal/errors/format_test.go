package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatForCLI_AppError(t *testing.T) {
	// Given: a data source error with suggestion
	err := New(ErrCodeSourceUnavailable, "cannot open research database", errors.New("dial tcp: refused")).
		WithSuggestion("Check source.dsn in .researchsearch.yaml")

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: message, cause, hint and code are present
	assert.Contains(t, result, "Error: cannot open research database")
	assert.Contains(t, result, "Cause: dial tcp: refused")
	assert.Contains(t, result, "Hint: Check source.dsn")
	assert.Contains(t, result, "Code: ERR_201_SOURCE_UNAVAILABLE")
}

func TestFormatForCLI_StandardError(t *testing.T) {
	// Given: a standard Go error
	err := errors.New("something went wrong")

	// When: formatting for CLI
	result := FormatForCLI(err)

	// Then: it is presented as internal, without a duplicated cause
	assert.Contains(t, result, "something went wrong")
	assert.Contains(t, result, ErrCodeInternal)
	assert.NotContains(t, result, "Cause:")
}

func TestFormatForCLI_Nil(t *testing.T) {
	assert.Empty(t, FormatForCLI(nil))
}

func TestLogAttrs(t *testing.T) {
	err := IndexError("write failed", errors.New("disk full")).WithDetail("item", "7")

	attrs := LogAttrs(err)

	assert.Contains(t, attrs, "error_code")
	assert.Contains(t, attrs, ErrCodeIndexWrite)
	assert.Contains(t, attrs, "disk full")
	assert.Contains(t, attrs, "detail_item")
	assert.Equal(t, []any{"error", "plain"}, LogAttrs(errors.New("plain")))
	assert.Nil(t, LogAttrs(nil))
}
