package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("connection refused")

	// When: wrapping with AppError
	appErr := New(ErrCodeSourceUnavailable, "cannot reach research database", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, appErr)
	assert.Equal(t, originalErr, errors.Unwrap(appErr))
	assert.True(t, errors.Is(appErr, originalErr))
}

func TestAppError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "source error",
			code:     ErrCodeSourceQuery,
			message:  "count query failed",
			expected: "[ERR_202_SOURCE_QUERY] count query failed",
		},
		{
			name:     "index error",
			code:     ErrCodeIndexWrite,
			message:  "failed to index item 7",
			expected: "[ERR_301_INDEX_WRITE] failed to index item 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestAppError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with the same code but different messages
	a := New(ErrCodeSourceSchema, "missing column id", nil)
	b := New(ErrCodeSourceSchema, "other", nil)
	c := New(ErrCodeSourceQuery, "other", nil)

	// Then: errors.Is matches by code only
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeSourceUnavailable, CategoryDataSource},
		{ErrCodeSourceNotFound, CategoryDataSource},
		{ErrCodeIndexLocked, CategoryIndex},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{"BAD", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, categoryFromCode(tt.code))
		})
	}
}

func TestIsDataSource_And_IsIndex_ThroughWrapping(t *testing.T) {
	// Given: coded errors wrapped by fmt.Errorf
	src := fmt.Errorf("run aborted: %w", DataSourceError("count failed", nil))
	idx := fmt.Errorf("run aborted: %w", IndexError("write failed", nil))

	// Then: classification follows the chain
	assert.True(t, IsDataSource(src))
	assert.False(t, IsIndex(src))
	assert.True(t, IsIndex(idx))
	assert.False(t, IsDataSource(idx))
	assert.False(t, IsDataSource(errors.New("plain")))
	assert.False(t, IsIndex(nil))
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestSeverity(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeIndexCorrupt, "corrupt", nil)))
	assert.False(t, IsFatal(New(ErrCodeSourceQuery, "query", nil)))
	assert.Equal(t, SeverityWarning, New(ErrCodeIndexLocked, "locked", nil).Severity)
}

func TestWithDetail_And_GetCode(t *testing.T) {
	err := DataSourceError("fetch failed", nil).WithDetail("offset", "20")

	assert.Equal(t, "20", err.Details["offset"])
	assert.Equal(t, ErrCodeSourceQuery, GetCode(fmt.Errorf("x: %w", err)))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}
