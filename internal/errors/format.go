package errors

import (
	"errors"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Plain errors are presented as internal errors.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var ae *AppError
	if !errors.As(err, &ae) {
		ae = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", ae.Message))
	if ae.Cause != nil && ae.Cause.Error() != ae.Message {
		sb.WriteString(fmt.Sprintf("  Cause: %s\n", ae.Cause.Error()))
	}
	if ae.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ae.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ae.Code))

	return sb.String()
}

// LogAttrs returns key-value pairs suitable for slog.Logger.Error(msg, args...).
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	var ae *AppError
	if !errors.As(err, &ae) {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error", err.Error(),
		"error_code", ae.Code,
		"category", string(ae.Category),
		"severity", string(ae.Severity),
	}
	if ae.Cause != nil {
		attrs = append(attrs, "cause", ae.Cause.Error())
	}
	for k, v := range ae.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
