// Package logging configures the process-wide structured logger.
//
// Records are JSON (log/slog) and go to stderr, a rotating log file, or both.
// File rotation is delegated to lumberjack. Event names are snake_case
// (index_run_started, item_index_failed) with attributes carrying the detail.
package logging
