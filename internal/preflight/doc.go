// Package preflight checks that a project is ready to index before any
// work starts.
//
// The checks cover the index directory (writable, enough free disk space,
// writer lock free), the source database (reachable, schema migrated) and
// the content extension gate. Required checks that fail make the run
// critical; everything else is reported as a warning.
package preflight
