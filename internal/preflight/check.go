package preflight

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Aman-CERP/researchsearch/internal/config"
	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
	"github.com/Aman-CERP/researchsearch/internal/finder"
	"github.com/Aman-CERP/researchsearch/internal/host"
	"github.com/Aman-CERP/researchsearch/internal/output"
	"github.com/Aman-CERP/researchsearch/internal/source"
	"github.com/Aman-CERP/researchsearch/internal/store"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check for cfg.
func (c *Checker) RunAll(ctx context.Context, cfg *config.Config) []CheckResult {
	results := []CheckResult{
		c.CheckWritePermissions(cfg.Index.Dir),
		c.CheckDiskSpace(cfg.Index.Dir),
		c.CheckWriterLock(cfg.Index.Dir),
		c.CheckIndex(cfg.Index.Dir, cfg.Index.Backend),
	}
	return append(results, c.CheckSource(ctx, cfg)...)
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "ready_with_warnings" or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	out := output.New(c.output)
	out.Header("researchsearch system check")
	out.Newline()

	for _, r := range results {
		msg := fmt.Sprintf("%s: %s", r.Name, r.Message)
		switch {
		case r.Status == StatusPass:
			out.Success(msg)
		case r.IsCritical():
			out.Error(msg)
		default:
			out.Warning(msg)
		}
		if c.verbose && r.Details != "" {
			out.Status("", r.Details)
		}
	}

	out.Newline()
	out.Statusf("", "Status: %s", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckWritePermissions checks that the index directory can be created and written.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{Name: "index_writable", Required: true}

	if err := os.MkdirAll(dir, 0755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckWriterLock warns when another process is writing the index.
func (c *Checker) CheckWriterLock(dir string) CheckResult {
	result := CheckResult{Name: "writer_lock"}

	lock := store.NewWriterLock(dir)
	if err := lock.TryLock(); err != nil {
		result.Status = StatusWarn
		result.Message = "another process is writing the index"
		result.Details = lock.Path()
		if apperrors.GetCode(err) != apperrors.ErrCodeIndexLocked {
			result.Message = err.Error()
		}
		return result
	}
	_ = lock.Unlock()

	result.Status = StatusPass
	result.Message = "free"
	return result
}

// CheckIndex reports whether an index exists and matches the configured backend.
func (c *Checker) CheckIndex(dir, backend string) CheckResult {
	result := CheckResult{Name: "index"}

	detected := store.DetectBackend(dir)
	switch {
	case detected == "":
		result.Status = StatusWarn
		result.Message = "no index yet; run 'researchsearch index'"
	case string(detected) != backend:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("existing %s index, but index.backend is %s", detected, backend)
		result.Details = store.IndexPath(dir, string(detected))
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s index present", detected)
		result.Details = store.IndexPath(dir, backend)
	}
	return result
}

// CheckSource connects to the source database and reports connectivity,
// schema state and whether the content extension is enabled.
func (c *Checker) CheckSource(ctx context.Context, cfg *config.Config) []CheckResult {
	conn := CheckResult{Name: "source", Required: true}

	db, err := source.Open(ctx, source.Options{Driver: cfg.Source.Driver, DSN: cfg.Source.DSN})
	if err != nil {
		conn.Status = StatusFail
		conn.Message = err.Error()
		return []CheckResult{conn}
	}
	defer db.Close()
	conn.Status = StatusPass
	conn.Message = fmt.Sprintf("%s reachable", cfg.Source.Driver)

	results := []CheckResult{conn, c.checkSchema(ctx, cfg, db)}

	exec := source.NewExecutor(db, cfg.Source.TablePrefix)
	return append(results, c.checkExtension(ctx, cfg, exec))
}

func (c *Checker) checkSchema(ctx context.Context, cfg *config.Config, db *sql.DB) CheckResult {
	result := CheckResult{Name: "schema", Required: true}

	m, err := source.NewMigrator(db, cfg.Source.Driver, cfg.Source.TablePrefix)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	statuses, err := m.Status(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	var pending []string
	for _, s := range statuses {
		if !s.Applied {
			pending = append(pending, fmt.Sprintf("v%d", s.Version))
		}
	}
	if len(pending) > 0 {
		// Sites that manage the table themselves never run migrate.
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d pending migration(s): %s", len(pending), strings.Join(pending, ", "))
		result.Details = "run 'researchsearch migrate' unless the site manages this schema"
		return result
	}

	result.Status = StatusPass
	result.Message = "up to date"
	return result
}

func (c *Checker) checkExtension(ctx context.Context, cfg *config.Config, exec *source.Executor) CheckResult {
	result := CheckResult{Name: "extension"}

	var checker finder.ExtensionChecker
	if cfg.Host.Extensions == host.ModeDatabase {
		reg, err := host.NewDatabaseExtensionRegistry(exec, 0)
		if err != nil {
			result.Status = StatusWarn
			result.Message = err.Error()
			return result
		}
		checker = reg
	} else {
		checker = host.NewStaticExtensionRegistry(cfg.Host.EnabledExtensions)
	}

	enabled, err := checker.IsExtensionEnabled(ctx, cfg.Adapter.Extension)
	switch {
	case err != nil:
		result.Status = StatusWarn
		result.Message = err.Error()
	case !enabled:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s is disabled; items will be fetched but not indexed", cfg.Adapter.Extension)
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s enabled (%s)", cfg.Adapter.Extension, cfg.Host.Extensions)
	}
	return result
}
