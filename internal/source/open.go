// Package source owns the connection to the research projects database and
// implements finder.QueryExecutor on top of it.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // Pure Go SQLite driver, registered as "sqlite"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
)

// Supported database/sql driver names.
const (
	DriverSQLite  = "sqlite"
	DriverSQLite3 = "sqlite3"
	DriverMySQL   = "mysql"
)

// Options configures Open.
type Options struct {
	Driver string
	DSN    string
}

// IsSQLite reports whether driver is one of the SQLite drivers.
func IsSQLite(driver string) bool {
	return driver == DriverSQLite || driver == DriverSQLite3
}

// Open opens and pings the source database.
// The returned handle is owned by the caller.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	dsn := opts.DSN

	switch opts.Driver {
	case DriverSQLite, DriverSQLite3:
	case DriverMySQL:
		mcfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "invalid mysql dsn", err).
				WithSuggestion("Use the form user:pass@tcp(host:3306)/dbname")
		}
		mcfg.ParseTime = true
		if mcfg.Params == nil {
			mcfg.Params = map[string]string{}
		}
		if _, ok := mcfg.Params["charset"]; !ok {
			mcfg.Params["charset"] = "utf8mb4"
		}
		dsn = mcfg.FormatDSN()
	default:
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unsupported source driver %q", opts.Driver), nil)
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSourceUnavailable, "failed to open source database", err)
	}

	if IsSQLite(opts.Driver) {
		// One connection keeps in-memory databases alive and serializes writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, apperrors.New(apperrors.ErrCodeSourceUnavailable, "failed to configure source database", err)
		}
	} else {
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.New(apperrors.ErrCodeSourceUnavailable, "cannot reach source database", err).
			WithDetail("driver", opts.Driver).
			WithSuggestion("Check source.dsn in .researchsearch.yaml")
	}

	slog.Debug("source_opened",
		slog.String("driver", opts.Driver),
		slog.String("dsn", redactDSN(opts.Driver, opts.DSN)))

	return db, nil
}

// SQLitePath returns the database file named by a SQLite DSN. It strips the
// file: scheme, any URI authority and the query string, and unescapes the
// path. ok is false for in-memory databases.
func SQLitePath(dsn string) (path string, ok bool) {
	path = strings.TrimSpace(dsn)
	isURI := strings.HasPrefix(path, "file:")
	if isURI {
		path = strings.TrimPrefix(path, "file:")
	}

	var query string
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path, query = path[:i], path[i+1:]
	}
	if isURI {
		if strings.HasPrefix(path, "//") {
			// file://host/path; only an empty or local authority is meaningful.
			rest := path[2:]
			if j := strings.IndexByte(rest, '/'); j >= 0 {
				path = rest[j:]
			} else {
				path = ""
			}
		}
		if unescaped, err := url.PathUnescape(path); err == nil {
			path = unescaped
		}
	}

	if path == "" || path == ":memory:" {
		return "", false
	}
	if values, err := url.ParseQuery(query); err == nil && values.Get("mode") == "memory" {
		return "", false
	}
	return path, true
}

// redactDSN hides the password of a MySQL DSN.
func redactDSN(driver, dsn string) string {
	if driver != DriverMySQL {
		return dsn
	}
	mcfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "<invalid>"
	}
	if mcfg.Passwd != "" {
		mcfg.Passwd = "xxxxx"
	}
	return strings.TrimSpace(mcfg.FormatDSN())
}
