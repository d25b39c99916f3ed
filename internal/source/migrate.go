package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
)

// MigrationStatus is the applied state of one schema migration.
type MigrationStatus struct {
	Version int64
	Applied bool
}

type migrationDDL struct {
	sqlite string
	mysql  string
}

// Schema versions. Table names carry the "#__" placeholder.
var schema = []struct {
	version int64
	up      []migrationDDL
	down    []string
}{
	{
		version: 1,
		up: []migrationDDL{{
			sqlite: `CREATE TABLE IF NOT EXISTS #__researchprojects (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL DEFAULT '',
				alias TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				created DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				state INTEGER NOT NULL DEFAULT 0,
				status_id INTEGER NOT NULL DEFAULT 0,
				included INTEGER NOT NULL DEFAULT 0,
				language TEXT NOT NULL DEFAULT '*'
			)`,
			mysql: `CREATE TABLE IF NOT EXISTS #__researchprojects (
				id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
				title VARCHAR(255) NOT NULL DEFAULT '',
				alias VARCHAR(400) NOT NULL DEFAULT '',
				content MEDIUMTEXT NOT NULL,
				created DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				state TINYINT NOT NULL DEFAULT 0,
				status_id INT NOT NULL DEFAULT 0,
				included TINYINT NOT NULL DEFAULT 0,
				language CHAR(7) NOT NULL DEFAULT '*'
			) DEFAULT CHARSET=utf8mb4`,
		}, {
			sqlite: `CREATE INDEX IF NOT EXISTS idx_#__researchprojects_created ON #__researchprojects (created)`,
			mysql:  `CREATE INDEX idx_#__researchprojects_created ON #__researchprojects (created)`,
		}},
		down: []string{`DROP TABLE IF EXISTS #__researchprojects`},
	},
	{
		version: 2,
		up: []migrationDDL{{
			sqlite: `CREATE TABLE IF NOT EXISTS #__extensions (
				extension_id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT 'component',
				element TEXT NOT NULL UNIQUE,
				enabled INTEGER NOT NULL DEFAULT 0
			)`,
			mysql: `CREATE TABLE IF NOT EXISTS #__extensions (
				extension_id INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(100) NOT NULL DEFAULT '',
				type VARCHAR(20) NOT NULL DEFAULT 'component',
				element VARCHAR(100) NOT NULL,
				enabled TINYINT NOT NULL DEFAULT 0,
				UNIQUE KEY idx_element (element)
			) DEFAULT CHARSET=utf8mb4`,
		}},
		down: []string{`DROP TABLE IF EXISTS #__extensions`},
	},
}

// Migrator applies the source schema with goose.
type Migrator struct {
	provider *goose.Provider
}

// NewMigrator creates a migrator for db. driver selects the SQL dialect and
// prefix replaces "#__" in table names.
func NewMigrator(db *sql.DB, driver, prefix string) (*Migrator, error) {
	dialect := goose.DialectSQLite3
	isMySQL := false
	switch {
	case IsSQLite(driver):
	case driver == DriverMySQL:
		dialect = goose.DialectMySQL
		isMySQL = true
	default:
		return nil, fmt.Errorf("unsupported driver for migrations: %s", driver)
	}

	migrations := make([]*goose.Migration, 0, len(schema))
	for _, m := range schema {
		up := make([]string, 0, len(m.up))
		for _, ddl := range m.up {
			stmt := ddl.sqlite
			if isMySQL {
				stmt = ddl.mysql
			}
			up = append(up, ReplacePrefix(stmt, prefix))
		}
		down := make([]string, 0, len(m.down))
		for _, stmt := range m.down {
			down = append(down, ReplacePrefix(stmt, prefix))
		}
		migrations = append(migrations, goose.NewGoMigration(m.version,
			&goose.GoFunc{RunTx: execAll(up)},
			&goose.GoFunc{RunTx: execAll(down)},
		))
	}

	provider, err := goose.NewProvider(dialect, db, nil, goose.WithGoMigrations(migrations...))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// Up applies all pending migrations and returns the versions applied.
func (m *Migrator) Up(ctx context.Context) ([]int64, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSourceSchema, "schema migration failed", err)
	}

	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
		slog.Info("migration_applied",
			slog.Int64("version", r.Source.Version),
			slog.Duration("duration", r.Duration))
	}
	return applied, nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if _, err := m.provider.Down(ctx); err != nil {
		return apperrors.New(apperrors.ErrCodeSourceSchema, "schema rollback failed", err)
	}
	return nil
}

// Status reports every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, apperrors.DataSourceError("failed to read migration status", err)
	}

	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version: s.Source.Version,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}

func execAll(stmts []string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", firstLine(stmt), err)
			}
		}
		return nil
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
