package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
	"github.com/Aman-CERP/researchsearch/internal/finder"
)

// TablePrefixPlaceholder is replaced by the configured table prefix.
const TablePrefixPlaceholder = "#__"

// Compile-time interface check.
var _ finder.QueryExecutor = (*Executor)(nil)

// Executor runs squirrel queries against the source database.
type Executor struct {
	db     *sql.DB
	prefix string
	logger *slog.Logger
}

// NewExecutor creates an executor that rewrites "#__" to prefix.
// The executor never closes db.
func NewExecutor(db *sql.DB, prefix string) *Executor {
	return &Executor{db: db, prefix: prefix, logger: slog.Default()}
}

// Prefix returns the configured table prefix.
func (e *Executor) Prefix() string {
	return e.prefix
}

// Count returns the number of rows query produces.
func (e *Executor) Count(ctx context.Context, query sq.SelectBuilder) (int, error) {
	countQuery := sq.Select("COUNT(*)").FromSelect(query.RemoveLimit().RemoveOffset(), "c")

	stmt, args, err := e.render(countQuery)
	if err != nil {
		return 0, err
	}

	var n int
	if err := e.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, classify("count query failed", err).WithDetail("sql", stmt)
	}
	return n, nil
}

// FetchPage returns rows [offset, offset+limit) of query.
func (e *Executor) FetchPage(ctx context.Context, query sq.SelectBuilder, offset, limit int) ([]finder.Row, error) {
	if offset < 0 || limit <= 0 {
		return nil, apperrors.ValidationError(fmt.Sprintf("invalid page offset=%d limit=%d", offset, limit), nil)
	}
	return e.Query(ctx, query.Offset(uint64(offset)).Limit(uint64(limit)))
}

// Query runs query and returns every row.
func (e *Executor) Query(ctx context.Context, query sq.SelectBuilder) ([]finder.Row, error) {
	stmt, args, err := e.render(query)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("source_query", slog.String("sql", stmt), slog.Int("args", len(args)))

	rows, err := e.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify("query failed", err).WithDetail("sql", stmt)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, classify("failed to read rows", err).WithDetail("sql", stmt)
	}
	return result, nil
}

// render builds SQL and applies the table prefix.
func (e *Executor) render(query sq.Sqlizer) (string, []any, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return "", nil, apperrors.New(apperrors.ErrCodeSourceQuery, "failed to build query", err)
	}
	return ReplacePrefix(stmt, e.prefix), args, nil
}

// ReplacePrefix replaces "#__" with prefix outside quoted strings and
// quoted identifiers.
func ReplacePrefix(stmt, prefix string) string {
	if !strings.Contains(stmt, TablePrefixPlaceholder) {
		return stmt
	}

	var sb strings.Builder
	sb.Grow(len(stmt) + 16)

	var quote byte
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		switch {
		case quote != 0:
			sb.WriteByte(c)
			if c == '\\' && quote != '`' && i+1 < len(stmt) {
				i++
				sb.WriteByte(stmt[i])
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			sb.WriteByte(c)
		case c == '#' && strings.HasPrefix(stmt[i:], TablePrefixPlaceholder):
			sb.WriteString(prefix)
			i += len(TablePrefixPlaceholder) - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// scanRows reads all rows into column-keyed maps.
// []byte values become strings.
func scanRows(rows *sql.Rows) ([]finder.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []finder.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(finder.Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MySQL server error numbers for schema mismatches.
const (
	mysqlErrNoSuchTable     = 1146
	mysqlErrUnknownColumn   = 1054
	mysqlErrAmbiguousColumn = 1052
)

// classify maps a driver error to a data source error code.
func classify(msg string, err error) *apperrors.AppError {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrNoSuchTable, mysqlErrUnknownColumn, mysqlErrAmbiguousColumn:
			return apperrors.New(apperrors.ErrCodeSourceSchema, msg, err).
				WithSuggestion("Run 'researchsearch migrate' or check source.table and source.eligibility")
		}
		return apperrors.DataSourceError(msg, err)
	}

	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "no such table") || strings.Contains(lower, "no such column") {
		return apperrors.New(apperrors.ErrCodeSourceSchema, msg, err).
			WithSuggestion("Run 'researchsearch migrate' or check source.table and source.eligibility")
	}
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(lower, "database is closed") {
		return apperrors.New(apperrors.ErrCodeSourceUnavailable, msg, err)
	}
	return apperrors.DataSourceError(msg, err)
}
