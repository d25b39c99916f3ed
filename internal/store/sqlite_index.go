package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
	"github.com/Aman-CERP/researchsearch/internal/finder"
)

// SQLiteItemIndex implements ItemIndex using SQLite FTS5.
// WAL mode lets readers run while a writer holds the index.
type SQLiteItemIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ ItemIndex = (*SQLiteItemIndex)(nil)

// validateSQLiteIntegrity checks an existing index file before opening.
// Returns nil if valid or absent.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name IN ('items', 'items_fts', 'types')`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count != 3 {
		return fmt.Errorf("index tables missing")
	}
	return nil
}

// NewSQLiteItemIndex opens or creates an FTS5 index at path.
// If path is empty, creates an in-memory index for testing.
// A corrupted index file is removed and recreated empty.
func NewSQLiteItemIndex(path string) (*SQLiteItemIndex, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("sqlite_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, apperrors.New(apperrors.ErrCodeIndexCorrupt,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("sqlite_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer connection; also keeps an in-memory index alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteItemIndex{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

// initSchema creates the item, type and FTS5 tables.
func (s *SQLiteItemIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS items (
		type_id INTEGER NOT NULL,
		id INTEGER NOT NULL,
		title TEXT NOT NULL,
		alias TEXT NOT NULL,
		summary TEXT NOT NULL,
		url TEXT NOT NULL,
		route TEXT NOT NULL,
		mime TEXT NOT NULL DEFAULT '',
		layout TEXT NOT NULL DEFAULT '',
		state INTEGER NOT NULL,
		access INTEGER NOT NULL,
		language TEXT NOT NULL DEFAULT '*',
		extension TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		indexed_at TEXT NOT NULL,
		PRIMARY KEY (type_id, id)
	);

	-- key is "<type_id>:<id>"; only title and summary are searchable
	CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
		key UNINDEXED,
		title,
		summary,
		tokenize='porter unicode61'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Index upserts one item: the row is replaced and its FTS entry rewritten.
func (s *SQLiteItemIndex) Index(ctx context.Context, item *finder.IndexableItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return closedError()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.IndexError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	startDate := ""
	if !item.StartDate.IsZero() {
		startDate = item.StartDate.UTC().Format(time.RFC3339)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (type_id, id, title, alias, summary, url, route, mime, layout,
			state, access, language, extension, start_date, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (type_id, id) DO UPDATE SET
			title = excluded.title, alias = excluded.alias, summary = excluded.summary,
			url = excluded.url, route = excluded.route, mime = excluded.mime,
			layout = excluded.layout, state = excluded.state, access = excluded.access,
			language = excluded.language, extension = excluded.extension,
			start_date = excluded.start_date, indexed_at = excluded.indexed_at`,
		item.TypeID, item.ID, item.Title, item.Alias, item.Summary, item.URL, item.Route,
		item.Mime, item.Layout, item.State, item.Access, item.Language, item.Extension,
		startDate, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return itemError(item, err)
	}

	// FTS5 virtual tables don't support REPLACE, so delete first
	key := docKey(item.TypeID, item.ID)
	if _, err := tx.ExecContext(ctx, `DELETE FROM items_fts WHERE key = ?`, key); err != nil {
		return itemError(item, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO items_fts (key, title, summary) VALUES (?, ?, ?)`,
		key, item.Title, item.Summary); err != nil {
		return itemError(item, err)
	}

	if err := tx.Commit(); err != nil {
		return itemError(item, err)
	}
	return nil
}

// Search returns items matching every term of query, scored by FTS5 bm25.
func (s *SQLiteItemIndex) Search(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, closedError()
	}

	terms := queryTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return []*SearchResult{}, nil
	}

	// Quote each term so user input is never parsed as FTS5 syntax.
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	match := strings.Join(quoted, " ")

	// bm25() is negative, lower is better; title matches weigh double.
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.type_id, i.id, i.title, i.url, i.summary, i.language,
			bm25(items_fts, 0.0, 2.0, 1.0) AS score
		FROM items_fts
		JOIN items i ON items_fts.key = i.type_id || ':' || i.id
		WHERE items_fts MATCH ?
		ORDER BY score
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexSearch, "search failed", err)
	}
	defer rows.Close()

	results := []*SearchResult{}
	for rows.Next() {
		r := &SearchResult{}
		var score float64
		if err := rows.Scan(&r.TypeID, &r.ID, &r.Title, &r.URL, &r.Summary, &r.Language, &score); err != nil {
			return nil, apperrors.New(apperrors.ErrCodeIndexSearch, "failed to scan result", err)
		}
		r.Score = -score
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexSearch, "search failed", err)
	}
	return results, nil
}

// ItemIDs returns the ids indexed for typeID in ascending order.
func (s *SQLiteItemIndex) ItemIDs(ctx context.Context, typeID int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, closedError()
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM items WHERE type_id = ? ORDER BY id`, typeID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexSearch, "failed to list item ids", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.New(apperrors.ErrCodeIndexSearch, "failed to scan item id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes items of typeID.
func (s *SQLiteItemIndex) Delete(ctx context.Context, typeID int, ids []int) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return closedError()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.IndexError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	itemStmt, err := tx.PrepareContext(ctx, `DELETE FROM items WHERE type_id = ? AND id = ?`)
	if err != nil {
		return apperrors.IndexError("failed to prepare delete statement", err)
	}
	defer itemStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `DELETE FROM items_fts WHERE key = ?`)
	if err != nil {
		return apperrors.IndexError("failed to prepare delete statement", err)
	}
	defer ftsStmt.Close()

	for _, id := range ids {
		if _, err := itemStmt.ExecContext(ctx, typeID, id); err != nil {
			return apperrors.IndexError(fmt.Sprintf("failed to delete item %d", id), err)
		}
		if _, err := ftsStmt.ExecContext(ctx, docKey(typeID, id)); err != nil {
			return apperrors.IndexError(fmt.Sprintf("failed to delete item %d", id), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.IndexError("failed to commit delete", err)
	}
	return nil
}

// RegisterType returns the id for title, inserting it on first use.
func (s *SQLiteItemIndex) RegisterType(ctx context.Context, title string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, closedError()
	}

	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO types (title) VALUES (?)`, title); err != nil {
		return 0, apperrors.IndexError("failed to register type", err)
	}

	var id int
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM types WHERE title = ?`, title).Scan(&id); err != nil {
		return 0, apperrors.IndexError("failed to read type id", err)
	}
	return id, nil
}

// Stats returns index statistics.
func (s *SQLiteItemIndex) Stats(ctx context.Context) (*IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, closedError()
	}

	stats := &IndexStats{Backend: string(BackendSQLite)}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&stats.Items); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexSearch, "failed to count items", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM types`).Scan(&stats.Types); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexSearch, "failed to count types", err)
	}
	return stats, nil
}

// Close checkpoints the WAL and closes the database. It is idempotent.
func (s *SQLiteItemIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

func closedError() error {
	return apperrors.New(apperrors.ErrCodeIndexClosed, "index is closed", nil)
}

func itemError(item *finder.IndexableItem, err error) error {
	return apperrors.IndexError(fmt.Sprintf("failed to index item %d", item.ID), err).
		WithDetail("type_id", fmt.Sprint(item.TypeID))
}
