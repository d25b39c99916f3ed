// Package store persists indexable items in a full-text search index.
// Two backends share the ItemIndex contract: SQLite FTS5 (default) and Bleve.
package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/Aman-CERP/researchsearch/internal/finder"
)

// ItemIndex is the search index the driver writes to.
// Index is an idempotent upsert keyed by (TypeID, ID).
type ItemIndex interface {
	finder.IndexSink
	finder.Reconciler

	// Search returns items matching query, best match first.
	Search(ctx context.Context, query string, limit int) ([]*SearchResult, error)

	// RegisterType returns the id for a content type title, creating it if needed.
	RegisterType(ctx context.Context, title string) (int, error)

	// Stats returns index statistics.
	Stats(ctx context.Context) (*IndexStats, error)

	Close() error
}

// SearchResult is one search hit.
type SearchResult struct {
	TypeID   int     `json:"type_id"`
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Summary  string  `json:"summary"`
	Language string  `json:"language,omitempty"`
	Score    float64 `json:"score"`
}

// IndexStats provides statistics about the index.
type IndexStats struct {
	Backend string `json:"backend"`
	Items   int    `json:"items"`
	Types   int    `json:"types"`
}

// docKey is the backend document key for an item.
func docKey(typeID, id int) string {
	return strconv.Itoa(typeID) + ":" + strconv.Itoa(id)
}

// parseDocKey splits a document key. ok is false for malformed keys.
func parseDocKey(key string) (typeID, id int, ok bool) {
	t, i, found := strings.Cut(key, ":")
	if !found {
		return 0, 0, false
	}
	typeID, err1 := strconv.Atoi(t)
	id, err2 := strconv.Atoi(i)
	return typeID, id, err1 == nil && err2 == nil
}

// queryTerms splits a user query into bare terms.
func queryTerms(q string) []string {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', '"', '\'', '(', ')', '*', ':', '^', '+', '-':
			return true
		}
		return false
	})
	return fields
}
