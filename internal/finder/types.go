package finder

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Row is one result row keyed by column name.
// Values are int64, float64, string, bool, time.Time or nil.
type Row map[string]any

// IndexableItem is the canonical shape handed to an IndexSink.
// Items are built per call and never retained by the adapter.
type IndexableItem struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Alias     string    `json:"alias"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary"`
	URL       string    `json:"url"`
	Route     string    `json:"route"`
	TypeID    int       `json:"type_id"`
	Mime      string    `json:"mime,omitempty"`
	Layout    string    `json:"layout,omitempty"`
	State     int       `json:"state"`
	Access    int       `json:"access"`
	Language  string    `json:"language,omitempty"`
	Extension string    `json:"extension,omitempty"`
	StartDate time.Time `json:"start_date,omitzero"`
}

// Settings are the constants fixed at adapter construction.
type Settings struct {
	// Extension is the content extension that must be enabled for IndexItem to forward.
	Extension string
	TypeID    int
	Mime      string
	Layout    string

	// Table is the source table, "#__" prefixed.
	Table string

	// Eligibility conditions are ANDed onto the default query.
	Eligibility []string

	RoutePrefix string

	// EncodeEntities rewrites non-ASCII summary characters as numeric entities.
	EncodeEntities bool
}

// DefaultSettings returns the settings for the research projects component.
func DefaultSettings() Settings {
	return Settings{
		Extension:   "com_researchprojects",
		Table:       "#__researchprojects",
		Eligibility: []string{"a.state = 1"},
		RoutePrefix: "/research/projects/",
	}
}

// QueryExecutor runs queries against the source database.
// Failures are reported as data source errors.
type QueryExecutor interface {
	// Count returns the number of rows query would produce.
	Count(ctx context.Context, query sq.SelectBuilder) (int, error)

	// FetchPage returns rows [offset, offset+limit) of query in query order.
	FetchPage(ctx context.Context, query sq.SelectBuilder, offset, limit int) ([]Row, error)
}

// IndexSink persists items. Index is an idempotent upsert keyed by (TypeID, ID).
type IndexSink interface {
	Index(ctx context.Context, item *IndexableItem) error
}

// Reconciler is an optional IndexSink capability used to remove items whose
// rows are no longer eligible.
type Reconciler interface {
	ItemIDs(ctx context.Context, typeID int) ([]int, error)
	Delete(ctx context.Context, typeID int, ids []int) error
}

// ExtensionChecker reports whether a content extension is enabled on the host.
type ExtensionChecker interface {
	IsExtensionEnabled(ctx context.Context, extensionID string) (bool, error)
}

// LanguageResolver assigns a language tag to an item at index time.
type LanguageResolver interface {
	ResolveLanguage(item *IndexableItem) string
}

// LanguageFunc adapts a function to LanguageResolver.
type LanguageFunc func(item *IndexableItem) string

// ResolveLanguage calls f(item).
func (f LanguageFunc) ResolveLanguage(item *IndexableItem) string {
	return f(item)
}

// SourceAdapter is the contract the Driver runs.
type SourceAdapter interface {
	Setup() bool
	TypeID() int
	GetEligibleCount(ctx context.Context) (int, error)
	BuildQuery(base *sq.SelectBuilder) sq.SelectBuilder
	GetItems(ctx context.Context, offset, limit int, query *sq.SelectBuilder) ([]*IndexableItem, error)
	GetItem(ctx context.Context, id int) (*IndexableItem, error)
	ExtensionEnabled(ctx context.Context) (bool, error)
	IndexItem(ctx context.Context, item *IndexableItem) error
}
