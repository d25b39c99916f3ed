package finder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
)

// Compile-time interface check.
var _ SourceAdapter = (*Adapter)(nil)

// AdapterDependencies holds the collaborators an Adapter needs.
type AdapterDependencies struct {
	Executor   QueryExecutor    // required
	Sink       IndexSink        // required
	Extensions ExtensionChecker // required
	Languages  LanguageResolver // optional, defaults to "*"
	Logger     *slog.Logger     // optional
}

// Adapter maps research project rows to indexable items.
// It is stateless beyond the settings fixed by NewAdapter.
type Adapter struct {
	settings   Settings
	exec       QueryExecutor
	sink       IndexSink
	extensions ExtensionChecker
	languages  LanguageResolver
	logger     *slog.Logger
}

// NewAdapter creates an adapter. Executor, Sink and Extensions are required.
func NewAdapter(settings Settings, deps AdapterDependencies) (*Adapter, error) {
	if deps.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if deps.Extensions == nil {
		return nil, fmt.Errorf("extension checker is required")
	}
	if settings.Table == "" {
		return nil, fmt.Errorf("table is required")
	}
	if settings.RoutePrefix == "" {
		settings.RoutePrefix = DefaultSettings().RoutePrefix
	}

	languages := deps.Languages
	if languages == nil {
		languages = LanguageFunc(func(*IndexableItem) string { return "*" })
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	settings.Eligibility = append([]string(nil), settings.Eligibility...)

	return &Adapter{
		settings:   settings,
		exec:       deps.Executor,
		sink:       deps.Sink,
		extensions: deps.Extensions,
		languages:  languages,
		logger:     logger,
	}, nil
}

// Setup has nothing to initialize and always succeeds.
func (a *Adapter) Setup() bool {
	return true
}

// TypeID returns the content type id stamped on every item.
func (a *Adapter) TypeID() int {
	return a.settings.TypeID
}

// BuildQuery returns base unchanged when supplied, otherwise the default
// eligible-rows query ordered by id.
func (a *Adapter) BuildQuery(base *sq.SelectBuilder) sq.SelectBuilder {
	if base != nil {
		return *base
	}

	q := sq.Select("a.id", "a.title", "a.alias", "a.content", "a.created AS start_date").
		From(a.settings.Table + " AS a")
	for _, cond := range a.settings.Eligibility {
		q = q.Where(cond)
	}
	return q.OrderBy("a.id")
}

// GetEligibleCount counts eligible rows. An empty table yields 0.
func (a *Adapter) GetEligibleCount(ctx context.Context) (int, error) {
	n, err := a.exec.Count(ctx, a.BuildQuery(nil))
	if err != nil {
		return 0, asDataSourceError("failed to count eligible research projects", err)
	}
	return n, nil
}

// GetItems returns items for rows [offset, offset+limit) of BuildQuery(query).
// An offset past the last row yields an empty slice.
func (a *Adapter) GetItems(ctx context.Context, offset, limit int, query *sq.SelectBuilder) ([]*IndexableItem, error) {
	if offset < 0 {
		return nil, apperrors.ValidationError(fmt.Sprintf("offset must be >= 0, got %d", offset), nil)
	}
	if limit <= 0 {
		return nil, apperrors.ValidationError(fmt.Sprintf("limit must be > 0, got %d", limit), nil)
	}

	rows, err := a.exec.FetchPage(ctx, a.BuildQuery(query), offset, limit)
	if err != nil {
		return nil, asDataSourceError("failed to fetch research projects", err).
			WithDetail("offset", strconv.Itoa(offset)).
			WithDetail("limit", strconv.Itoa(limit))
	}

	items := make([]*IndexableItem, 0, len(rows))
	for _, row := range rows {
		item, err := a.mapRow(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// GetItem returns the item for one eligible row.
func (a *Adapter) GetItem(ctx context.Context, id int) (*IndexableItem, error) {
	q := a.BuildQuery(nil).Where(sq.Eq{"a.id": id})

	rows, err := a.exec.FetchPage(ctx, q, 0, 1)
	if err != nil {
		return nil, asDataSourceError("failed to fetch research project", err).
			WithDetail("id", strconv.Itoa(id))
	}
	if len(rows) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeSourceNotFound,
			fmt.Sprintf("research project %d not found or not eligible", id), nil).
			WithDetail("id", strconv.Itoa(id))
	}
	return a.mapRow(rows[0])
}

// ExtensionEnabled reports whether the owning extension is enabled.
func (a *Adapter) ExtensionEnabled(ctx context.Context) (bool, error) {
	enabled, err := a.extensions.IsExtensionEnabled(ctx, a.settings.Extension)
	if err != nil {
		return false, asDataSourceError("failed to check extension state", err).
			WithDetail("extension", a.settings.Extension)
	}
	return enabled, nil
}

// IndexItem forwards item to the sink when the extension is enabled.
// A disabled extension is a silent no-op. Sink errors are returned unmodified.
func (a *Adapter) IndexItem(ctx context.Context, item *IndexableItem) error {
	enabled, err := a.ExtensionEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		a.logger.Debug("item_skipped_extension_disabled",
			slog.String("extension", a.settings.Extension),
			slog.Int("id", item.ID))
		return nil
	}

	item.Language = a.languages.ResolveLanguage(item)
	return a.sink.Index(ctx, item)
}

// mapRow builds an item from a row.
func (a *Adapter) mapRow(row Row) (*IndexableItem, error) {
	id, ok := rowInt(row, "id")
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeSourceSchema,
			"row has no integer id column", nil).
			WithSuggestion("Select a.id in custom queries")
	}

	title := rowString(row, "title")
	alias := rowString(row, "alias")
	content := rowString(row, "content")

	summary := title + ": " + content
	if a.settings.EncodeEntities {
		summary = EncodeEntities(summary)
	}

	url := a.settings.RoutePrefix + strconv.Itoa(id) + "-" + alias

	item := &IndexableItem{
		ID:        id,
		Title:     title,
		Alias:     alias,
		Content:   content,
		Summary:   summary,
		URL:       url,
		Route:     url,
		TypeID:    a.settings.TypeID,
		Mime:      a.settings.Mime,
		Layout:    a.settings.Layout,
		State:     1,
		Access:    1,
		Language:  rowString(row, "language"),
		Extension: rowString(row, "extension"),
	}
	if t, ok := rowTime(row, "start_date"); ok {
		item.StartDate = t
	}
	return item, nil
}

// asDataSourceError keeps the code of coded errors and wraps the rest as ERR_202.
func asDataSourceError(msg string, err error) *apperrors.AppError {
	if code := apperrors.GetCode(err); code != "" {
		return apperrors.New(code, msg, err)
	}
	return apperrors.DataSourceError(msg, err)
}

func rowInt(row Row, key string) (int, bool) {
	switch v := row[key].(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	case int32:
		return int(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int(v), true
	case float64:
		return int(v), v == math.Trunc(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func rowString(row Row, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.DateTime)
	default:
		return fmt.Sprint(v)
	}
}

var timeLayouts = []string{
	time.DateTime,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	time.DateOnly,
}

func rowTime(row Row, key string) (time.Time, bool) {
	switch v := row[key].(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
