package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	apperrors "github.com/Aman-CERP/researchsearch/internal/errors"
	"github.com/Aman-CERP/researchsearch/internal/finder"
)

// typeRegistryKey stores the type title to id map as index internal data.
var typeRegistryKey = []byte("finder_types")

// BleveItemIndex implements ItemIndex on Bleve v2.
// Bleve holds an exclusive file lock, so only one process may open it.
type BleveItemIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ ItemIndex = (*BleveItemIndex)(nil)

// bleveItem is the stored document shape.
type bleveItem struct {
	TypeID    float64 `json:"type_id"`
	ItemID    float64 `json:"item_id"`
	Title     string  `json:"title"`
	Alias     string  `json:"alias"`
	Summary   string  `json:"summary"`
	URL       string  `json:"url"`
	Route     string  `json:"route"`
	Mime      string  `json:"mime"`
	Layout    string  `json:"layout"`
	State     float64 `json:"state"`
	Access    float64 `json:"access"`
	Language  string  `json:"language"`
	Extension string  `json:"extension"`
	StartDate string  `json:"start_date,omitempty"`
}

// validateIndexIntegrity checks an existing Bleve directory before opening.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// NewBleveItemIndex opens or creates a Bleve index at path.
// If path is empty, creates an in-memory index.
func NewBleveItemIndex(path string) (*BleveItemIndex, error) {
	indexMapping := createItemMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("bleve_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, apperrors.New(apperrors.ErrCodeIndexCorrupt,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
			slog.Info("bleve_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveItemIndex{index: idx, path: path}, nil
}

// createItemMapping maps title and summary through the English analyzer and
// keeps identifiers as exact keywords.
func createItemMapping() *mapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = true

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	exact.Store = true
	exact.IncludeInAll = false

	number := bleve.NewNumericFieldMapping()
	number.Store = true
	number.IncludeInAll = false

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	stored.Store = true
	stored.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("summary", text)
	doc.AddFieldMappingsAt("type_id", number)
	doc.AddFieldMappingsAt("item_id", number)
	doc.AddFieldMappingsAt("state", number)
	doc.AddFieldMappingsAt("access", number)
	doc.AddFieldMappingsAt("language", exact)
	doc.AddFieldMappingsAt("extension", exact)
	doc.AddFieldMappingsAt("url", stored)
	doc.AddFieldMappingsAt("route", stored)
	doc.AddFieldMappingsAt("alias", stored)
	doc.AddFieldMappingsAt("mime", stored)
	doc.AddFieldMappingsAt("layout", stored)
	doc.AddFieldMappingsAt("start_date", stored)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = en.AnalyzerName
	return m
}

// Index upserts one item.
func (b *BleveItemIndex) Index(ctx context.Context, item *finder.IndexableItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return closedError()
	}

	doc := bleveItem{
		TypeID:    float64(item.TypeID),
		ItemID:    float64(item.ID),
		Title:     item.Title,
		Alias:     item.Alias,
		Summary:   item.Summary,
		URL:       item.URL,
		Route:     item.Route,
		Mime:      item.Mime,
		Layout:    item.Layout,
		State:     float64(item.State),
		Access:    float64(item.Access),
		Language:  item.Language,
		Extension: item.Extension,
	}
	if !item.StartDate.IsZero() {
		doc.StartDate = item.StartDate.UTC().Format(time.RFC3339)
	}

	if err := b.index.Index(docKey(item.TypeID, item.ID), doc); err != nil {
		return itemError(item, err)
	}
	return nil
}

// Search matches query terms against title (boosted) and summary.
func (b *BleveItemIndex) Search(ctx context.Context, queryStr string, limit int) ([]*SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, closedError()
	}

	terms := queryTerms(queryStr)
	if len(terms) == 0 || limit <= 0 {
		return []*SearchResult{}, nil
	}
	text := strings.Join(terms, " ")

	title := bleve.NewMatchQuery(text)
	title.SetField("title")
	title.SetBoost(2.0)
	title.SetOperator(query.MatchQueryOperatorAnd)

	summary := bleve.NewMatchQuery(text)
	summary.SetField("summary")
	summary.SetOperator(query.MatchQueryOperatorAnd)

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(title, summary), limit, 0, false)
	req.Fields = []string{"type_id", "item_id", "title", "url", "summary", "language"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexSearch, "search failed", err)
	}

	results := make([]*SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		typeID, id, _ := parseDocKey(hit.ID)
		results = append(results, &SearchResult{
			TypeID:   typeID,
			ID:       id,
			Title:    fieldString(hit.Fields, "title"),
			URL:      fieldString(hit.Fields, "url"),
			Summary:  fieldString(hit.Fields, "summary"),
			Language: fieldString(hit.Fields, "language"),
			Score:    hit.Score,
		})
	}
	return results, nil
}

// ItemIDs returns the ids indexed for typeID.
func (b *BleveItemIndex) ItemIDs(ctx context.Context, typeID int) ([]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, closedError()
	}

	count, err := b.index.DocCount()
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexSearch, "failed to count documents", err)
	}
	if count == 0 {
		return nil, nil
	}

	v := float64(typeID)
	inclusive := true
	q := bleve.NewNumericRangeInclusiveQuery(&v, &v, &inclusive, &inclusive)
	q.SetField("type_id")

	req := bleve.NewSearchRequestOptions(q, int(count), 0, false)
	req.SortBy([]string{"item_id"})

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexSearch, "failed to list item ids", err)
	}

	ids := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if _, id, ok := parseDocKey(hit.ID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Delete removes items of typeID in one batch.
func (b *BleveItemIndex) Delete(ctx context.Context, typeID int, ids []int) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return closedError()
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(docKey(typeID, id))
	}
	if err := b.index.Batch(batch); err != nil {
		return apperrors.IndexError("failed to delete items", err)
	}
	return nil
}

// RegisterType returns the id for title, allocating the next id on first use.
// The registry lives in the index's internal key space.
func (b *BleveItemIndex) RegisterType(ctx context.Context, title string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, closedError()
	}

	types, err := b.loadTypes()
	if err != nil {
		return 0, err
	}
	if id, ok := types[title]; ok {
		return id, nil
	}

	next := 1
	for _, id := range types {
		if id >= next {
			next = id + 1
		}
	}
	types[title] = next

	data, err := json.Marshal(types)
	if err != nil {
		return 0, apperrors.IndexError("failed to encode type registry", err)
	}
	if err := b.index.SetInternal(typeRegistryKey, data); err != nil {
		return 0, apperrors.IndexError("failed to register type", err)
	}
	return next, nil
}

func (b *BleveItemIndex) loadTypes() (map[string]int, error) {
	data, err := b.index.GetInternal(typeRegistryKey)
	if err != nil {
		return nil, apperrors.IndexError("failed to read type registry", err)
	}
	types := map[string]int{}
	if len(data) == 0 {
		return types, nil
	}
	if err := json.Unmarshal(data, &types); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexCorrupt, "type registry is corrupt", err)
	}
	return types, nil
}

// Stats returns index statistics.
func (b *BleveItemIndex) Stats(ctx context.Context) (*IndexStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, closedError()
	}

	count, err := b.index.DocCount()
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeIndexSearch, "failed to count documents", err)
	}
	types, err := b.loadTypes()
	if err != nil {
		return nil, err
	}
	return &IndexStats{Backend: string(BackendBleve), Items: int(count), Types: len(types)}, nil
}

// Close closes the index. It is idempotent.
func (b *BleveItemIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func fieldString(fields map[string]any, name string) string {
	if s, ok := fields[name].(string); ok {
		return s
	}
	return ""
}
