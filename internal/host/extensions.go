// Package host provides the host capabilities the adapter consumes:
// extension enablement and language resolution.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Aman-CERP/researchsearch/internal/finder"
)

// Extension lookup modes.
const (
	ModeStatic   = "static"
	ModeDatabase = "database"
)

// extensionCacheSize bounds the number of cached extension lookups.
const extensionCacheSize = 64

// RowQuerier runs a select against the host database.
type RowQuerier interface {
	Query(ctx context.Context, query sq.SelectBuilder) ([]finder.Row, error)
}

// Compile-time interface check.
var _ finder.ExtensionChecker = (*ExtensionRegistry)(nil)

// ExtensionRegistry answers whether a content extension is enabled.
// In static mode the answer comes from a configured list; in database mode
// from the #__extensions table, cached for the configured TTL.
type ExtensionRegistry struct {
	mode    string
	static  map[string]bool
	querier RowQuerier
	cache   *expirable.LRU[string, bool]
	logger  *slog.Logger
}

// NewStaticExtensionRegistry enables exactly the listed extensions.
func NewStaticExtensionRegistry(enabled []string) *ExtensionRegistry {
	static := make(map[string]bool, len(enabled))
	for _, e := range enabled {
		static[e] = true
	}
	return &ExtensionRegistry{mode: ModeStatic, static: static, logger: slog.Default()}
}

// NewDatabaseExtensionRegistry reads enablement from #__extensions.
// A ttl of 0 disables caching.
func NewDatabaseExtensionRegistry(querier RowQuerier, ttl time.Duration) (*ExtensionRegistry, error) {
	if querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	r := &ExtensionRegistry{mode: ModeDatabase, querier: querier, logger: slog.Default()}
	if ttl > 0 {
		r.cache = expirable.NewLRU[string, bool](extensionCacheSize, nil, ttl)
	}
	return r, nil
}

// Mode returns ModeStatic or ModeDatabase.
func (r *ExtensionRegistry) Mode() string {
	return r.mode
}

// IsExtensionEnabled reports whether extensionID is enabled.
// An extension missing from the table is disabled.
func (r *ExtensionRegistry) IsExtensionEnabled(ctx context.Context, extensionID string) (bool, error) {
	if r.mode == ModeStatic {
		return r.static[extensionID], nil
	}

	if r.cache != nil {
		if enabled, ok := r.cache.Get(extensionID); ok {
			return enabled, nil
		}
	}

	q := sq.Select("e.enabled").
		From("#__extensions AS e").
		Where(sq.Eq{"e.element": extensionID}).
		Limit(1)
	rows, err := r.querier.Query(ctx, q)
	if err != nil {
		return false, err
	}

	enabled := false
	if len(rows) > 0 {
		enabled = truthy(rows[0]["enabled"])
	}

	if r.cache != nil {
		r.cache.Add(extensionID, enabled)
	}
	r.logger.Debug("extension_state_loaded",
		slog.String("extension", extensionID),
		slog.Bool("enabled", enabled))
	return enabled, nil
}

// Invalidate drops cached lookups.
func (r *ExtensionRegistry) Invalidate() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case int64:
		return x != 0
	case int:
		return x != 0
	case bool:
		return x
	case string:
		return x != "" && x != "0"
	default:
		return false
	}
}
