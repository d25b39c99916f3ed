package host

import (
	"context"
	"errors"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/researchsearch/internal/finder"
)

type fakeQuerier struct {
	rows  map[string]int64
	err   error
	calls int
	sql   string
}

func (f *fakeQuerier) Query(_ context.Context, q sq.SelectBuilder) ([]finder.Row, error) {
	f.calls++
	sql, args, _ := q.ToSql()
	f.sql = sql
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.rows[args[0].(string)]
	if !ok {
		return nil, nil
	}
	return []finder.Row{{"enabled": v}}, nil
}

func TestStaticExtensionRegistry(t *testing.T) {
	r := NewStaticExtensionRegistry([]string{"com_researchprojects"})

	on, err := r.IsExtensionEnabled(context.Background(), "com_researchprojects")
	require.NoError(t, err)
	off, err := r.IsExtensionEnabled(context.Background(), "com_content")
	require.NoError(t, err)

	assert.True(t, on)
	assert.False(t, off)
	assert.Equal(t, ModeStatic, r.Mode())
}

func TestDatabaseExtensionRegistry_Lookup(t *testing.T) {
	// Given: one enabled and one disabled extension
	q := &fakeQuerier{rows: map[string]int64{"com_researchprojects": 1, "com_old": 0}}
	r, err := NewDatabaseExtensionRegistry(q, 0)
	require.NoError(t, err)

	// When/Then: the table value decides, missing means disabled
	on, err := r.IsExtensionEnabled(context.Background(), "com_researchprojects")
	require.NoError(t, err)
	assert.True(t, on)

	off, err := r.IsExtensionEnabled(context.Background(), "com_old")
	require.NoError(t, err)
	assert.False(t, off)

	missing, err := r.IsExtensionEnabled(context.Background(), "com_missing")
	require.NoError(t, err)
	assert.False(t, missing)

	assert.Contains(t, q.sql, "FROM #__extensions AS e WHERE e.element = ?")
	assert.Equal(t, 3, q.calls)
}

func TestDatabaseExtensionRegistry_CachesWithinTTL(t *testing.T) {
	q := &fakeQuerier{rows: map[string]int64{"com_researchprojects": 1}}
	r, err := NewDatabaseExtensionRegistry(q, time.Minute)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		on, err := r.IsExtensionEnabled(context.Background(), "com_researchprojects")
		require.NoError(t, err)
		assert.True(t, on)
	}
	assert.Equal(t, 1, q.calls)

	// When: the cache is invalidated
	r.Invalidate()
	_, err = r.IsExtensionEnabled(context.Background(), "com_researchprojects")
	require.NoError(t, err)

	// Then: the table is read again
	assert.Equal(t, 2, q.calls)
}

func TestDatabaseExtensionRegistry_QueryError(t *testing.T) {
	q := &fakeQuerier{err: errors.New("no such table: jos_extensions")}
	r, err := NewDatabaseExtensionRegistry(q, time.Minute)
	require.NoError(t, err)

	_, err = r.IsExtensionEnabled(context.Background(), "com_researchprojects")

	assert.Error(t, err)
}

func TestNewDatabaseExtensionRegistry_RequiresQuerier(t *testing.T) {
	_, err := NewDatabaseExtensionRegistry(nil, 0)
	assert.Error(t, err)
}

func TestTruthy(t *testing.T) {
	assert.True(t, truthy(int64(1)))
	assert.True(t, truthy("1"))
	assert.True(t, truthy(true))
	assert.False(t, truthy(int64(0)))
	assert.False(t, truthy("0"))
	assert.False(t, truthy(nil))
}

func TestSiteLanguage(t *testing.T) {
	tests := []struct {
		name     string
		resolver SiteLanguage
		item     *finder.IndexableItem
		want     string
	}{
		{"row language wins", SiteLanguage{Default: "en-GB"}, &finder.IndexableItem{Language: "de-DE"}, "de-DE"},
		{"site default", SiteLanguage{Default: "en-GB"}, &finder.IndexableItem{}, "en-GB"},
		{"all languages", SiteLanguage{}, &finder.IndexableItem{Language: "  "}, AllLanguages},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resolver.ResolveLanguage(tt.item))
		})
	}
}
