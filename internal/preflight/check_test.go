package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/researchsearch/internal/config"
	"github.com/Aman-CERP/researchsearch/internal/source"
	"github.com/Aman-CERP/researchsearch/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Source.DSN = filepath.Join(dir, "research.db")
	cfg.Index.Dir = filepath.Join(dir, "index")
	return cfg
}

func byName(results []CheckResult) map[string]CheckResult {
	m := make(map[string]CheckResult, len(results))
	for _, r := range results {
		m[r.Name] = r
	}
	return m
}

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONStatusByName(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "source", Status: StatusWarn})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"warn"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	assert.True(t, CheckResult{Status: StatusFail, Required: true}.IsCritical())
	assert.False(t, CheckResult{Status: StatusFail}.IsCritical())
	assert.False(t, CheckResult{Status: StatusWarn, Required: true}.IsCritical())
}

func TestSummaryStatus(t *testing.T) {
	c := New()
	assert.Equal(t, "ready", c.SummaryStatus([]CheckResult{{Status: StatusPass}}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{{Status: StatusPass}, {Status: StatusWarn}}))
	assert.Equal(t, "failed", c.SummaryStatus([]CheckResult{{Status: StatusWarn}, {Status: StatusFail, Required: true}}))
}

func TestRunAll_FreshProjectWarnsButPasses(t *testing.T) {
	// Given: a project whose database has never been migrated
	cfg := testConfig(t)

	// When: running all checks
	c := New(WithOutput(&bytes.Buffer{}))
	results := byName(c.RunAll(context.Background(), cfg))

	// Then: the environment is usable, with warnings for schema and index
	assert.Equal(t, StatusPass, results["index_writable"].Status)
	assert.Equal(t, StatusPass, results["disk_space"].Status)
	assert.Equal(t, StatusPass, results["writer_lock"].Status)
	assert.Equal(t, StatusWarn, results["index"].Status)
	assert.Equal(t, StatusPass, results["source"].Status)
	assert.Equal(t, StatusWarn, results["schema"].Status)
	assert.Equal(t, StatusPass, results["extension"].Status)
}

func TestRunAll_MigratedSchemaPasses(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	db, err := source.Open(ctx, source.Options{Driver: cfg.Source.Driver, DSN: cfg.Source.DSN})
	require.NoError(t, err)
	m, err := source.NewMigrator(db, cfg.Source.Driver, cfg.Source.TablePrefix)
	require.NoError(t, err)
	_, err = m.Up(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	results := byName(New().CheckSource(ctx, cfg))

	assert.Equal(t, StatusPass, results["schema"].Status)
	assert.Equal(t, "up to date", results["schema"].Message)
}

func TestCheckSource_DisabledExtensionWarns(t *testing.T) {
	cfg := testConfig(t)
	cfg.Host.EnabledExtensions = nil

	results := byName(New().CheckSource(context.Background(), cfg))

	assert.Equal(t, StatusWarn, results["extension"].Status)
	assert.Contains(t, results["extension"].Message, "disabled")
}

func TestCheckSource_UnreachableFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.DSN = filepath.Join(t.TempDir(), "missing", "dir", "research.db")

	results := New().CheckSource(context.Background(), cfg)

	require.Len(t, results, 1)
	assert.True(t, results[0].IsCritical())
}

func TestCheckWriterLock_Held(t *testing.T) {
	dir := t.TempDir()
	lock := store.NewWriterLock(dir)
	require.NoError(t, lock.TryLock())
	defer lock.Unlock()

	result := New().CheckWriterLock(dir)

	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.IsCritical())
}

func TestCheckIndex_BackendMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "items.bleve"), 0755))

	result := New().CheckIndex(dir, "sqlite")

	assert.Equal(t, StatusWarn, result.Status)
	assert.Contains(t, result.Message, "bleve")
}

func TestCheckWritePermissions_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	result := New().CheckWritePermissions(dir)

	assert.Equal(t, StatusPass, result.Status)
	assert.DirExists(t, dir)
}

func TestPrintResults(t *testing.T) {
	buf := &bytes.Buffer{}
	c := New(WithOutput(buf), WithVerbose(true))

	c.PrintResults([]CheckResult{
		{Name: "source", Status: StatusPass, Message: "sqlite reachable"},
		{Name: "schema", Status: StatusWarn, Message: "1 pending migration(s): v2", Details: "run migrate"},
		{Name: "disk_space", Status: StatusFail, Message: "1.0 MB free", Required: true},
	})

	out := buf.String()
	assert.Contains(t, out, "source: sqlite reachable")
	assert.Contains(t, out, "run migrate")
	assert.Contains(t, out, "Status: FAILED")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "100.0 MB", formatBytes(MinDiskSpaceBytes))
	assert.Equal(t, "2.0 GB", formatBytes(2*1024*1024*1024))
}
