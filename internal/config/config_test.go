package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points the user config at an empty directory and clears overrides.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{
		"RESEARCHSEARCH_SOURCE_DRIVER",
		"RESEARCHSEARCH_SOURCE_DSN",
		"RESEARCHSEARCH_TABLE_PREFIX",
		"RESEARCHSEARCH_ADAPTER_ENABLED",
		"RESEARCHSEARCH_BATCH_SIZE",
		"RESEARCHSEARCH_EXTENSIONS",
		"RESEARCHSEARCH_INDEX_BACKEND",
		"RESEARCHSEARCH_INDEX_DIR",
		"RESEARCHSEARCH_SCHEDULE_CRON",
		"RESEARCHSEARCH_LOG_LEVEL",
		"RESEARCHSEARCH_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

// =============================================================================
// Defaults
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)

	assert.Equal(t, "sqlite", cfg.Source.Driver)
	assert.Equal(t, "#__researchprojects", cfg.Source.Table)
	assert.Equal(t, "jos_", cfg.Source.TablePrefix)
	assert.Equal(t, []string{"a.state = 1"}, cfg.Source.Eligibility)

	assert.Equal(t, "ResearchSearch", cfg.Adapter.Context)
	assert.Equal(t, "com_researchprojects", cfg.Adapter.Extension)
	assert.Equal(t, "ResearchSearch", cfg.Adapter.TypeTitle)
	assert.Equal(t, "/research/projects/", cfg.Adapter.RoutePrefix)
	assert.True(t, cfg.Adapter.Enabled)
	assert.False(t, cfg.Adapter.EncodeEntities)
	assert.Equal(t, 50, cfg.Adapter.BatchSize)

	assert.Equal(t, "static", cfg.Host.Extensions)
	assert.Contains(t, cfg.Host.EnabledExtensions, "com_researchprojects")
	assert.Equal(t, "*", cfg.Host.DefaultLanguage)
	assert.Equal(t, 30*time.Second, cfg.Host.CacheTTL())

	assert.Equal(t, "sqlite", cfg.Index.Backend)
	assert.Equal(t, 2*time.Second, cfg.Watch.DebounceWindow())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestNewConfig_DefaultsAreValid(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())
}

// =============================================================================
// Loading
// =============================================================================

func TestLoad_NoFiles_UsesDefaultsWithResolvedPaths(t *testing.T) {
	// Given: an empty project directory
	isolateEnv(t)
	dir := t.TempDir()

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: defaults are used and relative paths resolve against the project
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DataDirName, "index"), cfg.Index.Dir)
	assert.Equal(t, filepath.Join(dir, "research.db"), cfg.Source.DSN)
}

func TestLoad_ProjectYAML_OverridesDefaults(t *testing.T) {
	// Given: a project config with the legacy programme-of-work schema
	isolateEnv(t)
	dir := t.TempDir()
	content := `
source:
  driver: mysql
  dsn: "user:pass@tcp(db:3306)/cms"
  eligibility:
    - a.status_id > 0
    - a.included = 1
adapter:
  enabled: false
  batch_size: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigYAML), []byte(content), 0644))

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: file values win, untouched keys keep defaults
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Source.Driver)
	assert.Equal(t, "user:pass@tcp(db:3306)/cms", cfg.Source.DSN, "mysql DSN is not a path")
	assert.Equal(t, []string{"a.status_id > 0", "a.included = 1"}, cfg.Source.Eligibility)
	assert.False(t, cfg.Adapter.Enabled)
	assert.Equal(t, 10, cfg.Adapter.BatchSize)
	assert.Equal(t, "/research/projects/", cfg.Adapter.RoutePrefix)
}

func TestLoad_YMLExtension(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigYML), []byte("index:\n  backend: bleve\n"), 0644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "bleve", cfg.Index.Backend)
}

func TestLoad_UserConfig_ThenProjectConfig(t *testing.T) {
	// Given: a user config and a project config touching overlapping keys
	isolateEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	userDir := filepath.Join(xdg, "researchsearch")
	require.NoError(t, os.MkdirAll(userDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"),
		[]byte("logging:\n  level: debug\nindex:\n  backend: bleve\n"), 0644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigYAML),
		[]byte("index:\n  backend: sqlite\n"), 0644))

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: project wins over user, user wins over defaults
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Index.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigYAML), []byte("adapter:\n  batch_size: 10\n"), 0644))
	t.Setenv("RESEARCHSEARCH_BATCH_SIZE", "25")
	t.Setenv("RESEARCHSEARCH_ADAPTER_ENABLED", "false")
	t.Setenv("RESEARCHSEARCH_TABLE_PREFIX", "abc_")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Adapter.BatchSize)
	assert.False(t, cfg.Adapter.Enabled)
	assert.Equal(t, "abc_", cfg.Source.TablePrefix)
}

func TestLoad_DotEnv_DoesNotOverrideProcessEnv(t *testing.T) {
	// Given: a .env file setting two variables, one already set in the process
	isolateEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFile),
		[]byte("RESEARCHSEARCH_LOG_LEVEL=warn\nRESEARCHSEARCH_SCHEDULE_CRON=*/5 * * * *\n"), 0644))
	t.Setenv("RESEARCHSEARCH_LOG_LEVEL", "error")
	require.NoError(t, os.Unsetenv("RESEARCHSEARCH_SCHEDULE_CRON"))
	t.Cleanup(func() { _ = os.Unsetenv("RESEARCHSEARCH_SCHEDULE_CRON") })

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: the process value wins, the unset one comes from .env
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "*/5 * * * *", cfg.Schedule.Cron)
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigYAML), []byte("source: [unclosed"), 0644))

	_, err := Load(dir)

	assert.Error(t, err)
}

func TestLoad_InvalidValue_FailsValidation(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigYAML), []byte("index:\n  backend: faiss\n"), 0644))

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.backend")
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Source.Driver = "postgres" }, "source.driver"},
		{"empty dsn", func(c *Config) { c.Source.DSN = "" }, "source.dsn"},
		{"no eligibility", func(c *Config) { c.Source.Eligibility = nil }, "source.eligibility"},
		{"blank condition", func(c *Config) { c.Source.Eligibility = []string{"  "} }, "source.eligibility[0]"},
		{"no extension", func(c *Config) { c.Adapter.Extension = "" }, "adapter.extension"},
		{"no type", func(c *Config) { c.Adapter.TypeTitle = "" }, "adapter.type_title"},
		{"negative type id", func(c *Config) { c.Adapter.TypeID = -1 }, "adapter.type_id"},
		{"zero batch", func(c *Config) { c.Adapter.BatchSize = 0 }, "adapter.batch_size"},
		{"bad extensions mode", func(c *Config) { c.Host.Extensions = "ldap" }, "host.extensions"},
		{"bad ttl", func(c *Config) { c.Host.ExtensionCacheTTL = "soon" }, "host.extension_cache_ttl"},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = "-1s" }, "watch.debounce"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_TypeIDWithoutTitle(t *testing.T) {
	cfg := NewConfig()
	cfg.Adapter.TypeTitle = ""
	cfg.Adapter.TypeID = 4

	assert.NoError(t, cfg.Validate())
}

func TestCacheTTL_ZeroDisables(t *testing.T) {
	assert.Equal(t, time.Duration(0), HostConfig{ExtensionCacheTTL: "0"}.CacheTTL())
	assert.Equal(t, time.Duration(0), HostConfig{}.CacheTTL())
}

// =============================================================================
// Persistence and project discovery
// =============================================================================

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	// Given: a modified config written as the project file
	isolateEnv(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Adapter.EncodeEntities = true
	cfg.Source.Eligibility = []string{"a.state = 1", "a.access = 1"}
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigYAML)))

	// When: loading it back
	loaded, err := Load(dir)

	// Then: values survive
	require.NoError(t, err)
	assert.True(t, loaded.Adapter.EncodeEntities)
	assert.Equal(t, cfg.Source.Eligibility, loaded.Source.Eligibility)
}

func TestFindProjectRoot(t *testing.T) {
	t.Run("finds config file in parent", func(t *testing.T) {
		root := t.TempDir()
		nested := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(nested, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, ProjectConfigYAML), nil, 0644))

		found, err := FindProjectRoot(nested)

		require.NoError(t, err)
		assert.Equal(t, root, found)
	})

	t.Run("finds git directory", func(t *testing.T) {
		root := t.TempDir()
		nested := filepath.Join(root, "src")
		require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
		require.NoError(t, os.MkdirAll(nested, 0755))

		found, err := FindProjectRoot(nested)

		require.NoError(t, err)
		assert.Equal(t, root, found)
	})
}
