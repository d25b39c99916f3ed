package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Project file names, in lookup order.
const (
	ProjectConfigYAML = ".researchsearch.yaml"
	ProjectConfigYML  = ".researchsearch.yml"
	DotEnvFile        = ".env"
	DataDirName       = ".researchsearch"
)

// Config represents the complete researchsearch configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Source   SourceConfig   `yaml:"source" json:"source"`
	Adapter  AdapterConfig  `yaml:"adapter" json:"adapter"`
	Host     HostConfig     `yaml:"host" json:"host"`
	Index    IndexConfig    `yaml:"index" json:"index"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Watch    WatchConfig    `yaml:"watch" json:"watch"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// SourceConfig describes the research projects database.
type SourceConfig struct {
	// Driver is the database/sql driver: "sqlite" (pure Go), "sqlite3" (cgo) or "mysql".
	Driver string `yaml:"driver" json:"driver"`

	// DSN is the driver-specific data source name.
	DSN string `yaml:"dsn" json:"dsn"`

	// TablePrefix replaces "#__" in table names at execution time.
	TablePrefix string `yaml:"table_prefix" json:"table_prefix"`

	// Table is the projects table, usually written with the "#__" placeholder.
	Table string `yaml:"table" json:"table"`

	// Eligibility lists SQL conditions a row must satisfy to be indexed.
	// The legacy programme-of-work schema uses ["a.status_id > 0", "a.included = 1"].
	Eligibility []string `yaml:"eligibility" json:"eligibility"`
}

// AdapterConfig holds the constants the host injects into the adapter.
type AdapterConfig struct {
	Context   string `yaml:"context" json:"context"`
	Extension string `yaml:"extension" json:"extension"`
	TypeTitle string `yaml:"type_title" json:"type_title"`

	// TypeID of 0 asks the index backend's type registry for an id.
	TypeID int    `yaml:"type_id" json:"type_id"`
	Mime   string `yaml:"mime" json:"mime"`
	Layout string `yaml:"layout" json:"layout"`

	RoutePrefix string `yaml:"route_prefix" json:"route_prefix"`

	// Enabled gates every adapter call made by the host driver.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// EncodeEntities rewrites multi-byte characters in summaries as numeric entities.
	EncodeEntities bool `yaml:"encode_entities" json:"encode_entities"`

	// BatchSize is the page size the driver requests from GetItems.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// HostConfig configures the host capabilities the adapter consumes.
type HostConfig struct {
	// Extensions is "static" (EnabledExtensions list) or "database" (#__extensions table).
	Extensions        string   `yaml:"extensions" json:"extensions"`
	EnabledExtensions []string `yaml:"enabled_extensions" json:"enabled_extensions"`

	// ExtensionCacheTTL bounds how long an enabled/disabled lookup is reused ("0" disables caching).
	ExtensionCacheTTL string `yaml:"extension_cache_ttl" json:"extension_cache_ttl"`

	// DefaultLanguage is assigned to items whose row carries no language ("*" means all).
	DefaultLanguage string `yaml:"default_language" json:"default_language"`
}

// IndexConfig selects the search index backend.
type IndexConfig struct {
	// Backend is "sqlite" (FTS5, default) or "bleve".
	Backend string `yaml:"backend" json:"backend"`

	// Dir holds the index files; relative paths resolve against the project root.
	Dir string `yaml:"dir" json:"dir"`
}

// ScheduleConfig configures periodic reindexing.
type ScheduleConfig struct {
	Cron       string `yaml:"cron" json:"cron"`
	RunOnStart bool   `yaml:"run_on_start" json:"run_on_start"`
}

// WatchConfig configures reindexing on source database changes.
type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `yaml:"compress" json:"compress"`
	Stderr     bool   `yaml:"stderr" json:"stderr"`
}

// NewConfig creates a new Config with defaults matching the research projects component.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Source: SourceConfig{
			Driver:      "sqlite",
			DSN:         "research.db",
			TablePrefix: "jos_",
			Table:       "#__researchprojects",
			Eligibility: []string{"a.state = 1"},
		},
		Adapter: AdapterConfig{
			Context:     "ResearchSearch",
			Extension:   "com_researchprojects",
			TypeTitle:   "ResearchSearch",
			TypeID:      0,
			Mime:        "",
			Layout:      "",
			RoutePrefix: "/research/projects/",
			Enabled:     true,
			BatchSize:   50,
		},
		Host: HostConfig{
			Extensions:        "static",
			EnabledExtensions: []string{"com_researchprojects"},
			ExtensionCacheTTL: "30s",
			DefaultLanguage:   "*",
		},
		Index: IndexConfig{
			Backend: "sqlite",
			Dir:     filepath.Join(DataDirName, "index"),
		},
		Schedule: ScheduleConfig{
			Cron:       "0 */6 * * *",
			RunOnStart: true,
		},
		Watch: WatchConfig{
			Debounce: "2s",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
			Stderr:     true,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/researchsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/researchsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "researchsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "researchsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "researchsearch", "config.yaml")
}

// Load loads configuration for the project rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/researchsearch/config.yaml)
//  3. Project config (.researchsearch.yaml in project root)
//  4. .env in the project root (never overrides variables already set)
//  5. Environment variables (RESEARCHSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if envPath := filepath.Join(dir, DotEnvFile); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.resolvePaths(dir)
	return cfg, nil
}

// loadFromFile attempts to load configuration from .researchsearch.yaml or .researchsearch.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ProjectConfigYAML)
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ProjectConfigYML)
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML decodes a YAML file over the current values.
// Keys absent from the file keep their current value; lists are replaced.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies RESEARCHSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RESEARCHSEARCH_SOURCE_DRIVER"); v != "" {
		c.Source.Driver = v
	}
	if v := os.Getenv("RESEARCHSEARCH_SOURCE_DSN"); v != "" {
		c.Source.DSN = v
	}
	if v := os.Getenv("RESEARCHSEARCH_TABLE_PREFIX"); v != "" {
		c.Source.TablePrefix = v
	}
	if v := os.Getenv("RESEARCHSEARCH_ADAPTER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Adapter.Enabled = b
		}
	}
	if v := os.Getenv("RESEARCHSEARCH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Adapter.BatchSize = n
		}
	}
	if v := os.Getenv("RESEARCHSEARCH_EXTENSIONS"); v != "" {
		c.Host.Extensions = v
	}
	if v := os.Getenv("RESEARCHSEARCH_INDEX_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := os.Getenv("RESEARCHSEARCH_INDEX_DIR"); v != "" {
		c.Index.Dir = v
	}
	if v := os.Getenv("RESEARCHSEARCH_SCHEDULE_CRON"); v != "" {
		c.Schedule.Cron = v
	}
	if v := os.Getenv("RESEARCHSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RESEARCHSEARCH_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// resolvePaths makes relative filesystem paths absolute against the project root.
func (c *Config) resolvePaths(dir string) {
	if c.Index.Dir != "" && !filepath.IsAbs(c.Index.Dir) {
		c.Index.Dir = filepath.Join(dir, c.Index.Dir)
	}
	if c.Logging.File != "" && !filepath.IsAbs(c.Logging.File) {
		c.Logging.File = filepath.Join(dir, c.Logging.File)
	}
	if isSQLiteDriver(c.Source.Driver) && c.Source.DSN != ":memory:" &&
		!strings.HasPrefix(c.Source.DSN, "file:") && !filepath.IsAbs(c.Source.DSN) {
		c.Source.DSN = filepath.Join(dir, c.Source.DSN)
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	validDrivers := map[string]bool{"sqlite": true, "sqlite3": true, "mysql": true}
	if !validDrivers[c.Source.Driver] {
		return fmt.Errorf("source.driver must be 'sqlite', 'sqlite3' or 'mysql', got %q", c.Source.Driver)
	}
	if c.Source.DSN == "" {
		return fmt.Errorf("source.dsn is required")
	}
	if c.Source.Table == "" {
		return fmt.Errorf("source.table is required")
	}
	if len(c.Source.Eligibility) == 0 {
		return fmt.Errorf("source.eligibility must list at least one condition")
	}
	for i, cond := range c.Source.Eligibility {
		if strings.TrimSpace(cond) == "" {
			return fmt.Errorf("source.eligibility[%d] is empty", i)
		}
	}

	if c.Adapter.Extension == "" {
		return fmt.Errorf("adapter.extension is required")
	}
	if c.Adapter.TypeTitle == "" && c.Adapter.TypeID == 0 {
		return fmt.Errorf("adapter.type_title is required when adapter.type_id is 0")
	}
	if c.Adapter.TypeID < 0 {
		return fmt.Errorf("adapter.type_id must be non-negative, got %d", c.Adapter.TypeID)
	}
	if c.Adapter.RoutePrefix == "" {
		return fmt.Errorf("adapter.route_prefix is required")
	}
	if c.Adapter.BatchSize <= 0 {
		return fmt.Errorf("adapter.batch_size must be positive, got %d", c.Adapter.BatchSize)
	}

	validModes := map[string]bool{"static": true, "database": true}
	if !validModes[c.Host.Extensions] {
		return fmt.Errorf("host.extensions must be 'static' or 'database', got %q", c.Host.Extensions)
	}
	if _, err := parseDuration(c.Host.ExtensionCacheTTL); err != nil {
		return fmt.Errorf("host.extension_cache_ttl: %w", err)
	}

	validBackends := map[string]bool{"sqlite": true, "bleve": true}
	if !validBackends[c.Index.Backend] {
		return fmt.Errorf("index.backend must be 'sqlite' or 'bleve', got %q", c.Index.Backend)
	}
	if c.Index.Dir == "" {
		return fmt.Errorf("index.dir is required")
	}

	if _, err := parseDuration(c.Watch.Debounce); err != nil {
		return fmt.Errorf("watch.debounce: %w", err)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation limits must be non-negative")
	}

	return nil
}

// CacheTTL returns the parsed extension cache TTL (0 when caching is disabled).
func (h HostConfig) CacheTTL() time.Duration {
	d, _ := parseDuration(h.ExtensionCacheTTL)
	return d
}

// DebounceWindow returns the parsed watch debounce window.
func (w WatchConfig) DebounceWindow() time.Duration {
	d, _ := parseDuration(w.Debounce)
	return d
}

// IsSQLite reports whether the source uses one of the SQLite drivers.
func (s SourceConfig) IsSQLite() bool {
	return isSQLiteDriver(s.Driver)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FindProjectRoot finds the project root directory.
// It looks for a .researchsearch.yaml/.yml file or a .git directory by walking up the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if fileExists(filepath.Join(currentDir, ProjectConfigYAML)) ||
			fileExists(filepath.Join(currentDir, ProjectConfigYML)) {
			return currentDir, nil
		}
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// parseDuration accepts Go durations, with "" and "0" meaning zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must be non-negative, got %s", s)
	}
	return d, nil
}

func isSQLiteDriver(driver string) bool {
	return driver == "sqlite" || driver == "sqlite3"
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
