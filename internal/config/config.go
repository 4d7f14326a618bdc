// Package config loads geoidx configuration.
//
// Configuration is layered, later layers winning:
//  1. Hardcoded defaults (NewConfig)
//  2. User config ($XDG_CONFIG_HOME/geoidx/config.yaml)
//  3. Project config (.geoidx.yaml in the working directory)
//  4. Environment variables (GEOIDX_*)
//
// Command-line flags are applied on top by the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
)

// Rank bounds for records. Lower ranks are more significant.
const (
	MinSearchRank = 0
	MaxSearchRank = 30
)

// Compute providers.
const (
	ProviderTokens  = "tokens"
	ProviderCommand = "command"
)

// Search index backends.
const (
	BackendSQLite = "sqlite"
	BackendBleve  = "bleve"
)

// Config represents the complete geoidx configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Database    DatabaseConfig    `yaml:"database" json:"database"`
	Indexer     IndexerConfig     `yaml:"indexer" json:"indexer"`
	Compute     ComputeConfig     `yaml:"compute" json:"compute"`
	SearchIndex SearchIndexConfig `yaml:"search_index" json:"search_index"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// DatabaseConfig locates the geocoding database.
type DatabaseConfig struct {
	// Path is the SQLite database file holding places and completion state.
	Path string `yaml:"path" json:"path"`
	// BusyTimeout is how long a writer waits on a locked database (e.g. "5s").
	BusyTimeout string `yaml:"busy_timeout" json:"busy_timeout"`
	// CacheMB is the SQLite page cache size in MB.
	CacheMB int `yaml:"cache_mb" json:"cache_mb"`
}

// IndexerConfig configures the scheduler.
type IndexerConfig struct {
	// Threads is the worker pool size (default: number of CPUs).
	Threads int `yaml:"threads" json:"threads"`
	// MinRank and MaxRank bound the rank phase.
	MinRank int `yaml:"min_rank" json:"min_rank"`
	MaxRank int `yaml:"max_rank" json:"max_rank"`
	// BoundaryMinRank and BoundaryMaxRank bound the boundary phase.
	// Boundaries outside this window are not indexed by either phase.
	BoundaryMinRank int `yaml:"boundary_min_rank" json:"boundary_min_rank"`
	BoundaryMaxRank int `yaml:"boundary_max_rank" json:"boundary_max_rank"`
}

// ComputeConfig selects and tunes the per-record compute provider.
type ComputeConfig struct {
	// Provider is "tokens" (in-process) or "command" (external script).
	Provider string `yaml:"provider" json:"provider"`
	// Command is the argv for the command provider. {id} and {rank}
	// are substituted per record.
	Command []string `yaml:"command" json:"command"`
	// Timeout bounds one compute call (e.g. "30s"). Empty disables it.
	Timeout string `yaml:"timeout" json:"timeout"`
	// CacheSize is the address chain cache size of the tokens provider.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
	// Retry configures caller-side retry of transient failures.
	Retry RetryConfig `yaml:"retry" json:"retry"`
}

// RetryConfig configures retry of transient compute failures.
// MaxRetries 0 disables retry.
type RetryConfig struct {
	MaxRetries   int    `yaml:"max_retries" json:"max_retries"`
	InitialDelay string `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     string `yaml:"max_delay" json:"max_delay"`
}

// SearchIndexConfig configures where search tokens are written.
type SearchIndexConfig struct {
	// Backend is "sqlite" (FTS5, default) or "bleve".
	Backend string `yaml:"backend" json:"backend"`
	// Path overrides the index location. Empty derives it from the database path.
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	Format    string `yaml:"format" json:"format"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Database: DatabaseConfig{
			Path:        "nominatim.db",
			BusyTimeout: "5s",
			CacheMB:     64,
		},
		Indexer: IndexerConfig{
			Threads:         runtime.NumCPU(),
			MinRank:         MinSearchRank,
			MaxRank:         MaxSearchRank,
			BoundaryMinRank: 4,
			BoundaryMaxRank: 25,
		},
		Compute: ComputeConfig{
			Provider:  ProviderTokens,
			Timeout:   "30s",
			CacheSize: 10000,
			Retry: RetryConfig{
				MaxRetries:   0,
				InitialDelay: "500ms",
				MaxDelay:     "8s",
			},
		},
		SearchIndex: SearchIndexConfig{
			Backend: BackendSQLite,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/geoidx/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/geoidx/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "geoidx", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "geoidx", "config.yaml")
	}
	return filepath.Join(home, ".config", "geoidx", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// ProjectConfigPath returns the project config file in dir, preferring
// .geoidx.yaml over .geoidx.yml. Returns "" if neither exists.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{".geoidx.yaml", ".geoidx.yml"} {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// Load loads configuration for the working directory dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if projectPath := ProjectConfigPath(dir); projectPath != "" {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAML decodes path over the current values. Keys absent from the
// file keep their current value, so explicit zeros are honoured.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return geoerrors.New(geoerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// applyEnvOverrides applies GEOIDX_* environment variable overrides.
// Empty variables are ignored.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("GEOIDX_DATABASE"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("GEOIDX_COMPUTE_PROVIDER"); v != "" {
		c.Compute.Provider = v
	}
	if v := os.Getenv("GEOIDX_SEARCH_BACKEND"); v != "" {
		c.SearchIndex.Backend = v
	}
	if v := os.Getenv("GEOIDX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"GEOIDX_THREADS", &c.Indexer.Threads},
		{"GEOIDX_MIN_RANK", &c.Indexer.MinRank},
		{"GEOIDX_MAX_RANK", &c.Indexer.MaxRank},
		{"GEOIDX_COMPUTE_RETRIES", &c.Compute.Retry.MaxRetries},
	}
	for _, o := range ints {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return geoerrors.InvalidConfiguration(
				fmt.Sprintf("%s must be an integer, got %q", o.env, v), err)
		}
		*o.dst = n
	}
	return nil
}

// Validate validates the configuration and returns an InvalidConfiguration
// error describing the first problem found.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return geoerrors.InvalidConfiguration(fmt.Sprintf(format, args...), nil)
	}

	if c.Database.Path == "" {
		return invalid("database.path must be set")
	}
	if c.Database.CacheMB < 0 {
		return invalid("database.cache_mb must be non-negative, got %d", c.Database.CacheMB)
	}
	if _, err := parseDuration(c.Database.BusyTimeout); err != nil {
		return invalid("database.busy_timeout: %v", err)
	}

	ix := c.Indexer
	if ix.Threads < 1 {
		return invalid("indexer.threads must be at least 1, got %d", ix.Threads)
	}
	if err := validateRankRange("indexer.min_rank", "indexer.max_rank", ix.MinRank, ix.MaxRank); err != nil {
		return err
	}
	if err := validateRankRange("indexer.boundary_min_rank", "indexer.boundary_max_rank", ix.BoundaryMinRank, ix.BoundaryMaxRank); err != nil {
		return err
	}

	switch strings.ToLower(c.Compute.Provider) {
	case ProviderTokens:
	case ProviderCommand:
		if len(c.Compute.Command) == 0 {
			return invalid("compute.command must be set when compute.provider is 'command'")
		}
	default:
		return invalid("compute.provider must be 'tokens' or 'command', got %q", c.Compute.Provider)
	}
	if _, err := parseDuration(c.Compute.Timeout); err != nil {
		return invalid("compute.timeout: %v", err)
	}
	if c.Compute.CacheSize < 1 {
		return invalid("compute.cache_size must be at least 1, got %d", c.Compute.CacheSize)
	}
	if c.Compute.Retry.MaxRetries < 0 {
		return invalid("compute.retry.max_retries must be non-negative, got %d", c.Compute.Retry.MaxRetries)
	}
	if _, err := parseDuration(c.Compute.Retry.InitialDelay); err != nil {
		return invalid("compute.retry.initial_delay: %v", err)
	}
	if _, err := parseDuration(c.Compute.Retry.MaxDelay); err != nil {
		return invalid("compute.retry.max_delay: %v", err)
	}

	switch strings.ToLower(c.SearchIndex.Backend) {
	case BackendSQLite, BackendBleve:
	default:
		return invalid("search_index.backend must be 'sqlite' or 'bleve', got %q", c.SearchIndex.Backend)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

func validateRankRange(minName, maxName string, lo, hi int) error {
	if lo < MinSearchRank || lo > MaxSearchRank {
		return geoerrors.InvalidConfiguration(
			fmt.Sprintf("%s must be between %d and %d, got %d", minName, MinSearchRank, MaxSearchRank, lo), nil)
	}
	if hi < MinSearchRank || hi > MaxSearchRank {
		return geoerrors.InvalidConfiguration(
			fmt.Sprintf("%s must be between %d and %d, got %d", maxName, MinSearchRank, MaxSearchRank, hi), nil)
	}
	if lo > hi {
		return geoerrors.InvalidConfiguration(
			fmt.Sprintf("%s (%d) must not exceed %s (%d)", minName, lo, maxName, hi), nil)
	}
	return nil
}

// ComputeTimeout returns the per-record compute timeout. Zero means none.
func (c *Config) ComputeTimeout() time.Duration {
	d, _ := parseDuration(c.Compute.Timeout)
	return d
}

// BusyTimeout returns the database busy timeout.
func (c *Config) BusyTimeout() time.Duration {
	d, _ := parseDuration(c.Database.BusyTimeout)
	return d
}

// RetryPolicy converts the retry section into an errors.RetryConfig.
func (c *Config) RetryPolicy() geoerrors.RetryConfig {
	cfg := geoerrors.DefaultRetryConfig()
	cfg.MaxRetries = c.Compute.Retry.MaxRetries
	if d, _ := parseDuration(c.Compute.Retry.InitialDelay); d > 0 {
		cfg.InitialDelay = d
	}
	if d, _ := parseDuration(c.Compute.Retry.MaxDelay); d > 0 {
		cfg.MaxDelay = d
	}
	cfg.Jitter = true
	return cfg
}

// SearchIndexPath returns the configured search index location, or one
// derived from the database path.
func (c *Config) SearchIndexPath() string {
	if c.SearchIndex.Path != "" {
		return c.SearchIndex.Path
	}
	base := strings.TrimSuffix(c.Database.Path, filepath.Ext(c.Database.Path))
	if strings.ToLower(c.SearchIndex.Backend) == BackendBleve {
		return base + ".bleve"
	}
	return base + ".search.db"
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// parseDuration accepts "" as zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be non-negative, got %s", s)
	}
	return d, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
