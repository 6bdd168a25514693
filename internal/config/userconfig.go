// Package config loads the user configuration file and validates run options.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	dark "github.com/thiagokokada/dark-mode-go"
)

const (
	// UserConfigFileName is the TOML file inside the base dir.
	UserConfigFileName = "config.toml"
	// DefaultDatabaseName is the run database file inside the base dir.
	DefaultDatabaseName = "runs.db"
	// HomeEnv overrides the base dir.
	HomeEnv = "PGREPWC_HOME"
)

// UserConfig mirrors ~/.pgrepwc/config.toml.
type UserConfig struct {
	// Theme is "dark", "light" or "system"
	Theme string `toml:"theme"`

	Search  SearchSettings  `toml:"search"`
	History HistorySettings `toml:"history"`
	Logs    LogSettings     `toml:"logs"`
	Watch   WatchSettings   `toml:"watch"`
}

// SearchSettings holds run defaults. CLI flags override them.
type SearchSettings struct {
	// Parallelism is the default worker count (default: 0, scan inline)
	Parallelism int `toml:"parallelism"`

	// ProgressInterval is the default progress interval in seconds (default: 0, off)
	ProgressInterval float64 `toml:"progress_interval"`

	// IndexConcurrency bounds how many files are indexed at once (default: 4)
	IndexConcurrency int `toml:"index_concurrency"`

	// MaxBytesPerSec throttles reads across all workers (default: 0, unlimited)
	MaxBytesPerSec int `toml:"max_bytes_per_sec"`
}

// HistorySettings controls the run database.
type HistorySettings struct {
	// RecordRuns stores every run in the SQLite run database
	RecordRuns bool `toml:"record_runs"`

	// Database is the database path (default: <base dir>/runs.db)
	Database string `toml:"database"`
}

// LogSettings configures the debug log.
type LogSettings struct {
	// Level is "debug", "info" (default), "warn" or "error"
	Level string `toml:"level"`

	// Format is "json" (default) or "text"
	Format string `toml:"format"`

	// MaxSizeMB is the debug.log size before rotation (default: 10)
	MaxSizeMB int `toml:"max_size_mb"`

	// Backups is the number of rotated files to keep (default: 3)
	Backups int `toml:"backups"`

	// RetentionDays is how long rotated files are kept (default: 7)
	RetentionDays int `toml:"retention_days"`

	Compress bool `toml:"compress"`

	// RingBufferKB is the in-memory tail dumped on SIGUSR1 (default: 1024)
	RingBufferKB int `toml:"ring_buffer_kb"`

	// AggregateIntervalSecs is the event summary interval (default: 10)
	AggregateIntervalSecs int `toml:"aggregate_interval_secs"`

	PprofEnabled bool   `toml:"pprof_enabled"`
	PprofAddr    string `toml:"pprof_addr"`
}

// WatchSettings configures --watch.
type WatchSettings struct {
	// DebounceMs coalesces bursts of file events (default: 250)
	DebounceMs int `toml:"debounce_ms"`
}

var defaultUserConfig = UserConfig{Theme: "dark"}

var (
	userConfigCache   *UserConfig
	userConfigCacheMu sync.RWMutex
)

// GetBaseDir returns $PGREPWC_HOME or ~/.pgrepwc.
func GetBaseDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pgrepwc"), nil
}

// GetUserConfigPath returns the path to config.toml.
func GetUserConfigPath() (string, error) {
	dir, err := GetBaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, UserConfigFileName), nil
}

// LoadUserConfig reads config.toml once and caches it. A missing file yields
// the defaults. A parse error is returned together with the defaults.
func LoadUserConfig() (*UserConfig, error) {
	userConfigCacheMu.RLock()
	if userConfigCache != nil {
		defer userConfigCacheMu.RUnlock()
		return userConfigCache, nil
	}
	userConfigCacheMu.RUnlock()

	userConfigCacheMu.Lock()
	defer userConfigCacheMu.Unlock()

	if userConfigCache != nil {
		return userConfigCache, nil
	}

	configPath, err := GetUserConfigPath()
	if err != nil {
		userConfigCache = &defaultUserConfig
		return userConfigCache, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		userConfigCache = &defaultUserConfig
		return userConfigCache, nil
	}

	var cfg UserConfig
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		userConfigCache = &defaultUserConfig
		return userConfigCache, fmt.Errorf("config.toml parse error: %w", err)
	}

	userConfigCache = &cfg
	return userConfigCache, nil
}

// ClearUserConfigCache makes the next LoadUserConfig read from disk.
func ClearUserConfigCache() {
	userConfigCacheMu.Lock()
	userConfigCache = nil
	userConfigCacheMu.Unlock()
}

// SaveUserConfig writes cfg to config.toml via a temp file and rename.
func SaveUserConfig(cfg *UserConfig) error {
	configPath, err := GetUserConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# pgrepwc configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}

	ClearUserConfigCache()
	return nil
}

// EffectiveUserConfig returns the loaded config with every default spelled
// out, as written by `pgrepwc config init`.
func EffectiveUserConfig() *UserConfig {
	return &UserConfig{
		Theme:   GetTheme(),
		Search:  GetSearchSettings(),
		History: HistorySettings{RecordRuns: GetHistorySettings().RecordRuns},
		Logs:    GetLogSettings(),
		Watch:   GetWatchSettings(),
	}
}

// GetTheme returns the configured theme, defaulting to "dark".
func GetTheme() string {
	cfg, err := LoadUserConfig()
	if err != nil || cfg == nil {
		return "dark"
	}
	switch cfg.Theme {
	case "dark", "light", "system":
		return cfg.Theme
	default:
		return "dark"
	}
}

// ResolveTheme maps the configured theme to "dark" or "light", asking the OS
// when the theme is "system". Detection failures fall back to "dark".
func ResolveTheme() string {
	theme := GetTheme()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil {
		return "dark"
	}
	if isDark {
		return "dark"
	}
	return "light"
}

// GetSearchSettings returns search defaults with defaults applied.
func GetSearchSettings() SearchSettings {
	s := SearchSettings{}
	if cfg, err := LoadUserConfig(); err == nil && cfg != nil {
		s = cfg.Search
	}
	if s.Parallelism < 0 {
		s.Parallelism = 0
	}
	if s.ProgressInterval < 0 {
		s.ProgressInterval = 0
	}
	if s.IndexConcurrency <= 0 {
		s.IndexConcurrency = 4
	}
	if s.MaxBytesPerSec < 0 {
		s.MaxBytesPerSec = 0
	}
	return s
}

// GetHistorySettings returns run database settings with the database path
// resolved.
func GetHistorySettings() HistorySettings {
	s := HistorySettings{}
	if cfg, err := LoadUserConfig(); err == nil && cfg != nil {
		s = cfg.History
	}
	if s.Database == "" {
		if dir, err := GetBaseDir(); err == nil {
			s.Database = filepath.Join(dir, DefaultDatabaseName)
		}
	}
	return s
}

// GetLogSettings returns log settings with defaults applied.
func GetLogSettings() LogSettings {
	s := LogSettings{}
	if cfg, err := LoadUserConfig(); err == nil && cfg != nil {
		s = cfg.Logs
	}
	switch s.Level {
	case "debug", "info", "warn", "error":
	default:
		s.Level = "info"
	}
	if s.Format != "text" {
		s.Format = "json"
	}
	if s.MaxSizeMB <= 0 {
		s.MaxSizeMB = 10
	}
	if s.Backups <= 0 {
		s.Backups = 3
	}
	if s.RetentionDays <= 0 {
		s.RetentionDays = 7
	}
	if s.RingBufferKB <= 0 {
		s.RingBufferKB = 1024
	}
	if s.AggregateIntervalSecs <= 0 {
		s.AggregateIntervalSecs = 10
	}
	return s
}

// GetWatchSettings returns watch settings with defaults applied.
func GetWatchSettings() WatchSettings {
	s := WatchSettings{}
	if cfg, err := LoadUserConfig(); err == nil && cfg != nil {
		s = cfg.Watch
	}
	if s.DebounceMs <= 0 {
		s.DebounceMs = 250
	}
	return s
}
