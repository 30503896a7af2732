// Package config provides configuration management for engram storage.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAdapter is the zero-configuration storage backend.
	DefaultAdapter = "embedded-sql"
	// DefaultMaxConns bounds the connection pool of SQL backends.
	DefaultMaxConns = 4
	// DefaultLogLevel is the zerolog level used when none is configured.
	DefaultLogLevel = "info"

	dataDirName      = ".engram"
	settingsFileName = "settings.json"
	settingsYAMLName = "settings.yaml"
	dbFileName       = "engram.db"
	storeDirName     = "store"
)

// Config holds engram storage settings. Keys match settings.json and the
// environment variables that override it.
type Config struct {
	Adapter      string `json:"ENGRAM_STORAGE_ADAPTER" yaml:"ENGRAM_STORAGE_ADAPTER"`
	DatabaseURL  string `json:"ENGRAM_DATABASE_URL" yaml:"ENGRAM_DATABASE_URL"`
	StorageDir   string `json:"ENGRAM_STORAGE_DIR" yaml:"ENGRAM_STORAGE_DIR"`
	DBPath       string `json:"ENGRAM_DB_PATH" yaml:"ENGRAM_DB_PATH"`
	LogLevel     string `json:"ENGRAM_LOG_LEVEL" yaml:"ENGRAM_LOG_LEVEL"`
	MaxConns     int    `json:"ENGRAM_MAX_CONNS" yaml:"ENGRAM_MAX_CONNS"`
	WatchStorage bool   `json:"ENGRAM_WATCH_STORAGE" yaml:"ENGRAM_WATCH_STORAGE"`
}

var (
	global     *Config
	globalOnce sync.Once
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Adapter:    DefaultAdapter,
		StorageDir: filepath.Join(DataDir(), storeDirName),
		DBPath:     DBPath(),
		LogLevel:   DefaultLogLevel,
		MaxConns:   DefaultMaxConns,
	}
}

// DataDir returns the engram data directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// DBPath returns the default embedded database path.
func DBPath() string {
	return filepath.Join(DataDir(), dbFileName)
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), settingsFileName)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll creates the data directory and the default settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads settings from disk and applies environment overrides.
// A missing or malformed settings file yields the defaults.
func Load() (*Config, error) {
	cfg := Default()

	path, data, err := readSettings()
	if err != nil {
		return nil, err
	}
	if data != nil {
		loaded := *cfg
		if err := decode(path, data, &loaded); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Ignoring malformed settings file")
		} else {
			cfg = &loaded
		}
	}

	applyEnv(cfg)
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultMaxConns
	}
	return cfg, nil
}

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load settings, using defaults")
			cfg = Default()
			applyEnv(cfg)
		}
		global = cfg
	})
	return global
}

// readSettings returns the first settings file found, JSON before YAML.
func readSettings() (string, []byte, error) {
	for _, name := range []string{settingsFileName, settingsYAMLName} {
		path := filepath.Join(DataDir(), name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return path, nil, err
		}
		return path, data, nil
	}
	return "", nil, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// applyEnv overrides cfg with ENGRAM_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ENGRAM_STORAGE_ADAPTER"); v != "" {
		cfg.Adapter = v
	}
	if v := os.Getenv("ENGRAM_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("ENGRAM_STORAGE_DIR"); v != "" {
		cfg.StorageDir = v
	}
	if v := os.Getenv("ENGRAM_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ENGRAM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ENGRAM_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConns = n
		}
	}
	if v := os.Getenv("ENGRAM_WATCH_STORAGE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.WatchStorage = b
		}
	}
}
