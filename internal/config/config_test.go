// Package config provides configuration management for engram storage.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var envKeys = []string{
	"ENGRAM_STORAGE_ADAPTER",
	"ENGRAM_DATABASE_URL",
	"ENGRAM_STORAGE_DIR",
	"ENGRAM_DB_PATH",
	"ENGRAM_LOG_LEVEL",
	"ENGRAM_MAX_CONNS",
	"ENGRAM_WATCH_STORAGE",
}

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir string
}

func (s *ConfigSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.T().Setenv("HOME", s.tempDir)
	for _, key := range envKeys {
		s.T().Setenv(key, "")
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) writeSettings(name, content string) {
	dir := filepath.Join(s.tempDir, ".engram")
	s.Require().NoError(os.MkdirAll(dir, 0750))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultAdapter, cfg.Adapter)
	s.Equal(DefaultMaxConns, cfg.MaxConns)
	s.Equal(DefaultLogLevel, cfg.LogLevel)
	s.Equal(DBPath(), cfg.DBPath)
	s.Equal(filepath.Join(DataDir(), "store"), cfg.StorageDir)
	s.Empty(cfg.DatabaseURL)
	s.False(cfg.WatchStorage)
}

// TestPaths tests the data directory layout.
func (s *ConfigSuite) TestPaths() {
	s.Equal(filepath.Join(s.tempDir, ".engram"), DataDir())
	s.Contains(DBPath(), "engram.db")
	s.Contains(SettingsPath(), "settings.json")
}

// TestEnsureAll tests full initialization.
func (s *ConfigSuite) TestEnsureAll() {
	s.Require().NoError(EnsureAll())

	info, err := os.Stat(DataDir())
	s.Require().NoError(err)
	s.True(info.IsDir())
	_, err = os.Stat(SettingsPath())
	s.NoError(err)

	// Second call keeps the existing file
	s.NoError(EnsureSettings())

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(DefaultAdapter, cfg.Adapter)
}

// TestLoad_TableDriven tests configuration loading with various scenarios.
func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name            string
		file            string
		content         string
		expectedAdapter string
		expectedURL     string
		expectedConns   int
	}{
		{
			name:            "no settings file",
			expectedAdapter: DefaultAdapter,
			expectedConns:   DefaultMaxConns,
		},
		{
			name:            "custom adapter",
			file:            "settings.json",
			content:         `{"ENGRAM_STORAGE_ADAPTER": "file"}`,
			expectedAdapter: "file",
			expectedConns:   DefaultMaxConns,
		},
		{
			name:            "shared sql",
			file:            "settings.json",
			content:         `{"ENGRAM_STORAGE_ADAPTER": "shared-sql", "ENGRAM_DATABASE_URL": "postgres://u@h/db", "ENGRAM_MAX_CONNS": 12}`,
			expectedAdapter: "shared-sql",
			expectedURL:     "postgres://u@h/db",
			expectedConns:   12,
		},
		{
			name:            "yaml settings",
			file:            "settings.yaml",
			content:         "ENGRAM_STORAGE_ADAPTER: file\nENGRAM_MAX_CONNS: 2\n",
			expectedAdapter: "file",
			expectedConns:   2,
		},
		{
			name:            "non-positive pool size falls back",
			file:            "settings.json",
			content:         `{"ENGRAM_MAX_CONNS": 0}`,
			expectedAdapter: DefaultAdapter,
			expectedConns:   DefaultMaxConns,
		},
		{
			name:            "invalid JSON returns defaults",
			file:            "settings.json",
			content:         `{invalid}`,
			expectedAdapter: DefaultAdapter,
			expectedConns:   DefaultMaxConns,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.T().Setenv("HOME", s.T().TempDir())
			s.tempDir = os.Getenv("HOME")
			if tt.file != "" {
				s.writeSettings(tt.file, tt.content)
			}

			cfg, err := Load()
			s.Require().NoError(err)
			s.Equal(tt.expectedAdapter, cfg.Adapter)
			s.Equal(tt.expectedURL, cfg.DatabaseURL)
			s.Equal(tt.expectedConns, cfg.MaxConns)
		})
	}
}

// TestLoad_EnvOverrides tests that environment variables win over the file.
func (s *ConfigSuite) TestLoad_EnvOverrides() {
	s.writeSettings("settings.json", `{"ENGRAM_STORAGE_ADAPTER": "file", "ENGRAM_MAX_CONNS": 3}`)

	s.T().Setenv("ENGRAM_STORAGE_ADAPTER", "shared-sql")
	s.T().Setenv("ENGRAM_DATABASE_URL", "postgres://env@host/db")
	s.T().Setenv("ENGRAM_STORAGE_DIR", "/srv/engram")
	s.T().Setenv("ENGRAM_DB_PATH", "/srv/engram.db")
	s.T().Setenv("ENGRAM_LOG_LEVEL", "debug")
	s.T().Setenv("ENGRAM_MAX_CONNS", "not-a-number")
	s.T().Setenv("ENGRAM_WATCH_STORAGE", "true")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("shared-sql", cfg.Adapter)
	s.Equal("postgres://env@host/db", cfg.DatabaseURL)
	s.Equal("/srv/engram", cfg.StorageDir)
	s.Equal("/srv/engram.db", cfg.DBPath)
	s.Equal("debug", cfg.LogLevel)
	s.Equal(3, cfg.MaxConns)
	s.True(cfg.WatchStorage)
}

// TestGet tests the global config getter.
func TestGet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := Get()
	require.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.Adapter)
	assert.Greater(t, cfg.MaxConns, 0)
	assert.Same(t, cfg, Get())
}
