// Package config loads the YAML configuration file. Defaults come first;
// a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dshills/projdex/pkg/types"
)

type Config struct {
	// DataDir holds the catalog file, the scan-history database, and the
	// log file.
	DataDir string           `yaml:"data_dir"`
	Log     LogConfig        `yaml:"log"`
	Scan    types.ScanConfig `yaml:"scan"`
	History HistoryConfig    `yaml:"history"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type HistoryConfig struct {
	Enabled *bool `yaml:"enabled"`
}

func DefaultConfig() Config {
	return Config{
		DataDir: defaultDataDir(),
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 7,
		},
		Scan: types.ScanConfig{
			IgnoredPatterns: []string{
				"node_modules", ".venv", "vendor", "target", "dist",
			},
		},
	}
}

func Load() (Config, error) {
	return LoadFrom(getConfigPath())
}

func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", configPath, err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// CatalogPath is the canonical catalog file inside the data directory.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.json")
}

// HistoryPath is the scan-history database inside the data directory.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// LogPath returns the configured log file, defaulting into the data
// directory.
func (c *Config) LogPath() string {
	if c.Log.FilePath != "" {
		return c.Log.FilePath
	}
	return filepath.Join(c.DataDir, "projdex.log")
}

// HistoryEnabled defaults to true when the config file does not say.
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "projdex", "config.yaml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "projdex", "config.yaml")
	}

	return filepath.Join(home, ".config", "projdex", "config.yaml")
}

func defaultDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "projdex")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".local", "share", "projdex")
	}

	return filepath.Join(home, ".local", "share", "projdex")
}
