// Package config loads the lorebook configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings read from ~/.lorebook/config.yaml. Every field
// has a working default; the file is optional.
type Config struct {
	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`
	// SaveDelayMS is the entry-save debounce in milliseconds.
	SaveDelayMS int `yaml:"save_delay_ms"`
	// MetaSaveDelayMS is the metadata-save debounce in milliseconds.
	MetaSaveDelayMS int `yaml:"meta_save_delay_ms"`
	// DefaultNoteDepth is the author-note depth used when the active chat
	// does not configure one.
	DefaultNoteDepth float64 `yaml:"default_note_depth"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DBPath:           filepath.Join(home, ".lorebook", "lorebook.db"),
		SaveDelayMS:      300,
		MetaSaveDelayMS:  1000,
		DefaultNoteDepth: 4,
	}
}

// DefaultPath is where Load looks when no explicit path is given.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lorebook", "config.yaml")
}

// Load reads the config file at path, layering it over the defaults. A
// missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.SaveDelayMS <= 0 {
		cfg.SaveDelayMS = 300
	}
	if cfg.MetaSaveDelayMS <= 0 {
		cfg.MetaSaveDelayMS = 1000
	}
	if cfg.DefaultNoteDepth <= 0 {
		cfg.DefaultNoteDepth = 4
	}
	return cfg, nil
}

// SaveDelay returns the entry-save debounce as a duration.
func (c Config) SaveDelay() time.Duration {
	return time.Duration(c.SaveDelayMS) * time.Millisecond
}

// MetaSaveDelay returns the metadata-save debounce as a duration.
func (c Config) MetaSaveDelay() time.Duration {
	return time.Duration(c.MetaSaveDelayMS) * time.Millisecond
}
