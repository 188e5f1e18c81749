// Package config loads taskdock configuration from YAML files.
//
// Configuration is optional: everything has a working default, and a
// missing config file is not an error. A global file at
// ~/.taskdock/config.yaml is loaded first, then a per-directory
// .taskdock/config.yaml overrides it.
package config

import (
	"path/filepath"
	"time"
)

// Config represents the full taskdock configuration.
type Config struct {
	// Data holds storage locations
	Data DataConfig `yaml:"data" mapstructure:"data"`

	// Server configures the local HTTP API
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Inbox configures the backup drop directory
	Inbox InboxConfig `yaml:"inbox" mapstructure:"inbox"`

	// Persist tunes the autosave debounce windows
	Persist PersistConfig `yaml:"persist" mapstructure:"persist"`

	// Log configures file logging
	Log LogConfig `yaml:"log" mapstructure:"log"`
}

// DataConfig holds storage locations.
type DataConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// InboxConfig configures the backup drop directory watcher.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// PersistConfig tunes the autosave debounce windows, in milliseconds.
// Zero means the built-in default.
type PersistConfig struct {
	TaskDebounceMS     int `yaml:"task_debounce_ms" mapstructure:"task_debounce_ms"`
	DocumentDebounceMS int `yaml:"document_debounce_ms" mapstructure:"document_debounce_ms"`
}

// LogConfig configures rotating file logging. An empty File logs to
// stderr only.
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// DatabasePath returns the SQLite database file path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.Dir, "taskdock.db")
}

// InboxDir returns the backup drop directory, defaulting to a
// subdirectory of the data dir.
func (c *Config) InboxDir() string {
	if c.Inbox.Dir != "" {
		return c.Inbox.Dir
	}
	return filepath.Join(c.Data.Dir, "inbox")
}

// TaskDebounce returns the task/settings autosave quiet period.
func (c *Config) TaskDebounce() time.Duration {
	if c.Persist.TaskDebounceMS > 0 {
		return time.Duration(c.Persist.TaskDebounceMS) * time.Millisecond
	}
	return 0
}

// DocumentDebounce returns the document autosave quiet period.
func (c *Config) DocumentDebounce() time.Duration {
	if c.Persist.DocumentDebounceMS > 0 {
		return time.Duration(c.Persist.DocumentDebounceMS) * time.Millisecond
	}
	return 0
}
