package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Load merges configuration from the global and per-directory files on
// top of the defaults. Missing files are fine; a file that exists but
// fails to parse is an error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}
	if err := loadFile(filepath.Join(home, ".taskdock", "config.yaml"), cfg); err != nil {
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return cfg, nil
	}
	if err := loadFile(filepath.Join(cwd, ".taskdock", "config.yaml"), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile loads a single explicit config file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return nil
}

// GlobalConfigPath returns the path of the global config file.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".taskdock", "config.yaml")
}
