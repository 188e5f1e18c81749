package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &Config{
		Data: DataConfig{
			Dir: filepath.Join(home, ".taskdock"),
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7453",
		},
		Inbox: InboxConfig{
			Enabled: false,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

const defaultConfigTemplate = `# taskdock configuration
# All settings are optional; remove a line to use the built-in default.

data:
  # Where the database and inbox live
  dir: %s

server:
  # Listen address for the local API (serve command)
  addr: 127.0.0.1:7453

inbox:
  # Watch data/inbox for dropped backup files and import them
  enabled: false
  # dir: /path/to/inbox

persist:
  # Autosave quiet periods in milliseconds
  task_debounce_ms: 300
  document_debounce_ms: 500

log:
  # Log to a rotating file instead of stderr
  # file: /path/to/taskdock.log
  max_size_mb: 10
  max_backups: 3
  max_age_days: 30
`

// WriteDefault writes a commented starter config to path, creating the
// parent directory. Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(defaultConfigTemplate, DefaultConfig().Data.Dir)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
