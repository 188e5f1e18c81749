package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Data.Dir == "" {
		t.Error("Expected a default data dir")
	}
	if cfg.Server.Addr != "127.0.0.1:7453" {
		t.Errorf("Expected default addr '127.0.0.1:7453', got '%s'", cfg.Server.Addr)
	}
	if cfg.Inbox.Enabled {
		t.Error("Expected inbox to be disabled by default")
	}
	if !strings.HasSuffix(cfg.DatabasePath(), "taskdock.db") {
		t.Errorf("Unexpected database path '%s'", cfg.DatabasePath())
	}
	if cfg.InboxDir() != filepath.Join(cfg.Data.Dir, "inbox") {
		t.Errorf("Unexpected inbox dir '%s'", cfg.InboxDir())
	}
}

func TestDebounceOverrides(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.TaskDebounce() != 0 {
		t.Error("Expected zero task debounce override by default")
	}

	cfg.Persist.TaskDebounceMS = 100
	cfg.Persist.DocumentDebounceMS = 250
	if cfg.TaskDebounce() != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", cfg.TaskDebounce())
	}
	if cfg.DocumentDebounce() != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", cfg.DocumentDebounce())
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, "config.yaml")
	content := `
data:
  dir: /tmp/custom
server:
  addr: 127.0.0.1:9000
inbox:
  enabled: true
persist:
  task_debounce_ms: 150
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Data.Dir != "/tmp/custom" {
		t.Errorf("Expected data dir '/tmp/custom', got '%s'", cfg.Data.Dir)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Expected addr '127.0.0.1:9000', got '%s'", cfg.Server.Addr)
	}
	if !cfg.Inbox.Enabled {
		t.Error("Expected inbox enabled")
	}
	if cfg.TaskDebounce() != 150*time.Millisecond {
		t.Errorf("Expected 150ms task debounce, got %v", cfg.TaskDebounce())
	}
	// Untouched keys keep their defaults.
	if cfg.Log.MaxSizeMB != 10 {
		t.Errorf("Expected default log size 10, got %d", cfg.Log.MaxSizeMB)
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(":\n  - not yaml"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	path := filepath.Join(tmpDir, "sub", "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if !strings.Contains(string(content), "task_debounce_ms") {
		t.Error("Expected debounce keys in template")
	}

	// The template must load back cleanly.
	if _, err := LoadFile(path); err != nil {
		t.Fatalf("Template does not parse: %v", err)
	}

	// Refuses to overwrite.
	if err := WriteDefault(path); err == nil {
		t.Error("Expected error when config already exists")
	}
}
