package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/taskdock/taskdock/internal/model"
)

// GetSetting reads one settings key into out (a pointer). Returns false
// with no error when the key is absent; out is left untouched so callers
// keep their defaults.
func (s *Store) GetSetting(ctx context.Context, key string, out any) (bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(value), out); err != nil {
		return false, fmt.Errorf("failed to unmarshal setting %s: %w", key, err)
	}
	return true, nil
}

// SetSetting upserts one settings key with a JSON-encoded value.
func (s *Store) SetSetting(key string, value any) error {
	return s.SetSettingContext(context.Background(), key, value)
}

// SetSettingContext upserts a setting with context support.
func (s *Store) SetSettingContext(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}

	query := `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.conn.ExecContext(ctx, query, key, string(data)); err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", key, err)
	}
	return nil
}

// GetSettings reads the full settings set, falling back to defaults for
// absent keys.
func (s *Store) GetSettings(ctx context.Context) (model.Settings, error) {
	settings := model.DefaultSettings()

	if _, err := s.GetSetting(ctx, model.SettingColumns, &settings.ColumnByID); err != nil {
		return settings, err
	}
	if _, err := s.GetSetting(ctx, model.SettingViewMode, &settings.ViewMode); err != nil {
		return settings, err
	}
	if _, err := s.GetSetting(ctx, model.SettingCustomFields, &settings.CustomFields); err != nil {
		return settings, err
	}

	return settings, nil
}

// insertSettings writes the full settings set inside an open transaction.
func insertSettings(ctx context.Context, tx *sql.Tx, settings model.Settings) error {
	query := `INSERT INTO settings (key, value) VALUES (?, ?)`

	pairs := []struct {
		key   string
		value any
	}{
		{model.SettingColumns, settings.ColumnByID},
		{model.SettingViewMode, settings.ViewMode},
		{model.SettingCustomFields, settings.CustomFields},
	}

	for _, p := range pairs {
		data, err := json.Marshal(p.value)
		if err != nil {
			return fmt.Errorf("failed to marshal setting %s: %w", p.key, err)
		}
		if _, err := tx.ExecContext(ctx, query, p.key, string(data)); err != nil {
			return fmt.Errorf("failed to insert setting %s: %w", p.key, err)
		}
	}

	return nil
}
