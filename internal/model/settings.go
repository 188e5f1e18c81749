package model

import "fmt"

// ViewMode is the active presentation mode, persisted as a setting.
type ViewMode string

const (
	ViewList      ViewMode = "list"
	ViewColumns   ViewMode = "columns"
	ViewDocuments ViewMode = "documents"
	ViewCalendar  ViewMode = "calendar"
)

// Valid reports whether the view mode is one of the supported values.
func (v ViewMode) Valid() bool {
	switch v {
	case ViewList, ViewColumns, ViewDocuments, ViewCalendar:
		return true
	}
	return false
}

// Kanban column identifiers. Tasks with no explicit column entry are
// treated as not started.
const (
	ColumnNotStarted = "not-started"
	ColumnInProgress = "in-progress"
	ColumnDone       = "done"
)

// Well-known settings keys in the settings table.
const (
	SettingColumns      = "columnById"
	SettingViewMode     = "viewMode"
	SettingCustomFields = "customFields"
)

// CustomFieldType distinguishes free-text fields from select fields.
type CustomFieldType string

const (
	FieldText   CustomFieldType = "text"
	FieldSelect CustomFieldType = "select"
)

// CustomFieldDefinition describes one user-defined task field. Options
// is only meaningful for select fields.
type CustomFieldDefinition struct {
	ID      string          `json:"id"`
	Label   string          `json:"label"`
	Type    CustomFieldType `json:"type"`
	Options []string        `json:"options,omitempty"`
}

// Validate checks the custom field definition.
func (f *CustomFieldDefinition) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("id is required")
	}
	if f.Label == "" {
		return fmt.Errorf("label is required")
	}
	if f.Type != FieldText && f.Type != FieldSelect {
		return fmt.Errorf("type must be %q or %q (got %q)", FieldText, FieldSelect, f.Type)
	}
	return nil
}

// Settings is the full persisted settings set as it appears in the
// backup envelope.
type Settings struct {
	ColumnByID   map[string]string       `json:"columnById"`
	ViewMode     ViewMode                `json:"viewMode"`
	CustomFields []CustomFieldDefinition `json:"customFields"`
}

// DefaultSettings returns the settings used before anything has been
// persisted.
func DefaultSettings() Settings {
	return Settings{
		ColumnByID:   map[string]string{},
		ViewMode:     ViewList,
		CustomFields: []CustomFieldDefinition{},
	}
}
