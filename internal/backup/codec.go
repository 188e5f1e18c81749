// Package backup converts the full record store contents to and from a
// portable, versioned JSON envelope, and applies a validated envelope
// back to the store atomically.
//
// The inbound path is strict: raw text is parsed (JSON syntax errors are
// reported distinctly from schema errors), structurally validated
// against the envelope shape, and version-checked before anything
// touches the store. Orphaned documents inside an otherwise valid
// backup are dropped rather than failing the import.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/taskdock/taskdock/internal/model"
)

// FormatVersion is the envelope version this build produces. A consumer
// must reject (never silently coerce) any envelope with a greater
// version.
const FormatVersion = 1

// Envelope is the backup file's top-level object.
type Envelope struct {
	Version    int               `json:"version"`
	ExportedAt string            `json:"exportedAt"`
	Tasks      []*model.Task     `json:"tasks"`
	Documents  []*model.Document `json:"documents"`
	Settings   model.Settings    `json:"settings"`
}

// Reader is the read-only slice of the store the exporter needs.
type Reader interface {
	GetAllTasks(ctx context.Context) ([]*model.Task, error)
	GetAllDocuments(ctx context.Context) ([]*model.Document, error)
	GetSettings(ctx context.Context) (model.Settings, error)
}

// Export reads the full store contents and serializes them to a
// pretty-printed JSON envelope. Read-only: no side effects on the
// store. Callers must flush pending controller writes first so the
// export reflects the latest state.
func Export(ctx context.Context, st Reader) (string, error) {
	tasks, err := st.GetAllTasks(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read tasks: %w", err)
	}
	docs, err := st.GetAllDocuments(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read documents: %w", err)
	}
	settings, err := st.GetSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read settings: %w", err)
	}

	env := Envelope{
		Version:    FormatVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Tasks:      tasks,
		Documents:  docs,
		Settings:   settings,
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal backup: %w", err)
	}
	return string(data), nil
}

// ErrInvalidJSON marks backup text that is not syntactically valid
// JSON, as opposed to valid JSON with the wrong shape.
var ErrInvalidJSON = errors.New("backup is not valid JSON")

// ValidationError describes a backup that parsed but failed the shape
// or version checks. These are expected, recoverable user-input
// conditions and are reported as values, never panics.
type ValidationError struct {
	Reason string
	// TooNew is set when the envelope version exceeds FormatVersion;
	// callers surface this as an "upgrade required" condition.
	TooNew bool
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Result is the outcome of ValidateImportData.
type Result struct {
	OK     bool
	Reason string
	TooNew bool
}

// ValidateImportData structurally validates an arbitrary parsed JSON
// value against the envelope shape. Checks run in order and
// short-circuit on the first failure; the result carries a
// human-readable reason. Never panics on malformed input.
func ValidateImportData(raw any) Result {
	obj, ok := raw.(map[string]any)
	if !ok {
		return fail("backup must be a JSON object")
	}

	version, ok := obj["version"].(float64)
	if !ok {
		return fail("backup is missing a numeric \"version\"")
	}
	if int(version) > FormatVersion {
		return Result{
			Reason: fmt.Sprintf("backup version %d is newer than the supported version %d; upgrade required", int(version), FormatVersion),
			TooNew: true,
		}
	}

	tasks, ok := obj["tasks"].([]any)
	if !ok {
		return fail("\"tasks\" must be an array")
	}
	for i, raw := range tasks {
		task, ok := raw.(map[string]any)
		if !ok {
			return fail(fmt.Sprintf("tasks[%d] must be an object", i))
		}
		if _, ok := task["id"].(string); !ok {
			return fail(fmt.Sprintf("tasks[%d] is missing a string \"id\"", i))
		}
		if _, ok := task["label"].(string); !ok {
			return fail(fmt.Sprintf("tasks[%d] is missing a string \"label\"", i))
		}
		if _, ok := task["subTasks"].([]any); !ok {
			return fail(fmt.Sprintf("tasks[%d] is missing a \"subTasks\" array", i))
		}
	}

	docs, ok := obj["documents"].([]any)
	if !ok {
		return fail("\"documents\" must be an array")
	}
	for i, raw := range docs {
		doc, ok := raw.(map[string]any)
		if !ok {
			return fail(fmt.Sprintf("documents[%d] must be an object", i))
		}
		for _, field := range []string{"id", "taskId", "title"} {
			if _, ok := doc[field].(string); !ok {
				return fail(fmt.Sprintf("documents[%d] is missing a string %q", i, field))
			}
		}
	}

	settings, ok := obj["settings"].(map[string]any)
	if !ok {
		return fail("\"settings\" must be an object")
	}
	if _, ok := settings["columnById"].(map[string]any); !ok {
		return fail("settings is missing an object \"columnById\"")
	}
	mode, ok := settings["viewMode"].(string)
	if !ok || !model.ViewMode(mode).Valid() {
		return fail(fmt.Sprintf("settings has unsupported \"viewMode\" %v", settings["viewMode"]))
	}

	return Result{OK: true}
}

func fail(reason string) Result {
	return Result{Reason: reason}
}

// ParseImportFile parses backup text and validates it, returning the
// typed envelope only on full success. Syntax errors come back wrapped
// in ErrInvalidJSON; shape and version failures come back as a
// *ValidationError.
func ParseImportFile(text string) (*Envelope, error) {
	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	if res := ValidateImportData(raw); !res.OK {
		return nil, &ValidationError{Reason: res.Reason, TooNew: res.TooNew}
	}

	var env Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("backup does not match the expected shape: %v", err)}
	}

	for _, t := range env.Tasks {
		t.SetDefaults()
	}
	if env.Settings.ColumnByID == nil {
		env.Settings.ColumnByID = map[string]string{}
	}
	if env.Settings.CustomFields == nil {
		env.Settings.CustomFields = []model.CustomFieldDefinition{}
	}

	return &env, nil
}
