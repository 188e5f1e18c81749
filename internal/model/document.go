package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document is a rich-text note referencing exactly one Task. Content is
// an opaque JSON node tree produced by the editor; the persistence layer
// never interprets it.
//
// Invariant: TaskID must reference an existing Task. Deleting a Task
// cascades to its documents; the store must never hold an orphan.
type Document struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"taskId"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content,omitempty"`
	CreatedAt int64           `json:"createdAt"` // epoch milliseconds
	UpdatedAt int64           `json:"updatedAt"` // epoch milliseconds
}

// NewDocument creates a Document for the given task with a fresh ID and
// both timestamps set to now.
func NewDocument(taskID, title string) *Document {
	now := time.Now().UnixMilli()
	return &Document{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks that the Document has valid field values.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.TaskID == "" {
		return fmt.Errorf("taskId is required")
	}
	if d.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// Touch sets UpdatedAt to the current time. Called on every content or
// title mutation.
func (d *Document) Touch() {
	d.UpdatedAt = time.Now().UnixMilli()
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := *d
	if d.Content != nil {
		c.Content = make(json.RawMessage, len(d.Content))
		copy(c.Content, d.Content)
	}
	return &c
}
