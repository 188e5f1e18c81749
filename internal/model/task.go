// Package model provides the data structures shared by the store,
// persistence controllers, and backup codec.
//
// Tasks own their sub-tasks; documents reference (never own) a task via
// TaskID. All JSON field names match the on-disk backup format, so these
// structs serialize directly into the backup envelope.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task is a user-created to-do item. The ID is generated once at creation
// and never reused. SubTasks ordering is meaningful and persisted.
type Task struct {
	ID           string            `json:"id"`
	Label        string            `json:"label"`
	Link         string            `json:"link,omitempty"`
	DueDate      string            `json:"dueDate,omitempty"` // YYYY-MM-DD, local calendar date
	CustomFields map[string]string `json:"customFields,omitempty"`
	SubTasks     []SubTask         `json:"subTasks"`
}

// SubTask is a checklist item owned by exactly one Task.
type SubTask struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

// NewTask creates a Task with a fresh ID and an empty sub-task list.
func NewTask(label string) *Task {
	return &Task{
		ID:       uuid.NewString(),
		Label:    label,
		SubTasks: []SubTask{},
	}
}

// NewSubTask creates a SubTask with a fresh ID.
func NewSubTask(label string) SubTask {
	return SubTask{
		ID:    uuid.NewString(),
		Label: label,
	}
}

// Validate checks that the Task has valid field values.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Label == "" {
		return fmt.Errorf("label is required")
	}
	if t.DueDate != "" {
		if _, err := time.ParseInLocation("2006-01-02", t.DueDate, time.Local); err != nil {
			return fmt.Errorf("dueDate must be YYYY-MM-DD (got %q)", t.DueDate)
		}
	}
	seen := make(map[string]bool, len(t.SubTasks))
	for _, st := range t.SubTasks {
		if st.ID == "" {
			return fmt.Errorf("sub-task id is required")
		}
		if seen[st.ID] {
			return fmt.Errorf("duplicate sub-task id %q", st.ID)
		}
		seen[st.ID] = true
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.SubTasks == nil {
		t.SubTasks = []SubTask{}
	}
}

// SubTask returns the sub-task with the given id, or nil if absent.
func (t *Task) SubTask(id string) *SubTask {
	for i := range t.SubTasks {
		if t.SubTasks[i].ID == id {
			return &t.SubTasks[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the task. Controllers hand copies to
// callers so in-memory state can't be mutated behind the debounce timer.
func (t *Task) Clone() *Task {
	c := *t
	if t.CustomFields != nil {
		c.CustomFields = make(map[string]string, len(t.CustomFields))
		for k, v := range t.CustomFields {
			c.CustomFields[k] = v
		}
	}
	c.SubTasks = make([]SubTask, len(t.SubTasks))
	copy(c.SubTasks, t.SubTasks)
	return &c
}

// CloneTasks deep-copies a task slice.
func CloneTasks(tasks []*Task) []*Task {
	out := make([]*Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
