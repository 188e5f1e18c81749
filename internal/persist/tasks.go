package persist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/taskdock/taskdock/internal/model"
)

// ErrNotHydrated is returned by mutations attempted before Hydrate has
// completed. Unhydrated state is never authoritative.
var ErrNotHydrated = errors.New("controller not hydrated")

// Debounce slice keys for the task controller. Each slice has its own
// timer; a mutation to a slice restarts only that slice's timer.
const (
	sliceTasks    = "tasks"
	sliceColumns  = "columnById"
	sliceViewMode = "viewMode"
	sliceFields   = "customFields"
)

// TaskDebounce is the quiet period for task and settings writes.
const TaskDebounce = 300 * time.Millisecond

// TaskConfig configures a TaskController.
type TaskConfig struct {
	// Debounce overrides the write quiet period (default 300ms).
	Debounce time.Duration

	// Logger for persistence warnings (default: stderr logger).
	Logger *log.Logger
}

// documentCascade is what the task controller needs from the document
// controller to cascade task deletion.
type documentCascade interface {
	DeleteForTask(taskID string)
}

// TaskController owns the in-memory task list and the persisted
// settings (columnById, viewMode, customFields). Mutations apply to
// memory synchronously and schedule debounced snapshot writes; the
// in-memory state is always the authoritative full set.
type TaskController struct {
	store  Storage
	coord  *Coordinator
	logger *log.Logger
	sched  *Scheduler

	mu        sync.Mutex
	hydration HydrationState
	tasks     []*model.Task
	columns   map[string]string
	viewMode  model.ViewMode
	fields    []model.CustomFieldDefinition

	docs documentCascade
}

// NewTaskController creates a task controller over the given store and
// import coordinator. Call Hydrate before using it.
func NewTaskController(store Storage, coord *Coordinator, cfg TaskConfig) *TaskController {
	if cfg.Debounce <= 0 {
		cfg.Debounce = TaskDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[persist] ", log.LstdFlags)
	}

	c := &TaskController{
		store:    store,
		coord:    coord,
		logger:   cfg.Logger,
		columns:  map[string]string{},
		viewMode: model.ViewList,
		fields:   []model.CustomFieldDefinition{},
	}
	c.sched = NewScheduler(cfg.Debounce, c.write)
	return c
}

// AttachDocuments wires the document controller for cascade deletes.
func (c *TaskController) AttachDocuments(docs documentCascade) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = docs
}

// Hydrate loads the store contents into memory. The controller becomes
// Ready exactly once, even when the load fails; a failed load yields
// empty/default state and is logged, not fatal. Calling Hydrate on a
// Ready controller is a no-op.
func (c *TaskController) Hydrate(ctx context.Context) error {
	c.mu.Lock()
	if c.hydration == Ready {
		c.mu.Unlock()
		return nil
	}
	c.hydration = Loading
	c.mu.Unlock()

	tasks, err := c.store.GetAllTasks(ctx)
	if err != nil {
		c.logger.Printf("Warning: failed to load tasks, starting empty: %v", err)
		tasks = []*model.Task{}
	}
	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		c.logger.Printf("Warning: failed to load settings, using defaults: %v", err)
		settings = model.DefaultSettings()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = tasks
	c.columns = settings.ColumnByID
	c.viewMode = settings.ViewMode
	c.fields = settings.CustomFields
	c.hydration = Ready
	return nil
}

// Hydrated reports whether the controller has reached the Ready state.
// Consumers must not treat unhydrated state as authoritative.
func (c *TaskController) Hydrated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hydration == Ready
}

// Tasks returns a deep copy of the task list in order.
func (c *TaskController) Tasks() []*model.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CloneTasks(c.tasks)
}

// Task returns a copy of one task.
func (c *TaskController) Task(id string) (*model.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.find(id); t != nil {
		return t.Clone(), true
	}
	return nil, false
}

// CreateTask appends a new task and schedules a snapshot write.
func (c *TaskController) CreateTask(label string) (*model.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hydration != Ready {
		return nil, ErrNotHydrated
	}

	task := model.NewTask(label)
	c.tasks = append(c.tasks, task)
	c.dirtyTasks()
	return task.Clone(), nil
}

// UpdateTask applies fn to the task under the controller lock and
// schedules a snapshot write. fn must not retain the pointer.
func (c *TaskController) UpdateTask(id string, fn func(*model.Task)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hydration != Ready {
		return ErrNotHydrated
	}

	task := c.find(id)
	if task == nil {
		return fmt.Errorf("task %s not found", id)
	}
	fn(task)
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task update: %w", err)
	}
	c.dirtyTasks()
	return nil
}

// RenameTask sets the task label.
func (c *TaskController) RenameTask(id, label string) error {
	if label == "" {
		return fmt.Errorf("label is required")
	}
	return c.UpdateTask(id, func(t *model.Task) { t.Label = label })
}

// SetLink sets or clears the task link.
func (c *TaskController) SetLink(id, link string) error {
	return c.UpdateTask(id, func(t *model.Task) { t.Link = link })
}

// SetDueDate sets or clears (empty string) the YYYY-MM-DD due date.
func (c *TaskController) SetDueDate(id, date string) error {
	return c.UpdateTask(id, func(t *model.Task) { t.DueDate = date })
}

// SetCustomField sets one custom field value on a task.
func (c *TaskController) SetCustomField(id, fieldID, value string) error {
	return c.UpdateTask(id, func(t *model.Task) {
		if t.CustomFields == nil {
			t.CustomFields = map[string]string{}
		}
		t.CustomFields[fieldID] = value
	})
}

// DeleteTask removes a task, its column assignment, and cascades to its
// documents: their pending writes are cancelled and their rows deleted,
// so a stale debounced save can't resurrect them.
func (c *TaskController) DeleteTask(id string) error {
	c.mu.Lock()
	if c.hydration != Ready {
		c.mu.Unlock()
		return ErrNotHydrated
	}

	idx := -1
	for i, t := range c.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("task %s not found", id)
	}

	c.tasks = append(c.tasks[:idx], c.tasks[idx+1:]...)
	if _, ok := c.columns[id]; ok {
		delete(c.columns, id)
		c.dirtyColumns()
	}
	c.dirtyTasks()
	docs := c.docs
	c.mu.Unlock()

	if docs != nil {
		docs.DeleteForTask(id)
	}
	return nil
}

// AddSubTask appends a sub-task to the given task.
func (c *TaskController) AddSubTask(taskID, label string) (model.SubTask, error) {
	sub := model.NewSubTask(label)
	err := c.UpdateTask(taskID, func(t *model.Task) {
		t.SubTasks = append(t.SubTasks, sub)
	})
	return sub, err
}

// RemoveSubTask deletes a sub-task from its owning task.
func (c *TaskController) RemoveSubTask(taskID, subID string) error {
	return c.UpdateTask(taskID, func(t *model.Task) {
		for i, st := range t.SubTasks {
			if st.ID == subID {
				t.SubTasks = append(t.SubTasks[:i], t.SubTasks[i+1:]...)
				return
			}
		}
	})
}

// ReorderSubTasks reorders a task's sub-tasks to match orderedIDs.
// IDs absent from the task are ignored; sub-tasks absent from orderedIDs
// keep their relative order at the end.
func (c *TaskController) ReorderSubTasks(taskID string, orderedIDs []string) error {
	return c.UpdateTask(taskID, func(t *model.Task) {
		byID := make(map[string]model.SubTask, len(t.SubTasks))
		for _, st := range t.SubTasks {
			byID[st.ID] = st
		}

		reordered := make([]model.SubTask, 0, len(t.SubTasks))
		for _, id := range orderedIDs {
			if st, ok := byID[id]; ok {
				reordered = append(reordered, st)
				delete(byID, id)
			}
		}
		for _, st := range t.SubTasks {
			if _, ok := byID[st.ID]; ok {
				reordered = append(reordered, st)
			}
		}
		t.SubTasks = reordered
	})
}

// ToggleSubTask flips a sub-task's completed state. Completing a
// sub-task of a task still in the "not started" column moves the task
// to "in progress"; the transition is one-directional and never
// reversed automatically.
func (c *TaskController) ToggleSubTask(taskID, subID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hydration != Ready {
		return ErrNotHydrated
	}

	task := c.find(taskID)
	if task == nil {
		return fmt.Errorf("task %s not found", taskID)
	}
	sub := task.SubTask(subID)
	if sub == nil {
		return fmt.Errorf("sub-task %s not found on task %s", subID, taskID)
	}

	sub.Completed = !sub.Completed
	c.dirtyTasks()

	if sub.Completed && c.columnLocked(taskID) == model.ColumnNotStarted {
		c.columns[taskID] = model.ColumnInProgress
		c.dirtyColumns()
	}
	return nil
}

// Column returns the task's kanban column, defaulting to not-started.
func (c *TaskController) Column(taskID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.columnLocked(taskID)
}

// SetColumn assigns a task to a kanban column.
func (c *TaskController) SetColumn(taskID, column string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hydration != Ready {
		return ErrNotHydrated
	}
	if c.find(taskID) == nil {
		return fmt.Errorf("task %s not found", taskID)
	}
	c.columns[taskID] = column
	c.dirtyColumns()
	return nil
}

// ViewMode returns the active presentation mode.
func (c *TaskController) ViewMode() model.ViewMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMode
}

// SetViewMode switches the presentation mode.
func (c *TaskController) SetViewMode(mode model.ViewMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unsupported view mode %q", mode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hydration != Ready {
		return ErrNotHydrated
	}
	c.viewMode = mode
	c.sched.Schedule(sliceViewMode, mode)
	return nil
}

// CustomFields returns the custom field definitions in order.
func (c *TaskController) CustomFields() []model.CustomFieldDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.CustomFieldDefinition, len(c.fields))
	copy(out, c.fields)
	return out
}

// AddCustomField appends a custom field definition.
func (c *TaskController) AddCustomField(def model.CustomFieldDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid custom field: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hydration != Ready {
		return ErrNotHydrated
	}
	for _, f := range c.fields {
		if f.ID == def.ID {
			return fmt.Errorf("custom field %s already exists", def.ID)
		}
	}
	c.fields = append(c.fields, def)
	c.dirtyFields()
	return nil
}

// RemoveCustomField deletes a custom field definition. Values already
// stored on tasks are left in place; they are harmless without a
// definition and survive a re-add.
func (c *TaskController) RemoveCustomField(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hydration != Ready {
		return ErrNotHydrated
	}
	for i, f := range c.fields {
		if f.ID == id {
			c.fields = append(c.fields[:i], c.fields[i+1:]...)
			c.dirtyFields()
			return nil
		}
	}
	return fmt.Errorf("custom field %s not found", id)
}

// Settings returns a snapshot of the full settings set.
func (c *TaskController) Settings() model.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()

	columns := make(map[string]string, len(c.columns))
	for k, v := range c.columns {
		columns[k] = v
	}
	fields := make([]model.CustomFieldDefinition, len(c.fields))
	copy(fields, c.fields)

	return model.Settings{
		ColumnByID:   columns,
		ViewMode:     c.viewMode,
		CustomFields: fields,
	}
}

// Flush cancels pending timers and performs all pending writes now.
func (c *TaskController) Flush() {
	c.sched.Flush()
}

// Reload discards in-memory state and re-hydrates from the store; used
// after an import replaces the data. Pending writes are dropped first so
// the reload itself is never mistaken for an edit that needs saving.
func (c *TaskController) Reload(ctx context.Context) error {
	c.sched.Stop()
	// Re-arm on every exit path; a failed reload must not leave later
	// edits silently unsaved.
	defer c.sched.Reset()

	tasks, err := c.store.GetAllTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload tasks: %w", err)
	}
	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload settings: %w", err)
	}

	c.mu.Lock()
	c.tasks = tasks
	c.columns = settings.ColumnByID
	c.viewMode = settings.ViewMode
	c.fields = settings.CustomFields
	c.hydration = Ready
	c.mu.Unlock()

	return nil
}

// Close drops pending timers without writing.
func (c *TaskController) Close() {
	c.sched.Stop()
}

// find returns the live task pointer. Caller must hold c.mu.
func (c *TaskController) find(id string) *model.Task {
	for _, t := range c.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// columnLocked returns a task's column. Caller must hold c.mu.
func (c *TaskController) columnLocked(taskID string) string {
	if col, ok := c.columns[taskID]; ok {
		return col
	}
	return model.ColumnNotStarted
}

// dirtyTasks schedules a full-snapshot task write. Caller must hold c.mu.
func (c *TaskController) dirtyTasks() {
	c.sched.Schedule(sliceTasks, model.CloneTasks(c.tasks))
}

// dirtyColumns schedules a column map write. Caller must hold c.mu.
func (c *TaskController) dirtyColumns() {
	columns := make(map[string]string, len(c.columns))
	for k, v := range c.columns {
		columns[k] = v
	}
	c.sched.Schedule(sliceColumns, columns)
}

// dirtyFields schedules a custom field definitions write. Caller must
// hold c.mu.
func (c *TaskController) dirtyFields() {
	fields := make([]model.CustomFieldDefinition, len(c.fields))
	copy(fields, c.fields)
	c.sched.Schedule(sliceFields, fields)
}

// write is the scheduler's flush callback. It consults the import
// coordinator first: a write firing during an import is discarded, not
// deferred, to avoid racing the replace transaction. Storage failures
// are logged and swallowed; memory stays authoritative for the session.
func (c *TaskController) write(key string, value any) {
	if c.coord.Importing() {
		c.logger.Printf("Discarding %s write: import in progress", key)
		return
	}

	ctx := context.Background()
	var err error
	switch key {
	case sliceTasks:
		err = c.store.SaveTasksContext(ctx, value.([]*model.Task))
	case sliceColumns:
		err = c.store.SetSettingContext(ctx, model.SettingColumns, value)
	case sliceViewMode:
		err = c.store.SetSettingContext(ctx, model.SettingViewMode, value)
	case sliceFields:
		err = c.store.SetSettingContext(ctx, model.SettingCustomFields, value)
	}
	if err != nil {
		c.logger.Printf("Warning: failed to persist %s (continuing in memory): %v", key, err)
	}
}
