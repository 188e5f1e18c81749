package persist

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdock/taskdock/internal/model"
)

const testDebounce = 30 * time.Millisecond

// settle waits out the debounce window plus slack.
func settle() {
	time.Sleep(200 * time.Millisecond)
}

func newTestTaskController(t *testing.T, store Storage, coord *Coordinator) *TaskController {
	t.Helper()

	c := NewTaskController(store, coord, TaskConfig{
		Debounce: testDebounce,
		Logger:   log.New(io.Discard, "", 0),
	})
	t.Cleanup(c.Close)
	require.NoError(t, c.Hydrate(context.Background()))
	return c
}

func TestTaskControllerHydration(t *testing.T) {
	store := newFakeStore()
	c := NewTaskController(store, NewCoordinator(), TaskConfig{Logger: log.New(io.Discard, "", 0)})
	defer c.Close()

	assert.False(t, c.Hydrated(), "controller starts unhydrated")

	_, err := c.CreateTask("too early")
	assert.ErrorIs(t, err, ErrNotHydrated, "mutations before hydration are rejected")

	require.NoError(t, c.Hydrate(context.Background()))
	assert.True(t, c.Hydrated())
	assert.Empty(t, c.Tasks())

	// Hydrate is idempotent once Ready.
	require.NoError(t, c.Hydrate(context.Background()))
}

func TestTaskControllerHydrationSurvivesLoadFailure(t *testing.T) {
	store := newFakeStore()
	store.setFailReads(true)

	c := NewTaskController(store, NewCoordinator(), TaskConfig{Logger: log.New(io.Discard, "", 0)})
	defer c.Close()

	// Load failure still yields Ready with empty/default state, never a
	// stuck loading state.
	require.NoError(t, c.Hydrate(context.Background()))
	assert.True(t, c.Hydrated())
	assert.Empty(t, c.Tasks())
	assert.Equal(t, model.ViewList, c.ViewMode())
}

func TestDebounceCoalescing(t *testing.T) {
	store := newFakeStore()
	c := newTestTaskController(t, store, NewCoordinator())

	task, err := c.CreateTask("v0")
	require.NoError(t, err)

	for _, label := range []string{"v1", "v2", "v3", "v4", "v5"} {
		require.NoError(t, c.RenameTask(task.ID, label))
		time.Sleep(3 * time.Millisecond)
	}

	settle()

	assert.Equal(t, 1, store.saveTaskCount(), "rapid edits within the window produce exactly one snapshot write")
	saved := store.savedTasks()
	require.Len(t, saved, 1)
	assert.Equal(t, "v5", saved[0].Label, "the write reflects the final state")
}

func TestMutationsNeverWriteSynchronously(t *testing.T) {
	store := newFakeStore()
	c := newTestTaskController(t, store, NewCoordinator())

	_, err := c.CreateTask("a")
	require.NoError(t, err)

	assert.Equal(t, 0, store.saveTaskCount(), "the calling path must not touch the store")
}

func TestFlushWritesPendingImmediately(t *testing.T) {
	store := newFakeStore()
	c := newTestTaskController(t, store, NewCoordinator())

	task, err := c.CreateTask("flush me")
	require.NoError(t, err)
	require.NoError(t, c.SetColumn(task.ID, model.ColumnDone))

	c.Flush()

	assert.Equal(t, 1, store.saveTaskCount())
	assert.Equal(t, 1, store.taskCount())

	// Nothing left to fire after the flush.
	settle()
	assert.Equal(t, 1, store.saveTaskCount())
}

func TestImportSuspendsAutosave(t *testing.T) {
	store := newFakeStore()
	coord := NewCoordinator()
	c := newTestTaskController(t, store, coord)

	_, err := c.CreateTask("scheduled before import")
	require.NoError(t, err)

	// Suspend before the debounce fires: the write must be discarded,
	// not deferred.
	require.NoError(t, coord.Begin())
	settle()
	assert.Equal(t, 0, store.saveTaskCount(), "write firing during import is discarded")

	// After the import ends, a new mutation persists normally.
	coord.End()
	_, err = c.CreateTask("after import")
	require.NoError(t, err)
	settle()
	assert.Equal(t, 1, store.saveTaskCount())
}

func TestWriteFailureDegradesToMemoryOnly(t *testing.T) {
	store := newFakeStore()
	store.setFailWrites(true)
	c := newTestTaskController(t, store, NewCoordinator())

	task, err := c.CreateTask("memory only")
	require.NoError(t, err)
	settle()

	// The store write failed but memory stays authoritative.
	got, ok := c.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, "memory only", got.Label)

	// Later writes succeed once storage recovers.
	store.setFailWrites(false)
	require.NoError(t, c.RenameTask(task.ID, "recovered"))
	settle()
	saved := store.savedTasks()
	require.Len(t, saved, 1)
	assert.Equal(t, "recovered", saved[0].Label)
}

func TestSubTaskAutoTransition(t *testing.T) {
	store := newFakeStore()
	c := newTestTaskController(t, store, NewCoordinator())

	task, err := c.CreateTask("kanban task")
	require.NoError(t, err)
	sub, err := c.AddSubTask(task.ID, "first step")
	require.NoError(t, err)

	require.Equal(t, model.ColumnNotStarted, c.Column(task.ID))

	// Completing a sub-task of a not-started task moves it forward.
	require.NoError(t, c.ToggleSubTask(task.ID, sub.ID))
	assert.Equal(t, model.ColumnInProgress, c.Column(task.ID))

	// Un-completing never moves it back.
	require.NoError(t, c.ToggleSubTask(task.ID, sub.ID))
	assert.Equal(t, model.ColumnInProgress, c.Column(task.ID))

	// Completing a sub-task of an in-progress or done task is a no-op
	// on the column.
	require.NoError(t, c.SetColumn(task.ID, model.ColumnDone))
	require.NoError(t, c.ToggleSubTask(task.ID, sub.ID))
	assert.Equal(t, model.ColumnDone, c.Column(task.ID))
}

func TestSubTaskReorder(t *testing.T) {
	store := newFakeStore()
	c := newTestTaskController(t, store, NewCoordinator())

	task, err := c.CreateTask("ordered")
	require.NoError(t, err)
	a, _ := c.AddSubTask(task.ID, "a")
	b, _ := c.AddSubTask(task.ID, "b")
	d, _ := c.AddSubTask(task.ID, "c")

	require.NoError(t, c.ReorderSubTasks(task.ID, []string{d.ID, a.ID, b.ID}))

	got, ok := c.Task(task.ID)
	require.True(t, ok)
	require.Len(t, got.SubTasks, 3)
	assert.Equal(t, []string{d.ID, a.ID, b.ID}, []string{got.SubTasks[0].ID, got.SubTasks[1].ID, got.SubTasks[2].ID})

	// Unknown ids are ignored, omitted ids keep relative order at the end.
	require.NoError(t, c.ReorderSubTasks(task.ID, []string{b.ID, "nope"}))
	got, _ = c.Task(task.ID)
	assert.Equal(t, b.ID, got.SubTasks[0].ID)
}

func TestDeleteTaskCascades(t *testing.T) {
	store := newFakeStore()
	coord := NewCoordinator()
	tasks := newTestTaskController(t, store, coord)
	docs := newTestDocumentController(t, store, coord)
	tasks.AttachDocuments(docs)

	task, err := tasks.CreateTask("doomed")
	require.NoError(t, err)
	require.NoError(t, tasks.SetColumn(task.ID, model.ColumnInProgress))
	tasks.Flush()

	doc, err := docs.Create(task.ID, "notes")
	require.NoError(t, err)
	docs.Flush()
	require.True(t, store.hasDoc(doc.ID))

	// Schedule an edit, then delete the task before the timer fires.
	require.NoError(t, docs.SetContent(doc.ID, []byte(`{"edited":true}`)))
	require.NoError(t, tasks.DeleteTask(task.ID))

	settle()

	// The pending save was cancelled and the row deleted; the stale
	// write must not resurrect the document.
	assert.False(t, store.hasDoc(doc.ID), "cascade delete removes documents from the store")
	assert.Empty(t, docs.ForTask(task.ID), "cascade delete removes documents from memory")
	_, ok := tasks.Task(task.ID)
	assert.False(t, ok)

	// Column assignment went with the task.
	settle()
	assert.NotContains(t, tasks.Settings().ColumnByID, task.ID)
}

func TestSettingsSlicesDebounceIndependently(t *testing.T) {
	store := newFakeStore()
	c := newTestTaskController(t, store, NewCoordinator())

	task, err := c.CreateTask("a")
	require.NoError(t, err)
	require.NoError(t, c.SetViewMode(model.ViewColumns))
	require.NoError(t, c.SetColumn(task.ID, model.ColumnInProgress))
	require.NoError(t, c.AddCustomField(model.CustomFieldDefinition{ID: "f1", Label: "Effort", Type: model.FieldText}))

	settle()

	settings, err := store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ViewColumns, settings.ViewMode)
	assert.Equal(t, model.ColumnInProgress, settings.ColumnByID[task.ID])
	require.Len(t, settings.CustomFields, 1)
	assert.Equal(t, 1, store.saveTaskCount(), "task slice fired once alongside the settings slices")
}

func TestReloadPicksUpReplacedData(t *testing.T) {
	store := newFakeStore()
	c := newTestTaskController(t, store, NewCoordinator())

	_, err := c.CreateTask("stale pending")
	require.NoError(t, err)

	// Simulate an import swapping the store contents, then reload.
	imported := []*model.Task{{ID: "imp1", Label: "imported", SubTasks: []model.SubTask{}}}
	require.NoError(t, store.SaveTasksContext(context.Background(), imported))
	saves := store.saveTaskCount()

	require.NoError(t, c.Reload(context.Background()))

	got := c.Tasks()
	require.Len(t, got, 1)
	assert.Equal(t, "imp1", got[0].ID)

	// The reload dropped the pre-reload pending write and did not
	// schedule one of its own.
	settle()
	assert.Equal(t, saves, store.saveTaskCount(), "reload must not be mistaken for an edit")

	// Mutations after reload persist again.
	_, err = c.CreateTask("fresh")
	require.NoError(t, err)
	settle()
	assert.Equal(t, saves+1, store.saveTaskCount())
}

func TestReloadFailureKeepsAutosaveArmed(t *testing.T) {
	store := newFakeStore()
	c := newTestTaskController(t, store, NewCoordinator())

	store.setFailReads(true)
	require.Error(t, c.Reload(context.Background()))
	store.setFailReads(false)

	// A failed reload must not leave the scheduler stopped: edits after
	// it still reach the store.
	task, err := c.CreateTask("after failed reload")
	require.NoError(t, err)
	settle()

	saved := store.savedTasks()
	require.Len(t, saved, 1)
	assert.Equal(t, task.ID, saved[0].ID)
}
