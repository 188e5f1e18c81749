package persist

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdock/taskdock/internal/model"
)

func newTestDocumentController(t *testing.T, store Storage, coord *Coordinator) *DocumentController {
	t.Helper()

	c := NewDocumentController(store, coord, DocumentConfig{
		Debounce: testDebounce,
		Logger:   log.New(io.Discard, "", 0),
	})
	t.Cleanup(c.Close)
	require.NoError(t, c.Hydrate(context.Background()))
	return c
}

func TestDocumentControllerHydration(t *testing.T) {
	store := newFakeStore()
	c := NewDocumentController(store, NewCoordinator(), DocumentConfig{Logger: log.New(io.Discard, "", 0)})
	defer c.Close()

	assert.False(t, c.Hydrated())
	_, err := c.Create("t1", "too early")
	assert.ErrorIs(t, err, ErrNotHydrated)

	require.NoError(t, c.Hydrate(context.Background()))
	assert.True(t, c.Hydrated())
	assert.Empty(t, c.Documents())
}

func TestDocumentControllerHydrationSurvivesLoadFailure(t *testing.T) {
	store := newFakeStore()
	store.setFailReads(true)

	c := NewDocumentController(store, NewCoordinator(), DocumentConfig{Logger: log.New(io.Discard, "", 0)})
	defer c.Close()

	require.NoError(t, c.Hydrate(context.Background()))
	assert.True(t, c.Hydrated(), "load failure still reaches Ready")
	assert.Empty(t, c.Documents())
}

func TestDocumentEditsCoalescePerDocument(t *testing.T) {
	store := newFakeStore()
	c := newTestDocumentController(t, store, NewCoordinator())

	doc, err := c.Create("t1", "draft")
	require.NoError(t, err)

	// Simulate keystrokes: many content updates inside the window.
	for i := 0; i < 5; i++ {
		content, _ := json.Marshal(map[string]int{"rev": i})
		require.NoError(t, c.SetContent(doc.ID, content))
		time.Sleep(3 * time.Millisecond)
	}

	settle()

	store.mu.Lock()
	calls := store.saveDocCalls[doc.ID]
	saved := store.docs[doc.ID]
	store.mu.Unlock()

	assert.Equal(t, 1, calls, "edits within the window coalesce into one write")
	require.NotNil(t, saved)
	assert.JSONEq(t, `{"rev":4}`, string(saved.Content), "only the final content is written")
}

func TestDocumentsDebounceIndependently(t *testing.T) {
	store := newFakeStore()
	c := newTestDocumentController(t, store, NewCoordinator())

	d1, err := c.Create("t1", "one")
	require.NoError(t, err)
	d2, err := c.Create("t1", "two")
	require.NoError(t, err)

	require.NoError(t, c.SetContent(d1.ID, []byte(`{"n":1}`)))
	require.NoError(t, c.SetContent(d2.ID, []byte(`{"n":2}`)))

	settle()

	assert.True(t, store.hasDoc(d1.ID))
	assert.True(t, store.hasDoc(d2.ID))
	assert.Equal(t, 2, store.docCount())
}

func TestDeleteCancelsPendingWrite(t *testing.T) {
	store := newFakeStore()
	c := newTestDocumentController(t, store, NewCoordinator())

	doc, err := c.Create("t1", "ephemeral")
	require.NoError(t, err)
	c.Flush()
	require.True(t, store.hasDoc(doc.ID))

	// Edit then delete inside the debounce window: the deletion wins.
	require.NoError(t, c.SetContent(doc.ID, []byte(`{"stale":true}`)))
	require.NoError(t, c.Delete(doc.ID))

	settle()

	assert.False(t, store.hasDoc(doc.ID), "stale pending write must not resurrect a deleted document")
	_, ok := c.Document(doc.ID)
	assert.False(t, ok)
}

func TestDocumentRenameAndTouch(t *testing.T) {
	store := newFakeStore()
	c := newTestDocumentController(t, store, NewCoordinator())

	doc, err := c.Create("t1", "old title")
	require.NoError(t, err)
	created := doc.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Rename(doc.ID, "new title"))

	got, ok := c.Document(doc.ID)
	require.True(t, ok)
	assert.Equal(t, "new title", got.Title)
	assert.GreaterOrEqual(t, got.UpdatedAt, created, "mutations touch the updated timestamp")

	assert.Error(t, c.Rename(doc.ID, ""), "empty title is rejected")
	assert.Error(t, c.Rename("missing", "x"))
}

func TestDocumentImportSuspendDiscardsWrite(t *testing.T) {
	store := newFakeStore()
	coord := NewCoordinator()
	c := newTestDocumentController(t, store, coord)

	doc, err := c.Create("t1", "pending")
	require.NoError(t, err)

	require.NoError(t, coord.Begin())
	settle()
	assert.False(t, store.hasDoc(doc.ID), "write firing during import is discarded")

	coord.End()
	require.NoError(t, c.SetContent(doc.ID, []byte(`{"after":true}`)))
	settle()
	assert.True(t, store.hasDoc(doc.ID), "autosave resumes once import ends")
}

func TestForTask(t *testing.T) {
	store := newFakeStore()
	c := newTestDocumentController(t, store, NewCoordinator())

	d1, _ := c.Create("t1", "a")
	_, _ = c.Create("t2", "b")

	docs := c.ForTask("t1")
	require.Len(t, docs, 1)
	assert.Equal(t, d1.ID, docs[0].ID)

	assert.Empty(t, c.ForTask("t3"))
}

func TestDocumentReload(t *testing.T) {
	store := newFakeStore()
	c := newTestDocumentController(t, store, NewCoordinator())

	_, err := c.Create("t1", "pre-import")
	require.NoError(t, err)

	// Import path: store replaced out from under the controller.
	imported := &model.Document{ID: "imp-doc", TaskID: "imp1", Title: "imported", CreatedAt: 1, UpdatedAt: 1}
	store.mu.Lock()
	store.docs = map[string]*model.Document{imported.ID: imported}
	store.mu.Unlock()

	require.NoError(t, c.Reload(context.Background()))

	docs := c.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "imp-doc", docs[0].ID)

	// The pre-reload pending write was dropped.
	settle()
	assert.Equal(t, 1, store.docCount())
	assert.True(t, store.hasDoc("imp-doc"))
}

func TestDocumentReloadFailureKeepsAutosaveArmed(t *testing.T) {
	store := newFakeStore()
	c := newTestDocumentController(t, store, NewCoordinator())

	store.setFailReads(true)
	require.Error(t, c.Reload(context.Background()))
	store.setFailReads(false)

	// A failed reload must not leave the scheduler stopped: edits after
	// it still reach the store.
	doc, err := c.Create("t1", "after failed reload")
	require.NoError(t, err)
	settle()

	assert.True(t, store.hasDoc(doc.ID))
}
