package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/taskdock/taskdock/internal/model"
)

// DocumentDebounce is the quiet period for document content writes.
// Longer than the task debounce because content edits arrive per
// keystroke from the rich-text editor.
const DocumentDebounce = 500 * time.Millisecond

// DocumentConfig configures a DocumentController.
type DocumentConfig struct {
	// Debounce overrides the write quiet period (default 500ms).
	Debounce time.Duration

	// Logger for persistence warnings (default: stderr logger).
	Logger *log.Logger
}

// DocumentController owns the in-memory document set. Unlike tasks,
// document writes are incremental: the debounce scheduler is keyed by
// document id, so each document coalesces independently and only its
// latest snapshot is ever written.
type DocumentController struct {
	store  Storage
	coord  *Coordinator
	logger *log.Logger
	sched  *Scheduler

	mu        sync.Mutex
	hydration HydrationState
	docs      []*model.Document
}

// NewDocumentController creates a document controller. Call Hydrate
// before using it.
func NewDocumentController(store Storage, coord *Coordinator, cfg DocumentConfig) *DocumentController {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DocumentDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[persist] ", log.LstdFlags)
	}

	c := &DocumentController{
		store:  store,
		coord:  coord,
		logger: cfg.Logger,
	}
	c.sched = NewScheduler(cfg.Debounce, c.write)
	return c
}

// Hydrate loads the store contents into memory. Same contract as the
// task controller: Ready exactly once, load failure yields empty state.
func (c *DocumentController) Hydrate(ctx context.Context) error {
	c.mu.Lock()
	if c.hydration == Ready {
		c.mu.Unlock()
		return nil
	}
	c.hydration = Loading
	c.mu.Unlock()

	docs, err := c.store.GetAllDocuments(ctx)
	if err != nil {
		c.logger.Printf("Warning: failed to load documents, starting empty: %v", err)
		docs = []*model.Document{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = docs
	c.hydration = Ready
	return nil
}

// Hydrated reports whether the controller has reached the Ready state.
func (c *DocumentController) Hydrated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hydration == Ready
}

// Documents returns a deep copy of all documents.
func (c *DocumentController) Documents() []*model.Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*model.Document, len(c.docs))
	for i, d := range c.docs {
		out[i] = d.Clone()
	}
	return out
}

// Document returns a copy of one document.
func (c *DocumentController) Document(id string) (*model.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d := c.find(id); d != nil {
		return d.Clone(), true
	}
	return nil, false
}

// ForTask returns copies of all documents referencing the given task.
func (c *DocumentController) ForTask(taskID string) []*model.Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := []*model.Document{}
	for _, d := range c.docs {
		if d.TaskID == taskID {
			out = append(out, d.Clone())
		}
	}
	return out
}

// Create adds a document for the given task and schedules its first
// write.
func (c *DocumentController) Create(taskID, title string) (*model.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hydration != Ready {
		return nil, ErrNotHydrated
	}

	doc := model.NewDocument(taskID, title)
	c.docs = append(c.docs, doc)
	c.sched.Schedule(doc.ID, doc.Clone())
	return doc.Clone(), nil
}

// SetContent replaces a document's rich-text tree and schedules a
// debounced write. Rapid edits within the quiet period coalesce; only
// the final tree reaches the store.
func (c *DocumentController) SetContent(id string, content json.RawMessage) error {
	if len(content) > 0 && !json.Valid(content) {
		return fmt.Errorf("content is not valid JSON")
	}
	return c.update(id, func(d *model.Document) {
		d.Content = append(json.RawMessage(nil), content...)
	})
}

// Rename sets a document's title.
func (c *DocumentController) Rename(id, title string) error {
	if title == "" {
		return fmt.Errorf("title is required")
	}
	return c.update(id, func(d *model.Document) {
		d.Title = title
	})
}

// Delete removes a document from memory and the store. The pending
// debounced write is cancelled first so a stale save can't resurrect
// the document after deletion.
func (c *DocumentController) Delete(id string) error {
	c.mu.Lock()
	if c.hydration != Ready {
		c.mu.Unlock()
		return ErrNotHydrated
	}

	idx := -1
	for i, d := range c.docs {
		if d.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("document %s not found", id)
	}
	c.docs = append(c.docs[:idx], c.docs[idx+1:]...)
	c.mu.Unlock()

	c.sched.Cancel(id)
	c.deleteRow(id)
	return nil
}

// DeleteForTask cascades a task deletion: every document referencing the
// task is dropped from memory, its pending write cancelled, and its row
// deleted. Missing documents are not an error.
func (c *DocumentController) DeleteForTask(taskID string) {
	c.mu.Lock()
	var removed []string
	kept := c.docs[:0]
	for _, d := range c.docs {
		if d.TaskID == taskID {
			removed = append(removed, d.ID)
		} else {
			kept = append(kept, d)
		}
	}
	c.docs = kept
	c.mu.Unlock()

	for _, id := range removed {
		c.sched.Cancel(id)
	}

	if c.coord.Importing() {
		return
	}
	if err := c.store.DeleteDocumentsByTaskID(context.Background(), taskID); err != nil {
		c.logger.Printf("Warning: failed to delete documents for task %s: %v", taskID, err)
	}
}

// Flush cancels pending timers and performs all pending writes now.
func (c *DocumentController) Flush() {
	c.sched.Flush()
}

// Reload discards in-memory state and re-hydrates from the store,
// dropping pending writes first.
func (c *DocumentController) Reload(ctx context.Context) error {
	c.sched.Stop()
	// Re-arm on every exit path; a failed reload must not leave later
	// edits silently unsaved.
	defer c.sched.Reset()

	docs, err := c.store.GetAllDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload documents: %w", err)
	}

	c.mu.Lock()
	c.docs = docs
	c.hydration = Ready
	c.mu.Unlock()

	return nil
}

// Close drops pending timers without writing.
func (c *DocumentController) Close() {
	c.sched.Stop()
}

// find returns the live document pointer. Caller must hold c.mu.
func (c *DocumentController) find(id string) *model.Document {
	for _, d := range c.docs {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// update applies fn under the lock, touches the updated timestamp, and
// schedules the document's debounced write.
func (c *DocumentController) update(id string, fn func(*model.Document)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hydration != Ready {
		return ErrNotHydrated
	}

	doc := c.find(id)
	if doc == nil {
		return fmt.Errorf("document %s not found", id)
	}
	fn(doc)
	doc.Touch()
	c.sched.Schedule(doc.ID, doc.Clone())
	return nil
}

// write persists one document snapshot when its timer elapses. Writes
// firing during an import are discarded, not deferred.
func (c *DocumentController) write(id string, value any) {
	if c.coord.Importing() {
		c.logger.Printf("Discarding document %s write: import in progress", id)
		return
	}

	doc := value.(*model.Document)
	if err := c.store.SaveDocumentContext(context.Background(), doc); err != nil {
		c.logger.Printf("Warning: failed to persist document %s (continuing in memory): %v", id, err)
	}
}

// deleteRow removes a document row, logging failures.
func (c *DocumentController) deleteRow(id string) {
	if c.coord.Importing() {
		return
	}
	if err := c.store.DeleteDocument(context.Background(), id); err != nil {
		c.logger.Printf("Warning: failed to delete document %s: %v", id, err)
	}
}
