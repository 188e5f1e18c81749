package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// InboxConfig holds configuration for the restore inbox.
type InboxConfig struct {
	// DebounceInterval is how long a dropped file must sit unchanged
	// before it is picked up. This rides out editors and file managers
	// that write in several chunks.
	DebounceInterval time.Duration

	// Logger for inbox activity
	Logger *log.Logger
}

// DefaultInboxConfig returns sensible defaults.
func DefaultInboxConfig() *InboxConfig {
	return &InboxConfig{
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[inbox] ", log.LstdFlags),
	}
}

// Inbox watches a drop directory for backup files. A *.json file placed
// in the directory is parsed, validated, and handed to the apply
// callback; the file is then renamed to *.applied or *.rejected so it
// is never picked up twice. Files that are not valid backups are
// rejected without touching the store.
type Inbox struct {
	dir    string
	apply  func(env *Envelope) error
	config *InboxConfig

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> timestamp
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewInbox creates an inbox watching dir. The apply callback runs the
// actual import; it is called at most once per dropped file and never
// concurrently with itself.
func NewInbox(dir string, apply func(env *Envelope) error, config *InboxConfig) (*Inbox, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir cannot be empty")
	}
	if apply == nil {
		return nil, fmt.Errorf("apply cannot be nil")
	}
	// Fill defaults per field so a partially populated config (say,
	// only a Logger) still gets a usable debounce interval.
	defaults := DefaultInboxConfig()
	if config == nil {
		config = defaults
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = defaults.DebounceInterval
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create inbox directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Inbox{
		dir:         dir,
		apply:       apply,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins watching the inbox directory. Files already present at
// startup are queued so a backup dropped while the app was down is
// still applied. Start blocks until ctx is cancelled or Stop is called.
func (in *Inbox) Start(ctx context.Context) error {
	in.config.Logger.Printf("Watching inbox: %s", in.dir)

	if err := in.queueExisting(); err != nil {
		return err
	}

	if err := in.watcher.Add(in.dir); err != nil {
		return fmt.Errorf("failed to watch inbox directory: %w", err)
	}

	in.wg.Add(2)
	go in.watchFileEvents()
	go in.processChangeQueue()

	select {
	case <-ctx.Done():
		return in.Stop()
	case <-in.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the inbox.
func (in *Inbox) Stop() error {
	in.cancel()

	if err := in.watcher.Close(); err != nil {
		in.config.Logger.Printf("Error closing watcher: %v", err)
	}

	in.wg.Wait()
	return nil
}

// queueExisting queues backup files already sitting in the directory.
func (in *Inbox) queueExisting() error {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return fmt.Errorf("failed to read inbox directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		in.queueChange(filepath.Join(in.dir, entry.Name()))
	}
	return nil
}

// watchFileEvents monitors filesystem events and queues changes.
func (in *Inbox) watchFileEvents() {
	defer in.wg.Done()

	for {
		select {
		case <-in.ctx.Done():
			return

		case event, ok := <-in.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}

			in.queueChange(event.Name)

		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			in.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange adds a file to the change queue with debouncing.
func (in *Inbox) queueChange(path string) {
	in.changeQueueMu.Lock()
	defer in.changeQueueMu.Unlock()

	in.changeQueue[path] = time.Now()
}

// processChangeQueue processes queued files with debouncing.
func (in *Inbox) processChangeQueue() {
	defer in.wg.Done()

	ticker := time.NewTicker(in.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-in.ctx.Done():
			return

		case <-ticker.C:
			in.processPendingChanges()
		}
	}
}

// processPendingChanges applies files that have sat unchanged for long
// enough.
func (in *Inbox) processPendingChanges() {
	in.changeQueueMu.Lock()
	now := time.Now()
	var ready []string
	for path, queuedAt := range in.changeQueue {
		if now.Sub(queuedAt) < in.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(in.changeQueue, path)
	}
	in.changeQueueMu.Unlock()

	for _, path := range ready {
		in.processFile(path)
	}
}

// processFile parses and applies a single dropped backup file, then
// archives it with a result suffix.
func (in *Inbox) processFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		in.config.Logger.Printf("Error reading %s: %v", path, err)
		return
	}

	env, err := ParseImportFile(string(data))
	if err != nil {
		in.config.Logger.Printf("Rejecting %s: %v", filepath.Base(path), err)
		in.archive(path, ".rejected")
		return
	}

	if err := in.apply(env); err != nil {
		in.config.Logger.Printf("Import of %s failed: %v", filepath.Base(path), err)
		in.archive(path, ".rejected")
		return
	}

	in.config.Logger.Printf("Applied backup %s (%d tasks, %d documents)", filepath.Base(path), len(env.Tasks), len(env.Documents))
	in.archive(path, ".applied")
}

// archive renames a processed file so it is not picked up again.
func (in *Inbox) archive(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		in.config.Logger.Printf("Error archiving %s: %v", path, err)
	}
}
