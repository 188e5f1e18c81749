package persist

import (
	"context"

	"github.com/taskdock/taskdock/internal/model"
)

// Storage is the slice of the record store the controllers depend on.
// *store.Store satisfies it; tests substitute fakes.
type Storage interface {
	GetAllTasks(ctx context.Context) ([]*model.Task, error)
	SaveTasksContext(ctx context.Context, tasks []*model.Task) error

	GetSettings(ctx context.Context) (model.Settings, error)
	SetSettingContext(ctx context.Context, key string, value any) error

	GetAllDocuments(ctx context.Context) ([]*model.Document, error)
	SaveDocumentContext(ctx context.Context, doc *model.Document) error
	DeleteDocument(ctx context.Context, id string) error
	DeleteDocumentsByTaskID(ctx context.Context, taskID string) error
}

// HydrationState tracks a controller's load lifecycle. The only
// transition is Uninitialized -> Loading -> Ready, and Ready is entered
// exactly once per controller, even when the load fails (the controller
// then starts from empty/default state rather than sticking in Loading).
type HydrationState int

const (
	Uninitialized HydrationState = iota
	Loading
	Ready
)

// String returns a human-readable hydration state.
func (h HydrationState) String() string {
	switch h {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}
