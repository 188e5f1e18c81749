package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/taskdock/taskdock/internal/model"
)

// fakeStore is an in-memory Storage with call counters and error
// injection for exercising the controllers without SQLite.
type fakeStore struct {
	mu sync.Mutex

	tasks    []*model.Task
	docs     map[string]*model.Document
	settings map[string]json.RawMessage

	saveTasksCalls int
	saveDocCalls   map[string]int
	failReads      bool
	failWrites     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:         map[string]*model.Document{},
		settings:     map[string]json.RawMessage{},
		saveDocCalls: map[string]int{},
	}
}

func (f *fakeStore) GetAllTasks(ctx context.Context) ([]*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, fmt.Errorf("storage unavailable")
	}
	return model.CloneTasks(f.tasks), nil
}

func (f *fakeStore) SaveTasksContext(ctx context.Context, tasks []*model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return fmt.Errorf("storage unavailable")
	}
	f.saveTasksCalls++
	f.tasks = model.CloneTasks(tasks)
	return nil
}

func (f *fakeStore) GetSettings(ctx context.Context) (model.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return model.Settings{}, fmt.Errorf("storage unavailable")
	}

	settings := model.DefaultSettings()
	if raw, ok := f.settings[model.SettingColumns]; ok {
		_ = json.Unmarshal(raw, &settings.ColumnByID)
	}
	if raw, ok := f.settings[model.SettingViewMode]; ok {
		_ = json.Unmarshal(raw, &settings.ViewMode)
	}
	if raw, ok := f.settings[model.SettingCustomFields]; ok {
		_ = json.Unmarshal(raw, &settings.CustomFields)
	}
	return settings, nil
}

func (f *fakeStore) SetSettingContext(ctx context.Context, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return fmt.Errorf("storage unavailable")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.settings[key] = raw
	return nil
}

func (f *fakeStore) GetAllDocuments(ctx context.Context) ([]*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, fmt.Errorf("storage unavailable")
	}
	out := []*model.Document{}
	for _, d := range f.docs {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (f *fakeStore) SaveDocumentContext(ctx context.Context, doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return fmt.Errorf("storage unavailable")
	}
	f.saveDocCalls[doc.ID]++
	f.docs[doc.ID] = doc.Clone()
	return nil
}

func (f *fakeStore) DeleteDocument(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return fmt.Errorf("storage unavailable")
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeStore) DeleteDocumentsByTaskID(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return fmt.Errorf("storage unavailable")
	}
	for id, d := range f.docs {
		if d.TaskID == taskID {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeStore) taskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func (f *fakeStore) savedTasks() []*model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.CloneTasks(f.tasks)
}

func (f *fakeStore) saveTaskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveTasksCalls
}

func (f *fakeStore) docCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

func (f *fakeStore) hasDoc(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[id]
	return ok
}

func (f *fakeStore) setFailWrites(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites = fail
}

func (f *fakeStore) setFailReads(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failReads = fail
}
