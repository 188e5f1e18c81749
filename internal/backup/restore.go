package backup

import (
	"context"
	"fmt"

	"github.com/taskdock/taskdock/internal/model"
	"github.com/taskdock/taskdock/internal/persist"
)

// Replacer is the slice of the store the restore path needs.
type Replacer interface {
	ReplaceAll(ctx context.Context, tasks []*model.Task, docs []*model.Document, settings model.Settings) error
}

// ImportResult summarizes what a restore applied.
type ImportResult struct {
	Tasks     int
	Documents int
	// DroppedDocuments counts documents discarded because their task is
	// not part of the backup.
	DroppedDocuments int
}

// FilterOrphans returns the documents whose task exists in the
// envelope, plus the count of documents dropped. The envelope is not
// modified.
func FilterOrphans(env *Envelope) ([]*model.Document, int) {
	known := make(map[string]bool, len(env.Tasks))
	for _, t := range env.Tasks {
		known[t.ID] = true
	}

	kept := make([]*model.Document, 0, len(env.Documents))
	for _, d := range env.Documents {
		if known[d.TaskID] {
			kept = append(kept, d)
		}
	}
	return kept, len(env.Documents) - len(kept)
}

// Controllers bundles the in-memory controllers a restore must refresh
// after the store contents are replaced.
type Controllers struct {
	Tasks     *persist.TaskController
	Documents *persist.DocumentController
}

// Restore replaces the entire store contents with a validated envelope
// and reloads the controllers from the new state. Autosave is suspended
// for the whole operation so stale pending writes cannot land on top of
// the imported data; writes that fire while the import holds the store
// are discarded, not deferred. On any failure the suspension is lifted
// and the store is left as the transaction left it (untouched on a
// rolled-back replace).
func Restore(ctx context.Context, st Replacer, coord *persist.Coordinator, ctrls Controllers, env *Envelope) (*ImportResult, error) {
	if err := coord.Begin(); err != nil {
		return nil, err
	}
	defer coord.End()

	docs, dropped := FilterOrphans(env)

	if err := st.ReplaceAll(ctx, env.Tasks, docs, env.Settings); err != nil {
		return nil, fmt.Errorf("failed to replace store contents: %w", err)
	}

	if ctrls.Tasks != nil {
		if err := ctrls.Tasks.Reload(ctx); err != nil {
			return nil, fmt.Errorf("failed to reload tasks after import: %w", err)
		}
	}
	if ctrls.Documents != nil {
		if err := ctrls.Documents.Reload(ctx); err != nil {
			return nil, fmt.Errorf("failed to reload documents after import: %w", err)
		}
	}

	return &ImportResult{
		Tasks:            len(env.Tasks),
		Documents:        len(docs),
		DroppedDocuments: dropped,
	}, nil
}
