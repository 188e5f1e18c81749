package store

import (
	"context"
	"fmt"

	"github.com/taskdock/taskdock/internal/model"
)

// ReplaceAll atomically swaps the entire store contents: within one
// transaction the tasks, documents, and settings tables are cleared and
// repopulated from the given data. A failure midway rolls back and
// leaves the store in its pre-transaction state.
//
// Callers are responsible for suspending autosave around this call (see
// persist.Coordinator) and for filtering orphaned documents first.
func (s *Store) ReplaceAll(ctx context.Context, tasks []*model.Task, docs []*model.Document, settings model.Settings) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"tasks", "documents", "settings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := insertTasks(ctx, tx, tasks); err != nil {
		return err
	}
	if err := insertDocuments(ctx, tx, docs); err != nil {
		return err
	}
	if err := insertSettings(ctx, tx, settings); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replace: %w", err)
	}
	return nil
}
