package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/taskdock/taskdock/internal/model"
)

// GetAllTasks returns every task ordered by its persisted position.
// An empty table yields an empty slice, not an error.
func (s *Store) GetAllTasks(ctx context.Context) ([]*model.Task, error) {
	query := `
	SELECT id, label, link, due_date, custom_fields, sub_tasks
	FROM tasks
	ORDER BY position ASC
	`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*model.Task{}
	for rows.Next() {
		var (
			task        model.Task
			fieldsJSON  string
			subTasksJSON string
		)
		if err := rows.Scan(&task.ID, &task.Label, &task.Link, &task.DueDate, &fieldsJSON, &subTasksJSON); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		if fieldsJSON != "" && fieldsJSON != "{}" && fieldsJSON != "null" {
			if err := json.Unmarshal([]byte(fieldsJSON), &task.CustomFields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal custom fields for task %s: %w", task.ID, err)
			}
		}
		if err := json.Unmarshal([]byte(subTasksJSON), &task.SubTasks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sub-tasks for task %s: %w", task.ID, err)
		}
		task.SetDefaults()

		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// SaveTasks replaces the entire task table with the given snapshot in a
// single transaction (clear then bulk insert).
//
// This is a full-snapshot write, not an incremental upsert: the
// in-memory task list is always the full authoritative set, so the
// simplest correct persistence is to mirror it wholesale. Array order is
// recorded in the position column.
func (s *Store) SaveTasks(tasks []*model.Task) error {
	return s.SaveTasksContext(context.Background(), tasks)
}

// SaveTasksContext replaces the task table with context support.
func (s *Store) SaveTasksContext(ctx context.Context, tasks []*model.Task) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}

	if err := insertTasks(ctx, tx, tasks); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tasks: %w", err)
	}
	return nil
}

// insertTasks bulk-inserts the snapshot inside an open transaction.
func insertTasks(ctx context.Context, tx *sql.Tx, tasks []*model.Task) error {
	query := `
	INSERT INTO tasks (id, label, link, due_date, custom_fields, sub_tasks, position)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for i, task := range tasks {
		if err := task.Validate(); err != nil {
			return fmt.Errorf("invalid task %s: %w", task.ID, err)
		}

		fieldsJSON, err := json.Marshal(task.CustomFields)
		if err != nil {
			return fmt.Errorf("failed to marshal custom fields: %w", err)
		}
		subTasksJSON, err := json.Marshal(task.SubTasks)
		if err != nil {
			return fmt.Errorf("failed to marshal sub-tasks: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query,
			task.ID,
			task.Label,
			task.Link,
			task.DueDate,
			string(fieldsJSON),
			string(subTasksJSON),
			i,
		); err != nil {
			return fmt.Errorf("failed to insert task %s: %w", task.ID, err)
		}
	}

	return nil
}
