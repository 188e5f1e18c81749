package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/taskdock/taskdock/internal/model"
)

const documentColumns = "id, task_id, title, content, created_at, updated_at"

// GetAllDocuments returns every document, newest update first.
func (s *Store) GetAllDocuments(ctx context.Context) ([]*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY updated_at DESC`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// GetDocumentsByTaskID returns all documents referencing the given task.
// No matches yields an empty slice, not an error.
func (s *Store) GetDocumentsByTaskID(ctx context.Context, taskID string) ([]*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE task_id = ? ORDER BY updated_at DESC`

	rows, err := s.conn.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents for task %s: %w", taskID, err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// GetDocument returns the document with the given id, or nil if absent.
func (s *Store) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	row := s.conn.QueryRowContext(ctx, query, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

// SaveDocument upserts a single document by id. Unlike tasks, document
// writes are incremental: each document is its own debounce slice.
func (s *Store) SaveDocument(doc *model.Document) error {
	return s.SaveDocumentContext(context.Background(), doc)
}

// SaveDocumentContext upserts a document with context support.
func (s *Store) SaveDocumentContext(ctx context.Context, doc *model.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}

	content, err := marshalContent(doc.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal document content: %w", err)
	}

	query := `
	INSERT INTO documents (id, task_id, title, content, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		task_id = excluded.task_id,
		title = excluded.title,
		content = excluded.content,
		updated_at = excluded.updated_at
	`

	if _, err := s.conn.ExecContext(ctx, query,
		doc.ID, doc.TaskID, doc.Title, content, doc.CreatedAt, doc.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// DeleteDocument removes a document. Idempotent: deleting a missing id
// is not an error.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// DeleteDocumentsByTaskID removes every document referencing the given
// task. Used by the cascade when a task is deleted.
func (s *Store) DeleteDocumentsByTaskID(ctx context.Context, taskID string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM documents WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("failed to delete documents for task %s: %w", taskID, err)
	}
	return nil
}

// insertDocuments bulk-inserts documents inside an open transaction.
func insertDocuments(ctx context.Context, tx *sql.Tx, docs []*model.Document) error {
	query := `
	INSERT INTO documents (id, task_id, title, content, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("invalid document %s: %w", doc.ID, err)
		}
		content, err := marshalContent(doc.Content)
		if err != nil {
			return fmt.Errorf("failed to marshal document content: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			doc.ID, doc.TaskID, doc.Title, content, doc.CreatedAt, doc.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
		}
	}

	return nil
}

// marshalContent normalizes a possibly-nil content tree to JSON text.
func marshalContent(content json.RawMessage) (string, error) {
	if len(content) == 0 {
		return "null", nil
	}
	if !json.Valid(content) {
		return "", fmt.Errorf("content is not valid JSON")
	}
	return string(content), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		doc     model.Document
		content string
	)
	if err := row.Scan(&doc.ID, &doc.TaskID, &doc.Title, &content, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if content != "" && content != "null" {
		doc.Content = json.RawMessage(content)
	}
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]*model.Document, error) {
	docs := []*model.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}
