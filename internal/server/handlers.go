package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/taskdock/taskdock/internal/backup"
	"github.com/taskdock/taskdock/internal/model"
)

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleFeed)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/subtasks", s.handleAddSubTask)
	mux.HandleFunc("POST /api/tasks/{id}/subtasks/{subID}/toggle", s.handleToggleSubTask)
	mux.HandleFunc("DELETE /api/tasks/{id}/subtasks/{subID}", s.handleRemoveSubTask)
	mux.HandleFunc("PUT /api/tasks/{id}/subtasks/order", s.handleReorderSubTasks)

	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("POST /api/documents", s.handleCreateDocument)
	mux.HandleFunc("PATCH /api/documents/{id}", s.handleUpdateDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings/viewmode", s.handleSetViewMode)
	mux.HandleFunc("POST /api/settings/fields", s.handleAddField)
	mux.HandleFunc("DELETE /api/settings/fields/{id}", s.handleRemoveField)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks":    s.tasks.Tasks(),
		"settings": s.tasks.Settings(),
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	task, err := s.tasks.CreateTask(req.Label)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.Publish(EventTasksChanged, map[string]string{"id": task.ID, "action": "created"})
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Pointer fields distinguish "absent" from "set to empty".
	var req struct {
		Label        *string           `json:"label"`
		Link         *string           `json:"link"`
		DueDate      *string           `json:"dueDate"`
		Column       *string           `json:"column"`
		CustomFields map[string]string `json:"customFields"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err := s.tasks.UpdateTask(id, func(t *model.Task) {
		if req.Label != nil {
			t.Label = *req.Label
		}
		if req.Link != nil {
			t.Link = *req.Link
		}
		if req.DueDate != nil {
			t.DueDate = *req.DueDate
		}
		for k, v := range req.CustomFields {
			if t.CustomFields == nil {
				t.CustomFields = map[string]string{}
			}
			t.CustomFields[k] = v
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.Column != nil {
		if err := s.tasks.SetColumn(id, *req.Column); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	task, _ := s.tasks.Task(id)
	s.Publish(EventTasksChanged, map[string]string{"id": id, "action": "updated"})
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.tasks.DeleteTask(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	s.Publish(EventTasksChanged, map[string]string{"id": id, "action": "deleted"})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSubTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sub, err := s.tasks.AddSubTask(r.PathValue("id"), req.Label)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.Publish(EventTasksChanged, map[string]string{"id": r.PathValue("id"), "action": "updated"})
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleToggleSubTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.tasks.ToggleSubTask(id, r.PathValue("subID")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	task, _ := s.tasks.Task(id)
	s.Publish(EventTasksChanged, map[string]string{"id": id, "action": "updated"})
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleRemoveSubTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.RemoveSubTask(r.PathValue("id"), r.PathValue("subID")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	s.Publish(EventTasksChanged, map[string]string{"id": r.PathValue("id"), "action": "updated"})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorderSubTasks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.tasks.ReorderSubTasks(r.PathValue("id"), req.IDs); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	s.Publish(EventTasksChanged, map[string]string{"id": r.PathValue("id"), "action": "updated"})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if taskID := r.URL.Query().Get("task"); taskID != "" {
		writeJSON(w, http.StatusOK, s.docs.ForTask(taskID))
		return
	}
	writeJSON(w, http.StatusOK, s.docs.Documents())
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID string `json:"taskId"`
		Title  string `json:"title"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	doc, err := s.docs.Create(req.TaskID, req.Title)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.Publish(EventDocumentChanged, map[string]string{"id": doc.ID, "action": "created"})
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Title   *string         `json:"title"`
		Content json.RawMessage `json:"content"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.Title != nil {
		if err := s.docs.Rename(id, *req.Title); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.Content != nil {
		if err := s.docs.SetContent(id, req.Content); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	doc, ok := s.docs.Document(id)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("document not found"))
		return
	}
	s.Publish(EventDocumentChanged, map[string]string{"id": id, "action": "updated"})
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.docs.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	s.Publish(EventDocumentChanged, map[string]string{"id": id, "action": "deleted"})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tasks.Settings())
}

func (s *Server) handleSetViewMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ViewMode model.ViewMode `json:"viewMode"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.tasks.SetViewMode(req.ViewMode); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.Publish(EventSettingsChanged, map[string]string{"viewMode": string(req.ViewMode)})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddField(w http.ResponseWriter, r *http.Request) {
	var def model.CustomFieldDefinition
	if err := decode(r, &def); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.tasks.AddCustomField(def); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.Publish(EventSettingsChanged, map[string]string{"field": def.ID})
	writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleRemoveField(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.RemoveCustomField(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	s.Publish(EventSettingsChanged, map[string]string{"field": r.PathValue("id")})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	// Flush first so the export reflects edits still inside their
	// debounce window.
	s.tasks.Flush()
	s.docs.Flush()

	text, err := backup.Export(r.Context(), s.st)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="taskdock-backup.json"`)
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	env, err := backup.ParseImportFile(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := backup.Restore(r.Context(), s.st, s.coord, backup.Controllers{
		Tasks:     s.tasks,
		Documents: s.docs,
	}, env)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	s.Publish(EventImportComplete, res)
	writeJSON(w, http.StatusOK, res)
}
