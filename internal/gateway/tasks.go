package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/flowdeck/internal/tasks"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := tasks.Filter{
		Status:   q.Get("status"),
		Assignee: q.Get("assignee"),
		Tag:      q.Get("tag"),
		Priority: tasks.Priority(q.Get("priority")),
		Query:    q.Get("q"),
	}
	writeJSON(w, http.StatusOK, s.store.List(filter))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req tasks.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.store.Create(req, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch tasks.Patch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.store.Update(chi.URLParam(r, "id"), patch, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Delete(chi.URLParam(r, "id"), actorFrom(r), r.URL.Query().Get("reason"))
	if err != nil {
		writeError(w, err)
		return
	}
	// The returned task carries the deletion history entry; this response
	// is the caller's last chance to capture it.
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.store.Move(chi.URLParam(r, "id"), req.Status, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDuplicateTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Duplicate(chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.store.AddComment(chi.URLParam(r, "id"), actorFrom(r), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleTaskHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.History(chi.URLParam(r, "id")))
}

func (s *Server) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DependsOn string `json:"depends_on"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.graph.AddDependency(chi.URLParam(r, "id"), req.DependsOn); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	s.graph.RemoveDependency(chi.URLParam(r, "id"), chi.URLParam(r, "depID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBlockers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.graph.Blockers(chi.URLParam(r, "id")))
}

func (s *Server) handleBlockedTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.graph.BlockedTasks(chi.URLParam(r, "id")))
}

func (s *Server) handleSatisfied(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, map[string]any{
		"satisfied": s.graph.DependenciesSatisfied(id),
		"pending":   s.graph.PendingCount(id),
	})
}

func (s *Server) handleAddSubtask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		ParentID string `json:"parent_id,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sub := s.subtasks.Add(chi.URLParam(r, "id"), req.Title, req.ParentID)
	if sub == nil {
		// Unknown task/parent or depth limit; the tree service never raises.
		writeJSON(w, http.StatusOK, map[string]any{"added": false})
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handlePatchSubtask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    *string `json:"title,omitempty"`
		Toggle   bool    `json:"toggle,omitempty"`
		NewIndex *int    `json:"new_index,omitempty"`
		ParentID string  `json:"parent_id,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	taskID := chi.URLParam(r, "id")
	subID := chi.URLParam(r, "subID")
	changed := false
	if req.Title != nil {
		changed = s.subtasks.Rename(taskID, subID, *req.Title, req.ParentID) || changed
	}
	if req.Toggle {
		changed = s.subtasks.Toggle(taskID, subID, req.ParentID) || changed
	}
	if req.NewIndex != nil {
		changed = s.subtasks.Reorder(taskID, subID, *req.NewIndex, req.ParentID) || changed
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
}

func (s *Server) handleRemoveSubtask(w http.ResponseWriter, r *http.Request) {
	removed := s.subtasks.Remove(
		chi.URLParam(r, "id"),
		chi.URLParam(r, "subID"),
		r.URL.Query().Get("parent_id"),
	)
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.subtasks.Progress(chi.URLParam(r, "id")))
}
