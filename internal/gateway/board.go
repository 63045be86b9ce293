package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/flowdeck/internal/board"
	"github.com/flowdeck/flowdeck/internal/events"
)

func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Columns())
}

func (s *Server) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	col := s.board.Create(req.Name, req.Color)
	s.bus.Publish(events.NewEvent(events.EventColumnCreated, events.SourceBoard, map[string]any{
		"id":   col.ID,
		"name": col.Name,
	}))
	writeJSON(w, http.StatusCreated, col)
}

func (s *Server) handleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	var patch board.ColumnPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	col, err := s.board.Update(chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	s.bus.Publish(events.NewEvent(events.EventColumnUpdated, events.SourceBoard, map[string]any{
		"id": col.ID,
	}))
	writeJSON(w, http.StatusOK, col)
}

// handleDeleteColumn removes a non-default column, first reassigning every
// task in it to the fallback column. Default columns no-op.
func (s *Server) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fallback, deleted := s.board.Delete(id)
	if !deleted {
		writeJSON(w, http.StatusOK, map[string]any{"deleted": false})
		return
	}
	moved := s.store.ReassignColumn(id, fallback, actorFrom(r))
	s.bus.Publish(events.NewEvent(events.EventColumnDeleted, events.SourceBoard, map[string]any{
		"id":       id,
		"fallback": fallback,
		"moved":    moved,
	}))
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "moved": moved})
}

func (s *Server) handleReorderColumn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewOrder int `json:"new_order"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.Reorder(chi.URLParam(r, "id"), req.NewOrder); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.board.Columns())
}

// handleResetColumns restores the three default columns; tasks in discarded
// custom columns fall back to todo.
func (s *Server) handleResetColumns(w http.ResponseWriter, r *http.Request) {
	discarded := s.board.Reset()
	moved := 0
	for _, colID := range discarded {
		moved += s.store.ReassignColumn(colID, board.ColumnTodo, actorFrom(r))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"discarded": len(discarded),
		"moved":     moved,
	})
}
