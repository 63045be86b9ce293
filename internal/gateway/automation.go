package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/flowdeck/internal/automation"
	"github.com/flowdeck/flowdeck/internal/recurrence"
	"github.com/flowdeck/flowdeck/internal/tasks"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Templates())
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tmpl recurrence.Template
	if err := decodeBody(r, &tmpl); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.scheduler.AddTemplate(&tmpl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.scheduler.GetTemplate(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, tasks.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var tmpl recurrence.Template
	if err := decodeBody(r, &tmpl); err != nil {
		writeError(w, err)
		return
	}
	tmpl.ID = chi.URLParam(r, "id")
	updated, err := s.scheduler.UpdateTemplate(&tmpl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	s.scheduler.RemoveTemplate(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	t, err := s.scheduler.Materialize(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleTemplateActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.scheduler.SetActive(chi.URLParam(r, "id"), req.Active); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rules.Rules())
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule automation.Rule
	if err := decodeBody(r, &rule); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.rules.AddRule(&rule)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := s.rules.GetRule(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, tasks.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var rule automation.Rule
	if err := decodeBody(r, &rule); err != nil {
		writeError(w, err)
		return
	}
	rule.ID = chi.URLParam(r, "id")
	updated, err := s.rules.UpdateRule(&rule)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	s.rules.RemoveRule(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
