// Package gateway exposes the engine's query and command surface over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flowdeck/flowdeck/internal/automation"
	"github.com/flowdeck/flowdeck/internal/board"
	"github.com/flowdeck/flowdeck/internal/events"
	"github.com/flowdeck/flowdeck/internal/gateway/ws"
	"github.com/flowdeck/flowdeck/internal/recurrence"
	"github.com/flowdeck/flowdeck/internal/tasks"
)

// Config holds the engine components the gateway serves.
type Config struct {
	Bus       *events.Bus
	Store     *tasks.Store
	Graph     *tasks.Graph
	Subtasks  *tasks.Subtasks
	Board     *board.Registry
	Scheduler *recurrence.Scheduler
	Rules     *automation.Engine
	Host      string
	Port      int
}

// Server is the Flowdeck gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	store      *tasks.Store
	graph      *tasks.Graph
	subtasks   *tasks.Subtasks
	board      *board.Registry
	scheduler  *recurrence.Scheduler
	rules      *automation.Engine
}

// NewServer creates a new gateway server.
func NewServer(cfg Config) *Server {
	hub := ws.NewHub(cfg.Bus)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{
		hub:       hub,
		bus:       cfg.Bus,
		store:     cfg.Store,
		graph:     cfg.Graph,
		subtasks:  cfg.Subtasks,
		board:     cfg.Board,
		scheduler: cfg.Scheduler,
		rules:     cfg.Rules,
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/ws", hub.ServeWS)

	// Tasks
	r.Get("/api/tasks", s.handleListTasks)
	r.Post("/api/tasks", s.handleCreateTask)
	r.Get("/api/tasks/{id}", s.handleGetTask)
	r.Patch("/api/tasks/{id}", s.handleUpdateTask)
	r.Delete("/api/tasks/{id}", s.handleDeleteTask)
	r.Post("/api/tasks/{id}/move", s.handleMoveTask)
	r.Post("/api/tasks/{id}/duplicate", s.handleDuplicateTask)
	r.Post("/api/tasks/{id}/comments", s.handleAddComment)
	r.Get("/api/tasks/{id}/history", s.handleTaskHistory)

	// Dependencies
	r.Post("/api/tasks/{id}/dependencies", s.handleAddDependency)
	r.Delete("/api/tasks/{id}/dependencies/{depID}", s.handleRemoveDependency)
	r.Get("/api/tasks/{id}/blockers", s.handleBlockers)
	r.Get("/api/tasks/{id}/blocked", s.handleBlockedTasks)
	r.Get("/api/tasks/{id}/satisfied", s.handleSatisfied)

	// Subtasks
	r.Post("/api/tasks/{id}/subtasks", s.handleAddSubtask)
	r.Patch("/api/tasks/{id}/subtasks/{subID}", s.handlePatchSubtask)
	r.Delete("/api/tasks/{id}/subtasks/{subID}", s.handleRemoveSubtask)
	r.Get("/api/tasks/{id}/progress", s.handleProgress)

	// Board
	r.Get("/api/columns", s.handleListColumns)
	r.Post("/api/columns", s.handleCreateColumn)
	r.Patch("/api/columns/{id}", s.handleUpdateColumn)
	r.Delete("/api/columns/{id}", s.handleDeleteColumn)
	r.Post("/api/columns/{id}/reorder", s.handleReorderColumn)
	r.Post("/api/columns/reset", s.handleResetColumns)

	// Templates
	r.Get("/api/templates", s.handleListTemplates)
	r.Post("/api/templates", s.handleCreateTemplate)
	r.Get("/api/templates/{id}", s.handleGetTemplate)
	r.Put("/api/templates/{id}", s.handleUpdateTemplate)
	r.Delete("/api/templates/{id}", s.handleDeleteTemplate)
	r.Post("/api/templates/{id}/materialize", s.handleMaterialize)
	r.Post("/api/templates/{id}/active", s.handleTemplateActive)

	// Rules
	r.Get("/api/rules", s.handleListRules)
	r.Post("/api/rules", s.handleCreateRule)
	r.Get("/api/rules/{id}", s.handleGetRule)
	r.Put("/api/rules/{id}", s.handleUpdateRule)
	r.Delete("/api/rules/{id}", s.handleDeleteRule)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: r,
	}

	return s
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tasks":  s.store.Len(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, s.bus.History(limit))
}

// actorFrom resolves the acting user for history attribution.
func actorFrom(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "api"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation *tasks.ValidationError
		blocked    *tasks.DependencyBlockedError
		cycle      *tasks.CycleError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": validation.Error()})
	case errors.Is(err, tasks.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   blocked.Error(),
			"pending": blocked.Pending,
		})
	case errors.As(err, &cycle):
		writeJSON(w, http.StatusConflict, map[string]any{"error": cycle.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &tasks.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}
