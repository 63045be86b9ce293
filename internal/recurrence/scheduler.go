package recurrence

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/internal/events"
	"github.com/flowdeck/flowdeck/internal/tasks"
)

// DefaultDueSoonDays is the warning window for due-date-approaching events.
const DefaultDueSoonDays = 2

// Config holds dependencies for the scheduler.
type Config struct {
	Store       *tasks.Store
	Bus         *events.Bus
	Clock       Clock  // nil means the system clock
	TickCron    string // cron expression gating automatic ticks; empty means every poll
	DueSoonDays int
}

// Scheduler owns recurring-task templates and materializes tasks when due.
// Tick is the only entry point that creates recurring tasks.
type Scheduler struct {
	store       *tasks.Store
	bus         *events.Bus
	clock       Clock
	cron        *CronExpr
	dueSoonDays int

	mu        sync.Mutex
	templates map[string]*Template
	dueSeen   map[string]bool // task IDs already flagged due-soon

	done chan struct{}
}

// New creates a Scheduler.
func New(cfg Config) (*Scheduler, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	dueSoon := cfg.DueSoonDays
	if dueSoon <= 0 {
		dueSoon = DefaultDueSoonDays
	}

	s := &Scheduler{
		store:       cfg.Store,
		bus:         cfg.Bus,
		clock:       clock,
		dueSoonDays: dueSoon,
		templates:   make(map[string]*Template),
		dueSeen:     make(map[string]bool),
		done:        make(chan struct{}),
	}

	if cfg.TickCron != "" {
		expr, err := ParseCron(cfg.TickCron)
		if err != nil {
			return nil, fmt.Errorf("scheduler tick: %w", err)
		}
		s.cron = expr
	}
	return s, nil
}

// Start begins the polling loop. Tick cadence follows the configured cron
// expression; without one, every poll ticks.
func (s *Scheduler) Start() {
	slog.Info("scheduler started", "templates", len(s.templates))
	go s.loop()
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	close(s.done)
	slog.Info("scheduler stopped")
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := s.clock.Now()
			if s.cron != nil && !s.cron.Matches(now) {
				continue
			}
			s.Tick(now)
		}
	}
}

// AddTemplate registers a template, computing its first NextRun.
func (s *Scheduler) AddTemplate(t *Template) (*Template, error) {
	if t.Title == "" {
		return nil, &tasks.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !ValidFrequency(t.Frequency) {
		return nil, &tasks.ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown value %q", t.Frequency)}
	}
	if t.Priority == "" {
		t.Priority = tasks.PriorityMedium
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if t.ID == "" {
		t.ID = GenerateTemplateID()
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.StartDate.IsZero() {
		t.StartDate = now
	}
	if t.NextRun == nil && t.Active {
		next := t.StartDate
		if !next.After(now) {
			next = ComputeNextRun(t, now)
		}
		if !next.IsZero() {
			t.NextRun = &next
		}
	}

	s.templates[t.ID] = t.Clone()
	slog.Info("scheduler: template added", "id", t.ID, "frequency", string(t.Frequency))
	return t.Clone(), nil
}

// UpdateTemplate replaces a template's specification, recomputing NextRun
// when the recurrence shape changed.
func (s *Scheduler) UpdateTemplate(t *Template) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.templates[t.ID]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", t.ID, tasks.ErrNotFound)
	}
	if !ValidFrequency(t.Frequency) {
		return nil, &tasks.ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown value %q", t.Frequency)}
	}

	now := s.clock.Now()
	t.CreatedAt = existing.CreatedAt
	t.LastRun = existing.LastRun
	t.UpdatedAt = now
	if t.Active {
		next := ComputeNextRun(t, now)
		if next.IsZero() {
			t.NextRun = nil
		} else {
			t.NextRun = &next
		}
	} else {
		t.NextRun = nil
	}

	s.templates[t.ID] = t.Clone()
	return t.Clone(), nil
}

// SetActive pauses or resumes a template.
func (s *Scheduler) SetActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok {
		return fmt.Errorf("template %s: %w", id, tasks.ErrNotFound)
	}

	now := s.clock.Now()
	t.Active = active
	t.UpdatedAt = now
	if active {
		next := ComputeNextRun(t, now)
		if !next.IsZero() {
			t.NextRun = &next
		}
	} else {
		t.NextRun = nil
	}
	return nil
}

// RemoveTemplate deletes a template. Unknown IDs are a no-op.
func (s *Scheduler) RemoveTemplate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.templates, id)
}

// GetTemplate returns a template by ID.
func (s *Scheduler) GetTemplate(id string) (*Template, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Templates returns a snapshot of all templates.
func (s *Scheduler) Templates() []*Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Template, 0, len(s.templates))
	for _, t := range s.templates {
		result = append(result, t.Clone())
	}
	return result
}

// Import replaces all templates from a snapshot.
func (s *Scheduler) Import(templates []*Template) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates = make(map[string]*Template, len(templates))
	for _, t := range templates {
		s.templates[t.ID] = t.Clone()
	}
}

// Tick materializes every active template whose NextRun has arrived and
// whose end date has not passed, then scans for approaching due dates.
// Idempotent per instant: NextRun advances past now on materialization, so
// a second call with the same now creates nothing.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	for _, t := range s.templates {
		if !t.Active || t.NextRun == nil {
			continue
		}
		if t.NextRun.After(now) {
			continue
		}
		if t.EndDate != nil && !t.EndDate.After(now) {
			t.Active = false
			t.NextRun = nil
			slog.Info("scheduler: template expired", "id", t.ID)
			continue
		}
		s.materializeLocked(t, now)
	}
	s.mu.Unlock()

	s.scanDueDates(now)
}

// Materialize creates a task from the template immediately, regardless of
// NextRun, and advances the recurrence bookkeeping.
func (s *Scheduler) Materialize(id string) (*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, tasks.ErrNotFound)
	}
	return s.materializeLocked(t, s.clock.Now())
}

// materializeLocked creates the task through the store and advances
// LastRun/NextRun. Caller must hold s.mu.
func (s *Scheduler) materializeLocked(t *Template, now time.Time) (*tasks.Task, error) {
	task, err := s.store.Create(tasks.CreateRequest{
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		DueDate:     t.EndDate,
		Assignees:   t.Assignees,
		Tags:        t.Tags,
		TemplateID:  t.ID,
	}, "scheduler")
	if err != nil {
		slog.Error("scheduler: materialize failed", "template", t.ID, "error", err)
		return nil, fmt.Errorf("materialize %s: %w", t.ID, err)
	}

	last := now
	t.LastRun = &last
	t.UpdatedAt = now
	if t.Frequency == FreqOnce {
		t.Active = false
		t.NextRun = nil
	} else {
		next := ComputeNextRun(t, now)
		t.NextRun = &next
	}

	if s.bus != nil {
		s.bus.Publish(events.NewTypedEvent(events.SourceScheduler, events.MaterializedPayload{
			TemplateID: t.ID,
			TaskID:     task.ID,
		}))
	}
	slog.Info("scheduler: materialized", "template", t.ID, "task", task.ID)
	return task, nil
}

// scanDueDates publishes task.due_soon for tasks entering the warning
// window. Each task is flagged once per due date.
func (s *Scheduler) scanDueDates(now time.Time) {
	board := s.store.Board()
	for _, t := range s.store.List(tasks.Filter{}) {
		if t.DueDate == nil || board.IsCompletion(t.Status) {
			continue
		}
		daysLeft := int(t.DueDate.Sub(now).Hours() / 24)
		if daysLeft < 0 || daysLeft > s.dueSoonDays {
			continue
		}

		key := t.ID + "@" + t.DueDate.Format(time.RFC3339)
		s.mu.Lock()
		seen := s.dueSeen[key]
		if !seen {
			s.dueSeen[key] = true
		}
		s.mu.Unlock()
		if seen {
			continue
		}

		if s.bus != nil {
			s.bus.Publish(events.NewTypedEvent(events.SourceScheduler, events.DueSoonPayload{
				TaskID:   t.ID,
				Title:    t.Title,
				DaysLeft: daysLeft,
			}))
		}
	}
}
