package tasks

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/internal/board"
	"github.com/flowdeck/flowdeck/internal/events"
	"github.com/flowdeck/flowdeck/internal/notify"
)

// Config holds dependencies for the task store.
type Config struct {
	Board    *board.Registry
	Bus      *events.Bus
	Notifier notify.Notifier
	Now      func() time.Time // nil means time.Now
}

// Store owns the task map and every Task / HistoryEntry lifecycle.
// A single mutex guards all mutations so scheduler ticks and API calls
// can interleave safely.
type Store struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	board    *board.Registry
	bus      *events.Bus
	notifier notify.Notifier
	now      func() time.Time
}

// NewStore creates an empty task store.
func NewStore(cfg Config) *Store {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Store{
		tasks:    make(map[string]*Task),
		board:    cfg.Board,
		bus:      cfg.Bus,
		notifier: notifier,
		now:      now,
	}
}

// Board returns the column registry the store validates statuses against.
func (s *Store) Board() *board.Registry {
	return s.board
}

// CreateRequest carries the caller-settable fields for a new task.
type CreateRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    Priority        `json:"priority,omitempty"`
	Status      string          `json:"status,omitempty"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Assignees   []string        `json:"assignees,omitempty"`
	Watchers    []string        `json:"watchers,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Checklist   []ChecklistItem `json:"checklist,omitempty"`
	TemplateID  string          `json:"template_id,omitempty"`
	MilestoneID string          `json:"milestone_id,omitempty"`
}

// Create makes a new task, stamps id and timestamps, and records the
// creation history entry.
func (s *Store) Create(req CreateRequest, actor string) (*Task, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !ValidPriority(req.Priority) {
		return nil, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown value %q", req.Priority)}
	}
	status := req.Status
	if status == "" {
		status = s.board.First().ID
	}
	if !s.board.Exists(status) {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown column %q", status)}
	}

	s.mu.Lock()
	now := s.now()
	t := &Task{
		ID:          GenerateTaskID(),
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      status,
		DueDate:     req.DueDate,
		Assignees:   append([]string(nil), req.Assignees...),
		Watchers:    append([]string(nil), req.Watchers...),
		Tags:        append([]string(nil), req.Tags...),
		Checklist:   append([]ChecklistItem(nil), req.Checklist...),
		TemplateID:  req.TemplateID,
		MilestoneID: req.MilestoneID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.appendHistoryLocked(t, HistoryEntry{
		Action:  ActionCreation,
		Current: t.Title,
		Actor:   actor,
	})
	s.tasks[t.ID] = t
	result := t.Clone()
	s.mu.Unlock()

	s.publish(events.NewTaskEvent(events.EventTaskCreated, events.SourceStore, t.ID, map[string]any{
		"title":  result.Title,
		"status": result.Status,
	}))
	slog.Info("tasks: created", "id", result.ID, "title", result.Title)
	return result, nil
}

// Patch describes a partial task update. Nil fields are left unchanged.
type Patch struct {
	Title        *string          `json:"title,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Priority     *Priority        `json:"priority,omitempty"`
	DueDate      *time.Time       `json:"due_date,omitempty"`
	ClearDueDate bool             `json:"clear_due_date,omitempty"`
	Assignees    *[]string        `json:"assignees,omitempty"`
	Watchers     *[]string        `json:"watchers,omitempty"`
	Tags         *[]string        `json:"tags,omitempty"`
	Checklist    *[]ChecklistItem `json:"checklist,omitempty"`
	MilestoneID  *string          `json:"milestone_id,omitempty"`
	TimeSpentSec *int             `json:"time_spent_sec,omitempty"`
}

// Update applies a patch, recording one history entry per changed field.
// Watchers are notified when title, description, priority or due date change.
func (s *Store) Update(id string, patch Patch, actor string) (*Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if patch.Priority != nil && !ValidPriority(*patch.Priority) {
		return nil, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown value %q", *patch.Priority)}
	}

	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}

	var (
		notifyDetail   []string
		priorityEvent  *events.Event
		assigneeEvents []events.Event
	)

	if patch.Title != nil && *patch.Title != t.Title {
		s.appendHistoryLocked(t, HistoryEntry{Action: ActionEdit, Field: "title", Previous: t.Title, Current: *patch.Title, Actor: actor})
		t.Title = *patch.Title
		notifyDetail = append(notifyDetail, "title")
	}
	if patch.Description != nil && *patch.Description != t.Description {
		s.appendHistoryLocked(t, HistoryEntry{Action: ActionEdit, Field: "description", Previous: t.Description, Current: *patch.Description, Actor: actor})
		t.Description = *patch.Description
		notifyDetail = append(notifyDetail, "description")
	}
	if patch.Priority != nil && *patch.Priority != t.Priority {
		s.appendHistoryLocked(t, HistoryEntry{Action: ActionEdit, Field: "priority", Previous: string(t.Priority), Current: string(*patch.Priority), Actor: actor})
		ev := events.NewTypedEvent(events.SourceStore, events.TaskFieldPayload{
			TaskID: t.ID, Field: "priority", Previous: string(t.Priority), Current: string(*patch.Priority),
		})
		ev.Type = events.EventTaskPriorityChanged
		priorityEvent = &ev
		t.Priority = *patch.Priority
		notifyDetail = append(notifyDetail, "priority")
	}
	if patch.ClearDueDate && t.DueDate != nil {
		s.appendHistoryLocked(t, HistoryEntry{Action: ActionEdit, Field: "due_date", Previous: formatDate(t.DueDate), Actor: actor})
		t.DueDate = nil
		notifyDetail = append(notifyDetail, "due date")
	} else if patch.DueDate != nil && !equalDate(t.DueDate, patch.DueDate) {
		s.appendHistoryLocked(t, HistoryEntry{Action: ActionEdit, Field: "due_date", Previous: formatDate(t.DueDate), Current: formatDate(patch.DueDate), Actor: actor})
		d := *patch.DueDate
		t.DueDate = &d
		notifyDetail = append(notifyDetail, "due date")
	}
	if patch.Assignees != nil {
		prev := t.Assignees
		next := append([]string(nil), (*patch.Assignees)...)
		if !equalStrs(prev, next) {
			s.appendHistoryLocked(t, HistoryEntry{Action: ActionAssignment, Field: "assignees", Previous: strings.Join(prev, ","), Current: strings.Join(next, ","), Actor: actor})
			for _, a := range next {
				if !containsStr(prev, a) {
					ev := events.NewTaskEvent(events.EventTaskAssigneeAdded, events.SourceStore, t.ID, map[string]any{"assignee": a})
					assigneeEvents = append(assigneeEvents, ev)
				}
			}
			t.Assignees = next
		}
	}
	if patch.Watchers != nil {
		prev := t.Watchers
		next := append([]string(nil), (*patch.Watchers)...)
		if !equalStrs(prev, next) {
			s.appendHistoryLocked(t, HistoryEntry{Action: ActionEdit, Field: "watchers", Previous: strings.Join(prev, ","), Current: strings.Join(next, ","), Actor: actor})
			t.Watchers = next
		}
	}
	if patch.Tags != nil {
		prev := t.Tags
		next := append([]string(nil), (*patch.Tags)...)
		if !equalStrs(prev, next) {
			s.appendHistoryLocked(t, HistoryEntry{Action: ActionEdit, Field: "tags", Previous: strings.Join(prev, ","), Current: strings.Join(next, ","), Actor: actor})
			t.Tags = next
		}
	}
	if patch.Checklist != nil {
		next := append([]ChecklistItem(nil), (*patch.Checklist)...)
		if !equalChecklists(t.Checklist, next) {
			s.appendHistoryLocked(t, HistoryEntry{Action: ActionEdit, Field: "checklist", Previous: checklistLabel(t.Checklist), Current: checklistLabel(next), Actor: actor})
			t.Checklist = next
		}
	}
	if patch.MilestoneID != nil && *patch.MilestoneID != t.MilestoneID {
		s.appendHistoryLocked(t, HistoryEntry{Action: ActionEdit, Field: "milestone", Previous: t.MilestoneID, Current: *patch.MilestoneID, Actor: actor})
		t.MilestoneID = *patch.MilestoneID
	}
	if patch.TimeSpentSec != nil && *patch.TimeSpentSec != t.TimeSpentSec {
		s.appendHistoryLocked(t, HistoryEntry{Action: ActionEdit, Field: "time_spent", Previous: strconv.Itoa(t.TimeSpentSec), Current: strconv.Itoa(*patch.TimeSpentSec), Actor: actor})
		t.TimeSpentSec = *patch.TimeSpentSec
	}

	t.UpdatedAt = s.now()
	result := t.Clone()
	watchers := append([]string(nil), t.Watchers...)
	s.mu.Unlock()

	s.publish(events.NewTaskEvent(events.EventTaskUpdated, events.SourceStore, result.ID, map[string]any{
		"fields": notifyDetail,
	}))
	if priorityEvent != nil {
		s.publish(*priorityEvent)
	}
	for _, ev := range assigneeEvents {
		s.publish(ev)
	}
	if len(notifyDetail) > 0 {
		s.notifyWatchers(watchers, result.Title, notify.KindUpdated,
			"changed "+strings.Join(notifyDetail, ", "), "/tasks/"+result.ID)
	}
	return result, nil
}

// Move transitions a task to a new column. Moving into a completion column
// is gated on the dependency graph: unmet dependencies reject the move with
// DependencyBlockedError and no state changes at all.
func (s *Store) Move(id, newStatus, actor string) (*Task, error) {
	if !s.board.Exists(newStatus) {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown column %q", newStatus)}
	}

	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("move %s: %w", id, ErrNotFound)
	}

	completing := s.board.IsCompletion(newStatus)
	if completing {
		if pending := s.pendingDependenciesLocked(t); pending > 0 {
			s.mu.Unlock()
			return nil, &DependencyBlockedError{Pending: pending}
		}
	}

	oldStatus := t.Status
	t.Status = newStatus
	now := s.now()
	if completing {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	s.appendHistoryLocked(t, HistoryEntry{Action: ActionMove, Field: "status", Previous: oldStatus, Current: newStatus, Actor: actor})
	t.UpdatedAt = now
	result := t.Clone()
	watchers := append([]string(nil), t.Watchers...)
	s.mu.Unlock()

	s.publish(events.NewTypedEvent(events.SourceStore, events.TaskMovedPayload{
		TaskID: result.ID, FromColumn: oldStatus, ToColumn: newStatus, Completed: completing,
	}))
	if completing {
		s.publish(events.NewTaskEvent(events.EventTaskCompleted, events.SourceStore, result.ID, map[string]any{
			"title": result.Title,
		}))
	}
	s.notifyWatchers(watchers, result.Title, notify.KindStatusChanged,
		s.columnLabel(oldStatus)+" → "+s.columnLabel(newStatus), "/tasks/"+result.ID)
	return result, nil
}

// Duplicate clones a task's content into a fresh task: status resets to the
// first column, time tracking, completion stamp and watchers are cleared,
// and dependency links are not copied. The clone starts a new history.
func (s *Store) Duplicate(id, actor string) (*Task, error) {
	s.mu.Lock()
	src, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("duplicate %s: %w", id, ErrNotFound)
	}

	now := s.now()
	dup := src.Clone()
	dup.ID = GenerateTaskID()
	dup.Status = s.board.First().ID
	dup.CompletedAt = nil
	dup.TimeSpentSec = 0
	dup.Watchers = nil
	dup.DependsOn = nil
	dup.Blocks = nil
	dup.History = nil
	dup.CreatedAt = now
	dup.UpdatedAt = now
	s.appendHistoryLocked(dup, HistoryEntry{
		Action:  ActionCreation,
		Field:   "duplicated_from",
		Current: src.ID,
		Actor:   actor,
	})
	s.tasks[dup.ID] = dup
	result := dup.Clone()
	s.mu.Unlock()

	s.publish(events.NewTaskEvent(events.EventTaskDuplicated, events.SourceStore, result.ID, map[string]any{
		"source": id,
	}))
	slog.Info("tasks: duplicated", "source", id, "id", result.ID)
	return result, nil
}

// Delete removes a task. Its ID is stripped from every other task's
// dependency sets first, and a deletion entry is recorded on the returned
// task so callers can capture it for audit export before it is gone.
func (s *Store) Delete(id, actor, reason string) (*Task, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	for _, other := range s.tasks {
		if other.ID == id {
			continue
		}
		other.DependsOn = removeStr(other.DependsOn, id)
		other.Blocks = removeStr(other.Blocks, id)
	}

	s.appendHistoryLocked(t, HistoryEntry{
		Action:  ActionDeletion,
		Current: reason,
		Actor:   actor,
	})
	result := t.Clone()
	delete(s.tasks, id)
	s.mu.Unlock()

	s.publish(events.NewTaskEvent(events.EventTaskDeleted, events.SourceStore, id, map[string]any{
		"title":  result.Title,
		"reason": reason,
	}))
	slog.Info("tasks: deleted", "id", id, "reason", reason)
	return result, nil
}

// AddComment appends a comment and its history entry, notifying watchers.
func (s *Store) AddComment(id, author, text string) (*Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "comment", Reason: "must not be empty"}
	}

	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}

	now := s.now()
	t.Comments = append(t.Comments, Comment{
		ID:        GenerateCommentID(),
		Author:    author,
		Text:      text,
		Timestamp: now,
	})
	s.appendHistoryLocked(t, HistoryEntry{Action: ActionComment, Current: text, Actor: author})
	t.UpdatedAt = now
	result := t.Clone()
	watchers := append([]string(nil), t.Watchers...)
	s.mu.Unlock()

	s.notifyWatchers(watchers, result.Title, notify.KindCommented, text, "/tasks/"+result.ID)
	return result, nil
}

// Get returns a copy of a task by ID.
func (s *Store) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

// Filter defines criteria for listing tasks. Zero fields match everything.
type Filter struct {
	Status   string   `json:"status,omitempty"`
	Assignee string   `json:"assignee,omitempty"`
	Tag      string   `json:"tag,omitempty"`
	Priority Priority `json:"priority,omitempty"`
	Query    string   `json:"query,omitempty"` // free text over title, description, comments
}

// List returns tasks matching the filter, sorted by UpdatedAt descending.
func (s *Store) List(filter Filter) []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(filter.Query)
	var result []*Task
	for _, t := range s.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Assignee != "" && !containsStr(t.Assignees, filter.Assignee) {
			continue
		}
		if filter.Tag != "" && !containsStr(t.Tags, filter.Tag) {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if query != "" && !matchesQuery(t, query) {
			continue
		}
		result = append(result, t.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result
}

// matchesQuery reports whether the lowercased query appears in the task's
// title, description or any comment text. query must already be lowercase.
func matchesQuery(t *Task, query string) bool {
	if strings.Contains(strings.ToLower(t.Title), query) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Description), query) {
		return true
	}
	for _, c := range t.Comments {
		if strings.Contains(strings.ToLower(c.Text), query) {
			return true
		}
	}
	return false
}

// History returns the append-only change log for a task. Unknown IDs
// return an empty slice: history is a query, not a command.
func (s *Store) History(id string) []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	return append([]HistoryEntry(nil), t.History...)
}

// Export returns a deep copy of every task, sorted by creation time.
func (s *Store) Export() []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		result = append(result, t.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Import replaces the store contents from a snapshot.
func (s *Store) Import(tasks []*Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		s.tasks[t.ID] = t.Clone()
	}
}

// Len returns the number of tasks in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// ReassignColumn moves every task in fromColumn to toColumn, recording a
// move history entry per task. Used when a column is deleted or the board
// is reset; dependency gating does not apply to forced reassignment.
func (s *Store) ReassignColumn(fromColumn, toColumn, actor string) int {
	s.mu.Lock()
	var moved []*Task
	now := s.now()
	for _, t := range s.tasks {
		if t.Status != fromColumn {
			continue
		}
		s.appendHistoryLocked(t, HistoryEntry{Action: ActionMove, Field: "status", Previous: fromColumn, Current: toColumn, Actor: actor})
		t.Status = toColumn
		t.CompletedAt = nil
		t.UpdatedAt = now
		moved = append(moved, t.Clone())
	}
	s.mu.Unlock()

	for _, t := range moved {
		s.publish(events.NewTypedEvent(events.SourceBoard, events.TaskMovedPayload{
			TaskID: t.ID, FromColumn: fromColumn, ToColumn: toColumn,
		}))
	}
	return len(moved)
}

// pendingDependenciesLocked counts dependencies not yet in a completion
// column. Dangling IDs are dropped, not counted. Caller must hold s.mu.
func (s *Store) pendingDependenciesLocked(t *Task) int {
	pending := 0
	for _, depID := range t.DependsOn {
		dep, ok := s.tasks[depID]
		if !ok {
			continue
		}
		if !s.board.IsCompletion(dep.Status) {
			pending++
		}
	}
	return pending
}

// appendHistoryLocked stamps and appends a history entry. Caller must hold s.mu.
func (s *Store) appendHistoryLocked(t *Task, entry HistoryEntry) {
	entry.ID = GenerateHistoryID()
	entry.TaskID = t.ID
	if entry.Actor == "" {
		entry.Actor = "system"
	}
	entry.Timestamp = s.now()
	t.History = append(t.History, entry)
}

func (s *Store) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// notifyWatchers delivers a fire-and-forget notification. A panicking or
// slow sink must never fail or block the store operation that triggered it.
func (s *Store) notifyWatchers(watchers []string, title string, kind notify.Kind, detail, deepLink string) {
	if len(watchers) == 0 {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Warn("tasks: notifier panicked", "panic", r)
			}
		}()
		s.notifier.Notify(watchers, title, kind, detail, deepLink)
	}()
}

func (s *Store) columnLabel(id string) string {
	if c, ok := s.board.Get(id); ok {
		return c.Name
	}
	return id
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func equalDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalChecklists(a, b []ChecklistItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// checklistLabel summarizes a checklist for a history entry.
func checklistLabel(items []ChecklistItem) string {
	done := 0
	for _, item := range items {
		if item.Done {
			done++
		}
	}
	return fmt.Sprintf("%d/%d done", done, len(items))
}

func equalStrs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
