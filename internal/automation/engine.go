package automation

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/flowdeck/flowdeck/internal/events"
	"github.com/flowdeck/flowdeck/internal/notify"
	"github.com/flowdeck/flowdeck/internal/tasks"
)

// Actor is the history actor name for rule-driven mutations.
const Actor = "automation"

// retriggerCooldown keeps a rule from re-firing for the same task in a
// tight loop: rule actions themselves publish lifecycle events, and
// without a cooldown a set_priority action could re-trigger the very rule
// that ran it.
const retriggerCooldown = time.Minute

// Config holds dependencies for the rule engine.
type Config struct {
	Store    *tasks.Store
	Bus      *events.Bus
	Notifier notify.Notifier
	Now      func() time.Time // nil means time.Now
}

// EventContext carries the lifecycle event data rules evaluate against.
type EventContext struct {
	TaskID string
}

// Result reports how many rules executed for one event.
type Result struct {
	Executed int
}

// Engine owns automation rules. It subscribes to the lifecycle bus and is
// otherwise a pure consumer/producer against the task store. Action
// failures are logged and skipped, never propagated: a misbehaving rule
// must not block the lifecycle event that triggered it.
type Engine struct {
	store    *tasks.Store
	bus      *events.Bus
	notifier notify.Notifier
	now      func() time.Time

	mu       sync.Mutex
	rules    map[string]*Rule
	lastFire map[string]time.Time // ruleID+taskID -> last execution

	unsubscribe func()
}

// NewEngine creates a rule engine.
func NewEngine(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Engine{
		store:    cfg.Store,
		bus:      cfg.Bus,
		notifier: notifier,
		now:      now,
		rules:    make(map[string]*Rule),
		lastFire: make(map[string]time.Time),
	}
}

// Start subscribes the engine to the lifecycle events rules can trigger on.
func (e *Engine) Start() {
	e.unsubscribe = e.bus.Subscribe(e.handleEvent,
		events.EventTaskCreated,
		events.EventTaskCompleted,
		events.EventTaskDueSoon,
		events.EventTaskMoved,
		events.EventTaskPriorityChanged,
		events.EventTaskAssigneeAdded,
	)
	slog.Info("automation: engine started", "rules", len(e.rules))
}

// Stop unsubscribes from the bus.
func (e *Engine) Stop() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
}

func (e *Engine) handleEvent(ev events.Event) {
	trigger, ok := triggerForEvent(ev.Type)
	if !ok {
		return
	}
	e.Evaluate(trigger, EventContext{TaskID: ev.TaskID})
}

func triggerForEvent(t events.EventType) (Trigger, bool) {
	switch t {
	case events.EventTaskCreated:
		return TriggerTaskCreated, true
	case events.EventTaskCompleted:
		return TriggerTaskCompleted, true
	case events.EventTaskDueSoon:
		return TriggerDueDateApproaching, true
	case events.EventTaskMoved:
		return TriggerStatusChanged, true
	case events.EventTaskPriorityChanged:
		return TriggerPriorityChanged, true
	case events.EventTaskAssigneeAdded:
		return TriggerAssigneeAdded, true
	}
	return "", false
}

// Evaluate runs every active rule whose trigger matches. Conditions are
// AND-ed (vacuously true when empty); actions execute in order with
// at-least-once semantics — there is no rollback of earlier actions when a
// later one fails.
func (e *Engine) Evaluate(trigger Trigger, ctx EventContext) Result {
	task, err := e.store.Get(ctx.TaskID)
	if err != nil {
		// Task gone between event and evaluation; nothing to match against.
		return Result{}
	}

	e.mu.Lock()
	var matched []*Rule
	now := e.now()
	for _, r := range e.rules {
		if !r.Active || r.Trigger != trigger {
			continue
		}
		key := r.ID + "/" + ctx.TaskID
		if last, ok := e.lastFire[key]; ok && now.Sub(last) < retriggerCooldown {
			continue
		}
		if !e.conditionsHold(r, task, now) {
			continue
		}
		e.lastFire[key] = now
		matched = append(matched, r)
	}
	e.mu.Unlock()

	executed := 0
	for _, r := range matched {
		failed := e.runActions(r, task)

		e.mu.Lock()
		if live, ok := e.rules[r.ID]; ok {
			live.ExecutionCount++
			ts := e.now()
			live.LastExecutedAt = &ts
		}
		e.mu.Unlock()
		executed++

		e.bus.Publish(events.NewTypedEvent(events.SourceRules, events.RuleExecutedPayload{
			RuleID:  r.ID,
			Trigger: string(trigger),
			TaskID:  ctx.TaskID,
			Actions: len(r.Actions),
			Failed:  failed,
		}))
		slog.Info("automation: rule executed", "rule", r.ID, "trigger", string(trigger), "task", ctx.TaskID, "failed_actions", failed)
	}
	return Result{Executed: executed}
}

func (e *Engine) conditionsHold(r *Rule, task *tasks.Task, now time.Time) bool {
	for _, c := range r.Conditions {
		if !e.conditionHolds(c, task, now) {
			return false
		}
	}
	return true
}

func (e *Engine) conditionHolds(c Condition, task *tasks.Task, now time.Time) bool {
	switch c.Kind {
	case CondPriorityEquals:
		return string(task.Priority) == c.Value
	case CondStatusEquals:
		return task.Status == c.Value
	case CondDaysUntilDueEquals:
		if task.DueDate == nil {
			return false
		}
		want, err := strconv.Atoi(c.Value)
		if err != nil {
			return false
		}
		return int(task.DueDate.Sub(now).Hours()/24) == want
	case CondHasTag:
		for _, tag := range task.Tags {
			if tag == c.Value {
				return true
			}
		}
		return false
	default:
		slog.Warn("automation: unknown condition kind", "kind", string(c.Kind))
		return false
	}
}

// runActions executes a rule's actions in order, returning the number that
// failed. Failures are logged and execution continues.
func (e *Engine) runActions(r *Rule, task *tasks.Task) (failed int) {
	for _, a := range r.Actions {
		if err := e.runAction(a, task); err != nil {
			failed++
			slog.Warn("automation: action failed", "rule", r.ID, "action", string(a.Kind), "error", err)
		}
	}
	return failed
}

func (e *Engine) runAction(a Action, task *tasks.Task) error {
	switch a.Kind {
	case ActSendNotification:
		e.notifier.Notify(task.Watchers, task.Title, notify.KindUpdated, a.Value, "/tasks/"+task.ID)
		return nil

	case ActSetStatus:
		_, err := e.store.Move(task.ID, a.Value, Actor)
		return err

	case ActSetPriority:
		p := tasks.Priority(a.Value)
		_, err := e.store.Update(task.ID, tasks.Patch{Priority: &p}, Actor)
		return err

	case ActAssignCollaborator:
		current, err := e.store.Get(task.ID)
		if err != nil {
			return err
		}
		for _, assignee := range current.Assignees {
			if assignee == a.Value {
				return nil // already assigned
			}
		}
		next := append(current.Assignees, a.Value)
		_, err = e.store.Update(task.ID, tasks.Patch{Assignees: &next}, Actor)
		return err

	case ActAddTag:
		current, err := e.store.Get(task.ID)
		if err != nil {
			return err
		}
		for _, tag := range current.Tags {
			if tag == a.Value {
				return nil
			}
		}
		next := append(current.Tags, a.Value)
		_, err = e.store.Update(task.ID, tasks.Patch{Tags: &next}, Actor)
		return err

	case ActCreateRelatedTask:
		title := a.Value
		if title == "" {
			title = "Follow-up: " + task.Title
		}
		_, err := e.store.Create(tasks.CreateRequest{
			Title:       title,
			Description: "Created by automation for " + task.ID,
			Priority:    task.Priority,
			Tags:        task.Tags,
		}, Actor)
		return err

	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// AddRule registers a rule.
func (e *Engine) AddRule(r *Rule) (*Rule, error) {
	if r.Name == "" {
		return nil, &tasks.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !ValidTrigger(r.Trigger) {
		return nil, &tasks.ValidationError{Field: "trigger", Reason: fmt.Sprintf("unknown value %q", r.Trigger)}
	}
	if len(r.Actions) == 0 {
		return nil, &tasks.ValidationError{Field: "actions", Reason: "must not be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if r.ID == "" {
		r.ID = GenerateRuleID()
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	e.rules[r.ID] = r.Clone()
	slog.Info("automation: rule added", "id", r.ID, "name", r.Name, "trigger", string(r.Trigger))
	return r.Clone(), nil
}

// UpdateRule replaces a rule's definition, preserving its bookkeeping.
func (e *Engine) UpdateRule(r *Rule) (*Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, ok := e.rules[r.ID]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", r.ID, tasks.ErrNotFound)
	}
	if !ValidTrigger(r.Trigger) {
		return nil, &tasks.ValidationError{Field: "trigger", Reason: fmt.Sprintf("unknown value %q", r.Trigger)}
	}

	r.CreatedAt = existing.CreatedAt
	r.ExecutionCount = existing.ExecutionCount
	r.LastExecutedAt = existing.LastExecutedAt
	r.UpdatedAt = e.now()
	e.rules[r.ID] = r.Clone()
	return r.Clone(), nil
}

// RemoveRule deletes a rule. Unknown IDs are a no-op.
func (e *Engine) RemoveRule(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, id)
}

// GetRule returns a rule by ID.
func (e *Engine) GetRule(id string) (*Rule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rules[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Rules returns a snapshot of all rules.
func (e *Engine) Rules() []*Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]*Rule, 0, len(e.rules))
	for _, r := range e.rules {
		result = append(result, r.Clone())
	}
	return result
}

// Import replaces all rules from a snapshot.
func (e *Engine) Import(rules []*Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = make(map[string]*Rule, len(rules))
	for _, r := range rules {
		e.rules[r.ID] = r.Clone()
	}
}
