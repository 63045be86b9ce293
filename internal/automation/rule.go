// Package automation evaluates trigger/condition/action rules against task
// lifecycle events.
package automation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Trigger is the lifecycle event a rule reacts to.
type Trigger string

const (
	TriggerTaskCreated        Trigger = "task_created"
	TriggerTaskCompleted      Trigger = "task_completed"
	TriggerDueDateApproaching Trigger = "due_date_approaching"
	TriggerStatusChanged      Trigger = "status_changed"
	TriggerPriorityChanged    Trigger = "priority_changed"
	TriggerAssigneeAdded      Trigger = "assignee_added"
)

// ValidTrigger reports whether t is a known trigger.
func ValidTrigger(t Trigger) bool {
	switch t {
	case TriggerTaskCreated, TriggerTaskCompleted, TriggerDueDateApproaching,
		TriggerStatusChanged, TriggerPriorityChanged, TriggerAssigneeAdded:
		return true
	}
	return false
}

// ConditionKind classifies a rule condition.
type ConditionKind string

const (
	CondPriorityEquals     ConditionKind = "priority_equals"
	CondStatusEquals       ConditionKind = "status_equals"
	CondDaysUntilDueEquals ConditionKind = "days_until_due_equals"
	CondHasTag             ConditionKind = "has_tag"
)

// Condition is one predicate; a rule's conditions are AND-ed.
type Condition struct {
	Kind  ConditionKind `json:"kind" yaml:"kind"`
	Value string        `json:"value" yaml:"value"`
}

// ActionKind classifies a rule action.
type ActionKind string

const (
	ActSendNotification   ActionKind = "send_notification"
	ActSetStatus          ActionKind = "set_status"
	ActSetPriority        ActionKind = "set_priority"
	ActAssignCollaborator ActionKind = "assign_collaborator"
	ActAddTag             ActionKind = "add_tag"
	ActCreateRelatedTask  ActionKind = "create_related_task"
)

// Action is one step executed against the task store. Actions run in
// order; each is a small, idempotent store call.
type Action struct {
	Kind  ActionKind `json:"kind" yaml:"kind"`
	Value string     `json:"value,omitempty" yaml:"value,omitempty"`
}

// Rule is a trigger + condition set + ordered action list.
type Rule struct {
	ID             string      `json:"id" yaml:"id,omitempty"`
	Name           string      `json:"name" yaml:"name"`
	Active         bool        `json:"active" yaml:"active"`
	Trigger        Trigger     `json:"trigger" yaml:"trigger"`
	Conditions     []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions        []Action    `json:"actions" yaml:"actions"`
	ExecutionCount int         `json:"execution_count" yaml:"-"`
	LastExecutedAt *time.Time  `json:"last_executed_at,omitempty" yaml:"-"`
	CreatedAt      time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time   `json:"updated_at" yaml:"-"`
}

// Clone returns a deep copy of the rule.
func (r *Rule) Clone() *Rule {
	c := *r
	c.Conditions = append([]Condition(nil), r.Conditions...)
	c.Actions = append([]Action(nil), r.Actions...)
	if r.LastExecutedAt != nil {
		t := *r.LastExecutedAt
		c.LastExecutedAt = &t
	}
	return &c
}

// GenerateRuleID creates a unique rule identifier.
func GenerateRuleID() string {
	u := uuid.New().String()
	return "rule_" + strings.ReplaceAll(u[:8], "-", "")
}
