package events

import (
	"encoding/json"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
	TaskRef() string
}

// payloadToMap converts a typed payload to the generic Payload map.
func payloadToMap(p EventPayload) map[string]any {
	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// TaskMovedPayload describes a task changing column.
type TaskMovedPayload struct {
	TaskID     string `json:"task_id"`
	FromColumn string `json:"from_column"`
	ToColumn   string `json:"to_column"`
	Completed  bool   `json:"completed"`
}

func (TaskMovedPayload) EventType() EventType { return EventTaskMoved }
func (p TaskMovedPayload) TaskRef() string    { return p.TaskID }

// TaskFieldPayload describes a single field change on a task.
type TaskFieldPayload struct {
	TaskID   string `json:"task_id"`
	Field    string `json:"field"`
	Previous string `json:"previous,omitempty"`
	Current  string `json:"current,omitempty"`
}

func (TaskFieldPayload) EventType() EventType { return EventTaskUpdated }
func (p TaskFieldPayload) TaskRef() string    { return p.TaskID }

// DueSoonPayload is published when a task's due date enters the warning window.
type DueSoonPayload struct {
	TaskID   string `json:"task_id"`
	Title    string `json:"title"`
	DaysLeft int    `json:"days_left"`
}

func (DueSoonPayload) EventType() EventType { return EventTaskDueSoon }
func (p DueSoonPayload) TaskRef() string    { return p.TaskID }

// MaterializedPayload is published when a template spawns a task.
type MaterializedPayload struct {
	TemplateID string `json:"template_id"`
	TaskID     string `json:"task_id"`
}

func (MaterializedPayload) EventType() EventType { return EventTemplateMaterialized }
func (p MaterializedPayload) TaskRef() string    { return p.TaskID }

// RuleExecutedPayload is published after an automation rule runs its actions.
type RuleExecutedPayload struct {
	RuleID  string `json:"rule_id"`
	Trigger string `json:"trigger"`
	TaskID  string `json:"task_id,omitempty"`
	Actions int    `json:"actions"`
	Failed  int    `json:"failed"`
}

func (RuleExecutedPayload) EventType() EventType { return EventRuleExecuted }
func (p RuleExecutedPayload) TaskRef() string    { return p.TaskID }

// NotificationPayload carries a watcher notification to connected clients.
type NotificationPayload struct {
	WatcherIDs []string `json:"watcher_ids"`
	TaskTitle  string   `json:"task_title"`
	Kind       string   `json:"kind"` // "updated" | "status_changed" | "commented"
	Detail     string   `json:"detail"`
	DeepLink   string   `json:"deep_link"`
}

func (NotificationPayload) EventType() EventType { return EventNotification }
func (NotificationPayload) TaskRef() string      { return "" }
