// Package tasks implements the canonical task store, its dependency graph
// and the subtask tree service.
package tasks

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority represents the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is one of the known priority values.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// HistoryAction classifies a history entry.
type HistoryAction string

const (
	ActionCreation   HistoryAction = "creation"
	ActionEdit       HistoryAction = "edit"
	ActionMove       HistoryAction = "move"
	ActionAssignment HistoryAction = "assignment"
	ActionComment    HistoryAction = "comment"
	ActionDeletion   HistoryAction = "deletion"
)

// HistoryEntry is an immutable audit record of one change on a task.
// Entries are append-only: never mutated or reordered after creation.
type HistoryEntry struct {
	ID        string        `json:"id"`
	TaskID    string        `json:"task_id"`
	Action    HistoryAction `json:"action"`
	Field     string        `json:"field,omitempty"`
	Previous  string        `json:"previous,omitempty"`
	Current   string        `json:"current,omitempty"`
	Actor     string        `json:"actor"`
	Timestamp time.Time     `json:"timestamp"`
}

// Subtask is a nested, checkable sub-item of a task.
type Subtask struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Completed bool       `json:"completed"`
	Status    string     `json:"status"` // display mirror of Completed: "done" or "todo"
	Order     int        `json:"order"`
	Children  []*Subtask `json:"children,omitempty"`
}

// ChecklistItem is a flat, single-level checkable item.
type ChecklistItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Comment is a free-text note on a task.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Task represents a unit of work tracked through a workflow column.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      string     `json:"status"` // column ID from the board registry
	DueDate     *time.Time `json:"due_date,omitempty"`

	Assignees []string `json:"assignees,omitempty"`
	Watchers  []string `json:"watchers,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	// DependsOn holds tasks that must be done before this task may be done.
	// Blocks is the inverse view, always kept symmetric by the graph service.
	DependsOn []string `json:"depends_on,omitempty"`
	Blocks    []string `json:"blocks,omitempty"`

	Subtasks  []*Subtask      `json:"subtasks,omitempty"`
	Checklist []ChecklistItem `json:"checklist,omitempty"`
	Comments  []Comment       `json:"comments,omitempty"`
	History   []HistoryEntry  `json:"history"`

	TemplateID  string `json:"template_id,omitempty"`
	MilestoneID string `json:"milestone_id,omitempty"`

	TimeSpentSec int `json:"time_spent_sec,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.Assignees = append([]string(nil), t.Assignees...)
	c.Watchers = append([]string(nil), t.Watchers...)
	c.Tags = append([]string(nil), t.Tags...)
	c.DependsOn = append([]string(nil), t.DependsOn...)
	c.Blocks = append([]string(nil), t.Blocks...)
	c.Checklist = append([]ChecklistItem(nil), t.Checklist...)
	c.Comments = append([]Comment(nil), t.Comments...)
	c.History = append([]HistoryEntry(nil), t.History...)
	c.Subtasks = cloneSubtasks(t.Subtasks)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	return &c
}

func cloneSubtasks(subs []*Subtask) []*Subtask {
	if subs == nil {
		return nil
	}
	result := make([]*Subtask, len(subs))
	for i, s := range subs {
		c := *s
		c.Children = cloneSubtasks(s.Children)
		result[i] = &c
	}
	return result
}

// GenerateTaskID creates a unique task identifier.
func GenerateTaskID() string {
	return "task_" + shortID()
}

// GenerateSubtaskID creates a unique subtask identifier.
func GenerateSubtaskID() string {
	return "sub_" + shortID()
}

// GenerateHistoryID creates a unique history entry identifier.
func GenerateHistoryID() string {
	return "hist_" + shortID()
}

// GenerateCommentID creates a unique comment identifier.
func GenerateCommentID() string {
	return "cmt_" + shortID()
}

func shortID() string {
	u := uuid.New().String()
	return strings.ReplaceAll(u[:8], "-", "")
}

// containsStr reports whether s is present in list.
func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// removeStr removes every occurrence of s from list, preserving order.
func removeStr(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
