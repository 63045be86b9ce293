package recurrence

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowdeck/flowdeck/internal/tasks"
)

// Frequency is how often a template materializes a task.
type Frequency string

const (
	FreqOnce      Frequency = "once"
	FreqDaily     Frequency = "daily"
	FreqWeekly    Frequency = "weekly"
	FreqBiweekly  Frequency = "biweekly"
	FreqMonthly   Frequency = "monthly"
	FreqQuarterly Frequency = "quarterly"
	FreqYearly    Frequency = "yearly"
)

// ValidFrequency reports whether f is a known frequency.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FreqOnce, FreqDaily, FreqWeekly, FreqBiweekly, FreqMonthly, FreqQuarterly, FreqYearly:
		return true
	}
	return false
}

// Template is a recurring-task specification. The scheduler owns template
// lifecycles; tasks are only ever written through the task store.
type Template struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Priority    tasks.Priority `json:"priority,omitempty"`
	Assignees   []string       `json:"assignees,omitempty"`
	Tags        []string       `json:"tags,omitempty"`

	Frequency  Frequency  `json:"frequency"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	Weekdays   []int      `json:"weekdays,omitempty"`     // 1..7, Monday=1; weekly/biweekly only
	DayOfMonth int        `json:"day_of_month,omitempty"` // 1..31; monthly only

	Active  bool       `json:"active"`
	NextRun *time.Time `json:"next_run,omitempty"`
	LastRun *time.Time `json:"last_run,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	c := *t
	c.Assignees = append([]string(nil), t.Assignees...)
	c.Tags = append([]string(nil), t.Tags...)
	c.Weekdays = append([]int(nil), t.Weekdays...)
	if t.EndDate != nil {
		d := *t.EndDate
		c.EndDate = &d
	}
	if t.NextRun != nil {
		d := *t.NextRun
		c.NextRun = &d
	}
	if t.LastRun != nil {
		d := *t.LastRun
		c.LastRun = &d
	}
	return &c
}

// GenerateTemplateID creates a unique template identifier.
func GenerateTemplateID() string {
	u := uuid.New().String()
	return "tmpl_" + strings.ReplaceAll(u[:8], "-", "")
}

// ComputeNextRun returns the next occurrence strictly after now.
// FreqOnce returns the zero time: one-shot templates deactivate on
// materialization instead of rescheduling.
func ComputeNextRun(t *Template, now time.Time) time.Time {
	switch t.Frequency {
	case FreqOnce:
		if t.StartDate.After(now) {
			return t.StartDate
		}
		return time.Time{}
	case FreqDaily:
		return now.AddDate(0, 0, 1)
	case FreqWeekly:
		return nextWeekday(now, t.Weekdays)
	case FreqBiweekly:
		// Flat 15-day offset, not weekday-aware. Intentionally simpler
		// than weekly; matches the shipped behavior.
		return now.AddDate(0, 0, 15)
	case FreqMonthly:
		return addMonths(now, 1, t.DayOfMonth)
	case FreqQuarterly:
		return addMonths(now, 3, 0)
	case FreqYearly:
		return now.AddDate(1, 0, 0)
	default:
		return now.AddDate(0, 0, 1)
	}
}

// nextWeekday finds the first day strictly after now whose ISO weekday is
// in the set. An empty set degenerates to tomorrow.
func nextWeekday(now time.Time, weekdays []int) time.Time {
	if len(weekdays) == 0 {
		return now.AddDate(0, 0, 1)
	}
	set := make(map[int]bool, len(weekdays))
	for _, d := range weekdays {
		set[d] = true
	}
	for i := 1; i <= 7; i++ {
		cand := now.AddDate(0, 0, i)
		if set[isoWeekday(cand)] {
			return cand
		}
	}
	return now.AddDate(0, 0, 1)
}

// isoWeekday maps time.Weekday (Sunday=0) to ISO numbering (Monday=1..Sunday=7).
func isoWeekday(t time.Time) int {
	return (int(t.Weekday())+6)%7 + 1
}

// addMonths advances by whole calendar months without the normalization
// time.AddDate does (Jan 31 + 1 month must not land in March). dayOfMonth
// overrides the day when non-zero; either way the day is clamped to the
// target month's length.
func addMonths(now time.Time, months, dayOfMonth int) time.Time {
	year, month, day := now.Date()
	month += time.Month(months)
	for month > 12 {
		month -= 12
		year++
	}
	if dayOfMonth > 0 {
		day = dayOfMonth
	}
	if max := daysInMonth(year, month); day > max {
		day = max
	}
	hour, min, sec := now.Clock()
	return time.Date(year, month, day, hour, min, sec, now.Nanosecond(), now.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
