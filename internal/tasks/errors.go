package tasks

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by commands addressing an unknown task ID.
// Queries on unknown IDs return empty results instead.
var ErrNotFound = errors.New("task not found")

// ValidationError rejects malformed input before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DependencyBlockedError rejects a completion attempt with unmet
// dependencies. Pending is the exact number of unfinished blockers so
// callers can render "N tasks must complete first".
type DependencyBlockedError struct {
	Pending int
}

func (e *DependencyBlockedError) Error() string {
	return fmt.Sprintf("%d blocking tasks must complete first", e.Pending)
}

// CycleError rejects a dependency insertion that would create a cycle.
type CycleError struct {
	TaskID      string
	DependsOnID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency %s -> %s would create a cycle", e.TaskID, e.DependsOnID)
}
