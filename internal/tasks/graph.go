package tasks

import (
	"fmt"
	"log/slog"
)

// Graph maintains the dependsOn/blocks relation between tasks. It is a
// stateless service over the store's task map: the two adjacency lists are
// only ever mutated through AddDependency/RemoveDependency, which keeps
// them symmetric and the graph acyclic by construction.
type Graph struct {
	s *Store
}

// NewGraph creates the dependency graph service for a store.
func NewGraph(s *Store) *Graph {
	return &Graph{s: s}
}

// AddDependency records that taskID depends on dependsOnID. The insertion
// is rejected with CycleError when it would create a cycle — checked here,
// at insertion time, so the acyclicity invariant never needs re-validation
// anywhere else.
func (g *Graph) AddDependency(taskID, dependsOnID string) error {
	if taskID == dependsOnID {
		return &CycleError{TaskID: taskID, DependsOnID: dependsOnID}
	}

	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	t, ok := g.s.tasks[taskID]
	if !ok {
		return fmt.Errorf("add dependency %s: %w", taskID, ErrNotFound)
	}
	dep, ok := g.s.tasks[dependsOnID]
	if !ok {
		return fmt.Errorf("add dependency on %s: %w", dependsOnID, ErrNotFound)
	}

	if containsStr(t.DependsOn, dependsOnID) {
		return nil
	}

	// Would taskID become reachable from dependsOnID? Then the edge closes
	// a cycle and nothing is mutated.
	if g.reachableLocked(dependsOnID, taskID) {
		return &CycleError{TaskID: taskID, DependsOnID: dependsOnID}
	}

	t.DependsOn = append(t.DependsOn, dependsOnID)
	dep.Blocks = append(dep.Blocks, taskID)
	t.UpdatedAt = g.s.now()
	dep.UpdatedAt = t.UpdatedAt

	slog.Debug("tasks: dependency added", "task", taskID, "depends_on", dependsOnID)
	return nil
}

// RemoveDependency removes the link in both directions. Removing a link
// that does not exist is a no-op, not an error.
func (g *Graph) RemoveDependency(taskID, dependsOnID string) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	if t, ok := g.s.tasks[taskID]; ok {
		t.DependsOn = removeStr(t.DependsOn, dependsOnID)
	}
	if dep, ok := g.s.tasks[dependsOnID]; ok {
		dep.Blocks = removeStr(dep.Blocks, taskID)
	}
}

// Blockers returns the tasks that taskID depends on. IDs whose task no
// longer exists are silently dropped.
func (g *Graph) Blockers(taskID string) []*Task {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()

	t, ok := g.s.tasks[taskID]
	if !ok {
		return nil
	}
	return g.resolveLocked(t.DependsOn)
}

// BlockedTasks returns the tasks that depend on taskID.
func (g *Graph) BlockedTasks(taskID string) []*Task {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()

	t, ok := g.s.tasks[taskID]
	if !ok {
		return nil
	}
	return g.resolveLocked(t.Blocks)
}

// DependenciesSatisfied reports whether every dependency of taskID sits in
// a completion column. A task with no dependencies is always satisfied;
// an unknown taskID reads as satisfied (queries never raise).
func (g *Graph) DependenciesSatisfied(taskID string) bool {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()

	t, ok := g.s.tasks[taskID]
	if !ok {
		return true
	}
	return g.s.pendingDependenciesLocked(t) == 0
}

// PendingCount returns the number of unfinished blockers of taskID.
func (g *Graph) PendingCount(taskID string) int {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()

	t, ok := g.s.tasks[taskID]
	if !ok {
		return 0
	}
	return g.s.pendingDependenciesLocked(t)
}

// reachableLocked walks dependsOn edges depth-first from startID looking
// for targetID. Caller must hold s.mu.
func (g *Graph) reachableLocked(startID, targetID string) bool {
	visited := make(map[string]bool)
	stack := []string{startID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == targetID {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true

		t, ok := g.s.tasks[id]
		if !ok {
			continue
		}
		stack = append(stack, t.DependsOn...)
	}
	return false
}

// resolveLocked maps IDs to task copies, dropping dangling entries.
func (g *Graph) resolveLocked(ids []string) []*Task {
	var result []*Task
	for _, id := range ids {
		if t, ok := g.s.tasks[id]; ok {
			result = append(result, t.Clone())
		}
	}
	return result
}
