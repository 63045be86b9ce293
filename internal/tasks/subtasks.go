package tasks

import "math"

// MaxSubtaskDepth is the number of nesting levels a subtask tree may have.
// Root-level subtasks sit at depth 0, so the deepest allowed node is at
// depth MaxSubtaskDepth-1. Insertions beyond that are silently ignored.
const MaxSubtaskDepth = 4

// Subtasks is a stateless service over the store's task map that maintains
// each task's bounded-depth subtask tree. All operations address nodes by
// an explicit parent subtask ID and are no-ops when any ID is unknown —
// the tree may be queried mid-deletion, so missing IDs are never an error.
type Subtasks struct {
	s *Store
}

// NewSubtasks creates the subtask tree service for a store.
func NewSubtasks(s *Store) *Subtasks {
	return &Subtasks{s: s}
}

// Add inserts a new subtask under parentSubtaskID (or at the root when
// empty). Returns the new subtask, or nil when the task or parent is
// unknown or the insertion would exceed the depth limit.
func (st *Subtasks) Add(taskID, title, parentSubtaskID string) *Subtask {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	t, ok := st.s.tasks[taskID]
	if !ok {
		return nil
	}

	siblings := &t.Subtasks
	depth := 0
	if parentSubtaskID != "" {
		parent, parentDepth := findSubtask(t.Subtasks, parentSubtaskID, 0)
		if parent == nil {
			return nil
		}
		siblings = &parent.Children
		depth = parentDepth + 1
	}
	if depth >= MaxSubtaskDepth {
		return nil
	}

	sub := &Subtask{
		ID:     GenerateSubtaskID(),
		Title:  title,
		Status: "todo",
		Order:  len(*siblings),
	}
	*siblings = append(*siblings, sub)
	t.UpdatedAt = st.s.now()

	c := *sub
	return &c
}

// Rename changes a subtask's title. No-op when not found.
func (st *Subtasks) Rename(taskID, subtaskID, title, parentSubtaskID string) bool {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	t, ok := st.s.tasks[taskID]
	if !ok {
		return false
	}
	sub := findInParent(t, subtaskID, parentSubtaskID)
	if sub == nil {
		return false
	}
	sub.Title = title
	t.UpdatedAt = st.s.now()
	return true
}

// Toggle flips a subtask's completed flag. The Status field mirrors the
// flag for display ("done"/"todo"); it is not independent state.
func (st *Subtasks) Toggle(taskID, subtaskID, parentSubtaskID string) bool {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	t, ok := st.s.tasks[taskID]
	if !ok {
		return false
	}
	sub := findInParent(t, subtaskID, parentSubtaskID)
	if sub == nil {
		return false
	}
	sub.Completed = !sub.Completed
	if sub.Completed {
		sub.Status = "done"
	} else {
		sub.Status = "todo"
	}
	t.UpdatedAt = st.s.now()
	return true
}

// Remove deletes a subtask and its entire subtree. No-op when not found.
func (st *Subtasks) Remove(taskID, subtaskID, parentSubtaskID string) bool {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	t, ok := st.s.tasks[taskID]
	if !ok {
		return false
	}
	siblings := siblingsOf(t, parentSubtaskID)
	if siblings == nil {
		return false
	}

	for i, sub := range *siblings {
		if sub.ID == subtaskID {
			*siblings = append((*siblings)[:i], (*siblings)[i+1:]...)
			renumber(*siblings)
			t.UpdatedAt = st.s.now()
			return true
		}
	}
	return false
}

// Reorder moves a subtask to newIndex among its siblings, keeping Order
// values dense. Out-of-range indexes are clamped.
func (st *Subtasks) Reorder(taskID, subtaskID string, newIndex int, parentSubtaskID string) bool {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	t, ok := st.s.tasks[taskID]
	if !ok {
		return false
	}
	siblings := siblingsOf(t, parentSubtaskID)
	if siblings == nil {
		return false
	}

	oldIndex := -1
	for i, sub := range *siblings {
		if sub.ID == subtaskID {
			oldIndex = i
			break
		}
	}
	if oldIndex == -1 {
		return false
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex >= len(*siblings) {
		newIndex = len(*siblings) - 1
	}
	if newIndex == oldIndex {
		return true
	}

	sub := (*siblings)[oldIndex]
	*siblings = append((*siblings)[:oldIndex], (*siblings)[oldIndex+1:]...)
	rest := append([]*Subtask(nil), (*siblings)[newIndex:]...)
	*siblings = append(append((*siblings)[:newIndex], sub), rest...)
	renumber(*siblings)
	t.UpdatedAt = st.s.now()
	return true
}

// Progress aggregates completion over the whole tree, counting every node
// at every depth once. A flat count of direct children would under-report
// nested plans.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Percent   int `json:"percent"`
}

// Progress walks the full subtask tree of taskID. Unknown IDs return the
// zero value.
func (st *Subtasks) Progress(taskID string) Progress {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()

	t, ok := st.s.tasks[taskID]
	if !ok {
		return Progress{}
	}

	total, completed := countSubtasks(t.Subtasks)
	if total == 0 {
		return Progress{}
	}
	return Progress{
		Total:     total,
		Completed: completed,
		Percent:   int(math.Round(float64(completed) / float64(total) * 100)),
	}
}

func countSubtasks(subs []*Subtask) (total, completed int) {
	for _, s := range subs {
		total++
		if s.Completed {
			completed++
		}
		ct, cc := countSubtasks(s.Children)
		total += ct
		completed += cc
	}
	return total, completed
}

// findSubtask searches the tree depth-first for id, returning the node and
// its depth.
func findSubtask(subs []*Subtask, id string, depth int) (*Subtask, int) {
	for _, s := range subs {
		if s.ID == id {
			return s, depth
		}
		if found, d := findSubtask(s.Children, id, depth+1); found != nil {
			return found, d
		}
	}
	return nil, 0
}

// siblingsOf returns the child list addressed by parentSubtaskID, or the
// task's root list when empty. Nil when the parent does not exist.
func siblingsOf(t *Task, parentSubtaskID string) *[]*Subtask {
	if parentSubtaskID == "" {
		return &t.Subtasks
	}
	parent, _ := findSubtask(t.Subtasks, parentSubtaskID, 0)
	if parent == nil {
		return nil
	}
	return &parent.Children
}

// findInParent locates subtaskID among the children of parentSubtaskID.
func findInParent(t *Task, subtaskID, parentSubtaskID string) *Subtask {
	siblings := siblingsOf(t, parentSubtaskID)
	if siblings == nil {
		return nil
	}
	for _, s := range *siblings {
		if s.ID == subtaskID {
			return s
		}
	}
	return nil
}

func renumber(subs []*Subtask) {
	for i, s := range subs {
		s.Order = i
	}
}
