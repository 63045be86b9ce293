// Package board maintains the ordered set of workflow columns a task can occupy.
package board

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Default column IDs. These always exist and cannot be deleted.
const (
	ColumnTodo  = "todo"
	ColumnDoing = "doing"
	ColumnDone  = "done"
)

// Column is a named workflow state a task can occupy.
type Column struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	Order      int    `json:"order"`
	IsDefault  bool   `json:"is_default"`
	Completion bool   `json:"completion,omitempty"`
}

// ColumnPatch describes a partial column update. Nil fields are left unchanged.
type ColumnPatch struct {
	Name       *string `json:"name,omitempty"`
	Color      *string `json:"color,omitempty"`
	Completion *bool   `json:"completion,omitempty"`
}

// DefaultColumns returns fresh copies of the three built-in columns.
func DefaultColumns() []Column {
	return []Column{
		{ID: ColumnTodo, Name: "To Do", Color: "#94a3b8", Order: 0, IsDefault: true},
		{ID: ColumnDoing, Name: "In Progress", Color: "#60a5fa", Order: 1, IsDefault: true},
		{ID: ColumnDone, Name: "Done", Color: "#4ade80", Order: 2, IsDefault: true, Completion: true},
	}
}

// GenerateColumnID creates a unique column identifier.
func GenerateColumnID() string {
	u := uuid.New().String()
	return "col_" + strings.ReplaceAll(u[:8], "-", "")
}

// Registry holds the ordered column set. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	columns map[string]*Column
}

// NewRegistry creates a registry seeded with the default columns.
func NewRegistry() *Registry {
	r := &Registry{columns: make(map[string]*Column)}
	for _, c := range DefaultColumns() {
		col := c
		r.columns[col.ID] = &col
	}
	return r
}

// Load replaces the registry contents from a snapshot. Missing default
// columns are restored so the invariant "defaults always exist" holds even
// against a corrupted snapshot.
func (r *Registry) Load(cols []Column) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.columns = make(map[string]*Column, len(cols))
	for _, c := range cols {
		col := c
		r.columns[col.ID] = &col
	}
	for _, c := range DefaultColumns() {
		if _, ok := r.columns[c.ID]; !ok {
			col := c
			col.Order = len(r.columns)
			r.columns[col.ID] = &col
			slog.Warn("board: restored missing default column", "id", col.ID)
		}
	}
	r.normalizeLocked()
}

// Columns returns all columns ordered by their Order field.
func (r *Registry) Columns() []Column {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orderedLocked()
}

func (r *Registry) orderedLocked() []Column {
	result := make([]Column, 0, len(r.columns))
	for _, c := range r.columns {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Order < result[j].Order })
	return result
}

// Get returns a column by ID.
func (r *Registry) Get(id string) (Column, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.columns[id]
	if !ok {
		return Column{}, false
	}
	return *c, true
}

// Exists reports whether a column ID is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.columns[id]
	return ok
}

// IsCompletion reports whether moving a task into the column counts as
// completing it.
func (r *Registry) IsCompletion(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.columns[id]
	return ok && c.Completion
}

// First returns the first column in display order; tasks are created there.
func (r *Registry) First() Column {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ordered := r.orderedLocked()
	return ordered[0]
}

// Fallback returns the lexicographically-first default column ID, the
// designated home for tasks orphaned by a column deletion.
func (r *Registry) Fallback() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallbackLocked()
}

func (r *Registry) fallbackLocked() string {
	var ids []string
	for id, c := range r.columns {
		if c.IsDefault {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids[0]
}

// Create appends a new user-defined column at the end of the order.
func (r *Registry) Create(name, color string) Column {
	r.mu.Lock()
	defer r.mu.Unlock()

	col := &Column{
		ID:    GenerateColumnID(),
		Name:  name,
		Color: color,
		Order: len(r.columns),
	}
	r.columns[col.ID] = col
	slog.Info("board: column created", "id", col.ID, "name", name)
	return *col
}

// Update applies a patch to a column.
func (r *Registry) Update(id string, patch ColumnPatch) (Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.columns[id]
	if !ok {
		return Column{}, fmt.Errorf("column not found: %s", id)
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Color != nil {
		c.Color = *patch.Color
	}
	if patch.Completion != nil && !c.IsDefault {
		c.Completion = *patch.Completion
	}
	return *c, nil
}

// Delete removes a non-default column and returns the fallback column ID
// tasks in it must be reassigned to. Deleting a default column logs and
// no-ops; deleting an unknown column is also a no-op.
func (r *Registry) Delete(id string) (fallback string, deleted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.columns[id]
	if !ok {
		return "", false
	}
	if c.IsDefault {
		slog.Warn("board: refusing to delete default column", "id", id)
		return "", false
	}

	fallback = r.fallbackLocked()
	delete(r.columns, id)
	r.normalizeLocked()
	slog.Info("board: column deleted", "id", id, "fallback", fallback)
	return fallback, true
}

// Reorder moves a column to newOrder, shifting every column between the old
// and new position by one to keep the ordering dense and gapless.
func (r *Registry) Reorder(id string, newOrder int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.columns[id]
	if !ok {
		return fmt.Errorf("column not found: %s", id)
	}
	if newOrder < 0 {
		newOrder = 0
	}
	if newOrder >= len(r.columns) {
		newOrder = len(r.columns) - 1
	}

	old := c.Order
	if newOrder == old {
		return nil
	}

	for _, other := range r.columns {
		switch {
		case other.ID == id:
		case old < newOrder && other.Order > old && other.Order <= newOrder:
			other.Order--
		case old > newOrder && other.Order >= newOrder && other.Order < old:
			other.Order++
		}
	}
	c.Order = newOrder
	return nil
}

// Reset discards all custom columns and restores exactly the three defaults.
// It returns the IDs of the discarded columns; tasks in them fall back to todo.
func (r *Registry) Reset() (discarded []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.columns {
		if !c.IsDefault {
			discarded = append(discarded, id)
		}
	}
	sort.Strings(discarded)

	r.columns = make(map[string]*Column)
	for _, c := range DefaultColumns() {
		col := c
		r.columns[col.ID] = &col
	}
	slog.Info("board: reset to defaults", "discarded", len(discarded))
	return discarded
}

// normalizeLocked rewrites Order values to 0..n-1 preserving relative order.
func (r *Registry) normalizeLocked() {
	ordered := r.orderedLocked()
	for i, c := range ordered {
		r.columns[c.ID].Order = i
	}
}
