package board

import "testing"

func TestDefaultsAlwaysPresent(t *testing.T) {
	r := NewRegistry()

	cols := r.Columns()
	if len(cols) != 3 {
		t.Fatalf("expected 3 default columns, got %d", len(cols))
	}
	if cols[0].ID != ColumnTodo || cols[1].ID != ColumnDoing || cols[2].ID != ColumnDone {
		t.Errorf("unexpected column order: %s, %s, %s", cols[0].ID, cols[1].ID, cols[2].ID)
	}
	if !r.IsCompletion(ColumnDone) {
		t.Error("done must be a completion column")
	}
	if r.IsCompletion(ColumnTodo) {
		t.Error("todo must not be a completion column")
	}
}

func TestCreateAppendsAtEnd(t *testing.T) {
	r := NewRegistry()

	col := r.Create("Review", "#f59e0b")
	if col.Order != 3 {
		t.Errorf("expected order 3, got %d", col.Order)
	}
	if col.IsDefault {
		t.Error("created column must not be default")
	}
}

func TestDeleteDefaultIsNoop(t *testing.T) {
	r := NewRegistry()

	if _, deleted := r.Delete(ColumnTodo); deleted {
		t.Fatal("default column must not be deletable")
	}
	if len(r.Columns()) != 3 {
		t.Errorf("expected 3 columns, got %d", len(r.Columns()))
	}
}

func TestDeleteReturnsFallback(t *testing.T) {
	r := NewRegistry()
	col := r.Create("Review", "#f59e0b")

	fallback, deleted := r.Delete(col.ID)
	if !deleted {
		t.Fatal("expected deletion")
	}
	// Lexicographically first default: doing < done < todo.
	if fallback != ColumnDoing {
		t.Errorf("expected fallback doing, got %s", fallback)
	}
	if r.Exists(col.ID) {
		t.Error("deleted column still registered")
	}
}

func TestReorderKeepsDenseOrdering(t *testing.T) {
	r := NewRegistry()
	col := r.Create("Review", "#f59e0b") // order 3

	if err := r.Reorder(col.ID, 1); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	cols := r.Columns()
	want := []string{ColumnTodo, col.ID, ColumnDoing, ColumnDone}
	for i, c := range cols {
		if c.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], c.ID)
		}
		if c.Order != i {
			t.Errorf("column %s: expected dense order %d, got %d", c.ID, i, c.Order)
		}
	}
}

func TestResetDiscardsCustomColumns(t *testing.T) {
	r := NewRegistry()
	a := r.Create("Review", "#f59e0b")
	b := r.Create("Blocked", "#ef4444")

	discarded := r.Reset()
	if len(discarded) != 2 {
		t.Fatalf("expected 2 discarded, got %d", len(discarded))
	}
	if r.Exists(a.ID) || r.Exists(b.ID) {
		t.Error("custom columns survived reset")
	}
	if len(r.Columns()) != 3 {
		t.Errorf("expected 3 columns after reset, got %d", len(r.Columns()))
	}
}

func TestLoadRestoresMissingDefaults(t *testing.T) {
	r := NewRegistry()

	// Snapshot missing "done" entirely.
	r.Load([]Column{
		{ID: ColumnTodo, Name: "To Do", Order: 0, IsDefault: true},
		{ID: "col_custom", Name: "Review", Order: 1},
	})

	for _, id := range []string{ColumnTodo, ColumnDoing, ColumnDone, "col_custom"} {
		if !r.Exists(id) {
			t.Errorf("expected column %s after load", id)
		}
	}
}

func TestUpdatePatch(t *testing.T) {
	r := NewRegistry()
	col := r.Create("Review", "#f59e0b")

	name := "Code Review"
	completion := true
	updated, err := r.Update(col.ID, ColumnPatch{Name: &name, Completion: &completion})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Code Review" {
		t.Errorf("expected renamed column, got %s", updated.Name)
	}
	if !r.IsCompletion(col.ID) {
		t.Error("expected custom completion column")
	}
}
