package tasks

import (
	"errors"
	"testing"

	"github.com/flowdeck/flowdeck/internal/board"
)

func TestAddDependencySymmetric(t *testing.T) {
	s := newTestStore(t)
	g := NewGraph(s)

	a, _ := s.Create(CreateRequest{Title: "A"}, "alice")
	b, _ := s.Create(CreateRequest{Title: "B"}, "alice")

	if err := g.AddDependency(a.ID, b.ID); err != nil {
		t.Fatalf("add dependency: %v", err)
	}

	fa, _ := s.Get(a.ID)
	fb, _ := s.Get(b.ID)
	if !containsStr(fa.DependsOn, b.ID) {
		t.Error("dependsOn edge missing")
	}
	if !containsStr(fb.Blocks, a.ID) {
		t.Error("blocks edge missing")
	}
}

func TestAddDependencyIdempotent(t *testing.T) {
	s := newTestStore(t)
	g := NewGraph(s)

	a, _ := s.Create(CreateRequest{Title: "A"}, "alice")
	b, _ := s.Create(CreateRequest{Title: "B"}, "alice")

	for i := 0; i < 3; i++ {
		if err := g.AddDependency(a.ID, b.ID); err != nil {
			t.Fatalf("add dependency %d: %v", i, err)
		}
	}

	fa, _ := s.Get(a.ID)
	fb, _ := s.Get(b.ID)
	if len(fa.DependsOn) != 1 || len(fb.Blocks) != 1 {
		t.Errorf("duplicate edges: dependsOn=%v blocks=%v", fa.DependsOn, fb.Blocks)
	}
}

func TestAddDependencySelfLink(t *testing.T) {
	s := newTestStore(t)
	g := NewGraph(s)

	a, _ := s.Create(CreateRequest{Title: "A"}, "alice")

	var cerr *CycleError
	if err := g.AddDependency(a.ID, a.ID); !errors.As(err, &cerr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestAddDependencyUnknownTask(t *testing.T) {
	s := newTestStore(t)
	g := NewGraph(s)

	a, _ := s.Create(CreateRequest{Title: "A"}, "alice")

	if err := g.AddDependency(a.ID, "task_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := g.AddDependency("task_missing", a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCycleRejectedGraphUnchanged(t *testing.T) {
	s := newTestStore(t)
	g := NewGraph(s)

	a, _ := s.Create(CreateRequest{Title: "A"}, "alice")
	b, _ := s.Create(CreateRequest{Title: "B"}, "alice")
	c, _ := s.Create(CreateRequest{Title: "C"}, "alice")

	if err := g.AddDependency(a.ID, b.ID); err != nil {
		t.Fatalf("a->b: %v", err)
	}
	if err := g.AddDependency(b.ID, c.ID); err != nil {
		t.Fatalf("b->c: %v", err)
	}

	// Closing the loop must fail and leave every adjacency list untouched.
	var cerr *CycleError
	if err := g.AddDependency(c.ID, a.ID); !errors.As(err, &cerr) {
		t.Fatalf("expected CycleError, got %v", err)
	}

	fc, _ := s.Get(c.ID)
	fa, _ := s.Get(a.ID)
	if len(fc.DependsOn) != 0 {
		t.Errorf("cycle edge was written: %v", fc.DependsOn)
	}
	if len(fa.Blocks) != 0 {
		t.Errorf("reverse cycle edge was written: %v", fa.Blocks)
	}
}

func TestRemoveDependency(t *testing.T) {
	s := newTestStore(t)
	g := NewGraph(s)

	a, _ := s.Create(CreateRequest{Title: "A"}, "alice")
	b, _ := s.Create(CreateRequest{Title: "B"}, "alice")
	g.AddDependency(a.ID, b.ID)

	g.RemoveDependency(a.ID, b.ID)
	g.RemoveDependency(a.ID, b.ID) // second removal is a no-op

	fa, _ := s.Get(a.ID)
	fb, _ := s.Get(b.ID)
	if len(fa.DependsOn) != 0 || len(fb.Blocks) != 0 {
		t.Errorf("edges survived removal: dependsOn=%v blocks=%v", fa.DependsOn, fb.Blocks)
	}
}

func TestBlockersAndBlockedTasks(t *testing.T) {
	s := newTestStore(t)
	g := NewGraph(s)

	a, _ := s.Create(CreateRequest{Title: "A"}, "alice")
	b, _ := s.Create(CreateRequest{Title: "B"}, "alice")
	c, _ := s.Create(CreateRequest{Title: "C"}, "alice")
	g.AddDependency(a.ID, b.ID)
	g.AddDependency(a.ID, c.ID)

	blockers := g.Blockers(a.ID)
	if len(blockers) != 2 {
		t.Fatalf("expected 2 blockers, got %d", len(blockers))
	}
	blocked := g.BlockedTasks(b.ID)
	if len(blocked) != 1 || blocked[0].ID != a.ID {
		t.Fatalf("expected a blocked by b, got %+v", blocked)
	}
}

func TestDependenciesSatisfied(t *testing.T) {
	s := newTestStore(t)
	g := NewGraph(s)

	a, _ := s.Create(CreateRequest{Title: "A"}, "alice")
	b, _ := s.Create(CreateRequest{Title: "B"}, "alice")
	g.AddDependency(a.ID, b.ID)

	if g.DependenciesSatisfied(a.ID) {
		t.Error("expected unsatisfied with pending blocker")
	}
	if g.PendingCount(a.ID) != 1 {
		t.Errorf("expected pending 1, got %d", g.PendingCount(a.ID))
	}

	if _, err := s.Move(b.ID, board.ColumnDone, "alice"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if !g.DependenciesSatisfied(a.ID) {
		t.Error("expected satisfied after blocker completed")
	}
	if !g.DependenciesSatisfied("task_missing") {
		t.Error("unknown id should read as satisfied")
	}
}
