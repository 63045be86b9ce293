package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/flowdeck/flowdeck/internal/board"
	"github.com/flowdeck/flowdeck/internal/events"
	"github.com/flowdeck/flowdeck/internal/tasks"
)

func newTestScheduler(t *testing.T, clock *FixedClock) (*Scheduler, *tasks.Store, *events.Bus) {
	t.Helper()
	bus := events.NewBus(16)
	t.Cleanup(bus.Close)
	store := tasks.NewStore(tasks.Config{Board: board.NewRegistry(), Bus: bus, Now: clock.Now})
	s, err := New(Config{Store: store, Bus: bus, Clock: clock})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s, store, bus
}

func TestAddTemplateComputesNextRun(t *testing.T) {
	clock := &FixedClock{Instant: date(2025, time.March, 10)}
	s, _, _ := newTestScheduler(t, clock)

	// Future start date becomes the first run as-is.
	future := date(2025, time.April, 1)
	tmpl, err := s.AddTemplate(&Template{Title: "Standup notes", Frequency: FreqDaily, StartDate: future, Active: true})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if tmpl.NextRun == nil || !tmpl.NextRun.Equal(future) {
		t.Errorf("expected first run at start date, got %v", tmpl.NextRun)
	}

	// Past start date schedules the next occurrence instead.
	past := date(2025, time.March, 1)
	tmpl, err = s.AddTemplate(&Template{Title: "Standup notes", Frequency: FreqDaily, StartDate: past, Active: true})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if tmpl.NextRun == nil || !tmpl.NextRun.After(clock.Now()) {
		t.Errorf("expected future next run, got %v", tmpl.NextRun)
	}
}

func TestAddTemplateValidation(t *testing.T) {
	clock := &FixedClock{Instant: date(2025, time.March, 10)}
	s, _, _ := newTestScheduler(t, clock)

	var verr *tasks.ValidationError
	if _, err := s.AddTemplate(&Template{Frequency: FreqDaily}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for empty title, got %v", err)
	}
	if _, err := s.AddTemplate(&Template{Title: "x", Frequency: "fortnightly"}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown frequency, got %v", err)
	}
}

func TestTickMaterializesAndAdvances(t *testing.T) {
	clock := &FixedClock{Instant: date(2025, time.March, 10)}
	s, store, _ := newTestScheduler(t, clock)

	s.AddTemplate(&Template{Title: "Weekly review", Frequency: FreqDaily, StartDate: date(2025, time.March, 1), Active: true})

	clock.Advance(48 * time.Hour)
	s.Tick(clock.Now())

	if store.Len() != 1 {
		t.Fatalf("expected 1 materialized task, got %d", store.Len())
	}
	created := store.List(tasks.Filter{})[0]
	if created.Title != "Weekly review" || created.TemplateID == "" {
		t.Errorf("materialized task missing template linkage: %+v", created)
	}

	// Same instant again: NextRun advanced past now, so nothing new.
	s.Tick(clock.Now())
	if store.Len() != 1 {
		t.Errorf("tick not idempotent: %d tasks", store.Len())
	}

	// A day later it fires again.
	clock.Advance(25 * time.Hour)
	s.Tick(clock.Now())
	if store.Len() != 2 {
		t.Errorf("expected second materialization, got %d tasks", store.Len())
	}
}

func TestTickDeactivatesExpired(t *testing.T) {
	clock := &FixedClock{Instant: date(2025, time.March, 10)}
	s, store, _ := newTestScheduler(t, clock)

	end := date(2025, time.March, 12)
	tmpl, _ := s.AddTemplate(&Template{Title: "Limited run", Frequency: FreqDaily, StartDate: date(2025, time.March, 1), EndDate: &end, Active: true})

	clock.Instant = date(2025, time.March, 15)
	s.Tick(clock.Now())

	if store.Len() != 0 {
		t.Errorf("expired template still materialized: %d tasks", store.Len())
	}
	got, ok := s.GetTemplate(tmpl.ID)
	if !ok {
		t.Fatal("template gone")
	}
	if got.Active || got.NextRun != nil {
		t.Errorf("expired template not deactivated: %+v", got)
	}
}

func TestOnceDeactivatesOnMaterialize(t *testing.T) {
	clock := &FixedClock{Instant: date(2025, time.March, 10)}
	s, store, _ := newTestScheduler(t, clock)

	tmpl, _ := s.AddTemplate(&Template{Title: "Kickoff", Frequency: FreqOnce, StartDate: date(2025, time.March, 12), Active: true})

	clock.Instant = date(2025, time.March, 12)
	s.Tick(clock.Now())

	if store.Len() != 1 {
		t.Fatalf("expected 1 task, got %d", store.Len())
	}
	got, _ := s.GetTemplate(tmpl.ID)
	if got.Active || got.NextRun != nil {
		t.Errorf("one-shot template not deactivated: %+v", got)
	}

	clock.Advance(7 * 24 * time.Hour)
	s.Tick(clock.Now())
	if store.Len() != 1 {
		t.Errorf("one-shot fired twice: %d tasks", store.Len())
	}
}

func TestMaterializeByID(t *testing.T) {
	clock := &FixedClock{Instant: date(2025, time.March, 10)}
	s, _, _ := newTestScheduler(t, clock)

	tmpl, _ := s.AddTemplate(&Template{Title: "Report", Frequency: FreqWeekly, Weekdays: []int{1}, StartDate: date(2025, time.April, 1), Active: true})

	task, err := s.Materialize(tmpl.ID)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if task.TemplateID != tmpl.ID {
		t.Errorf("task not linked to template: %+v", task)
	}
	got, _ := s.GetTemplate(tmpl.ID)
	if got.LastRun == nil {
		t.Error("LastRun not stamped")
	}

	if _, err := s.Materialize("tmpl_missing"); !errors.Is(err, tasks.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScanDueDatesFlagsOnce(t *testing.T) {
	clock := &FixedClock{Instant: date(2025, time.March, 10)}
	s, store, bus := newTestScheduler(t, clock)

	seen := make(chan events.Event, 4)
	unsub := bus.Subscribe(func(e events.Event) { seen <- e }, events.EventTaskDueSoon)
	defer unsub()

	due := clock.Now().Add(24 * time.Hour)
	store.Create(tasks.CreateRequest{Title: "Due tomorrow", DueDate: &due}, "alice")
	far := clock.Now().Add(30 * 24 * time.Hour)
	store.Create(tasks.CreateRequest{Title: "Due next month", DueDate: &far}, "alice")

	s.Tick(clock.Now())
	s.Tick(clock.Now()) // dedup: same task, same due date

	select {
	case e := <-seen:
		if e.Payload["title"] != "Due tomorrow" {
			t.Errorf("wrong task flagged: %v", e.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no due-soon event")
	}
	select {
	case e := <-seen:
		t.Fatalf("duplicate due-soon event: %v", e.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSetActive(t *testing.T) {
	clock := &FixedClock{Instant: date(2025, time.March, 10)}
	s, store, _ := newTestScheduler(t, clock)

	tmpl, _ := s.AddTemplate(&Template{Title: "Paused", Frequency: FreqDaily, StartDate: date(2025, time.March, 1), Active: true})
	if err := s.SetActive(tmpl.ID, false); err != nil {
		t.Fatalf("pause: %v", err)
	}

	clock.Advance(72 * time.Hour)
	s.Tick(clock.Now())
	if store.Len() != 0 {
		t.Errorf("paused template materialized: %d tasks", store.Len())
	}

	if err := s.SetActive(tmpl.ID, true); err != nil {
		t.Fatalf("resume: %v", err)
	}
	got, _ := s.GetTemplate(tmpl.ID)
	if got.NextRun == nil {
		t.Error("resume did not reschedule")
	}
}
