package events

import (
	"sync"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	var received []Event

	bus.Subscribe(func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	}, EventTaskMoved)

	bus.Publish(NewTypedEvent(SourceStore, TaskMovedPayload{TaskID: "task_1", FromColumn: "todo", ToColumn: "doing"}))
	bus.Publish(NewTaskEvent(EventTaskCreated, SourceStore, "task_2", nil))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != EventTaskMoved {
		t.Errorf("expected task.moved, got %s", received[0].Type)
	}
	if received[0].TaskID != "task_1" {
		t.Errorf("expected task_1, got %s", received[0].TaskID)
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	var mu sync.Mutex
	count := 0

	bus.Subscribe(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(NewTaskEvent(EventTaskCreated, SourceStore, "task_1", nil))
	bus.Publish(NewTaskEvent(EventTaskDeleted, SourceStore, "task_1", nil))

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if count != 2 {
		t.Errorf("expected 2 events, got %d", count)
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := 0; i < 5; i++ {
		rb.Add(NewEvent(EventTaskCreated, SourceStore, map[string]any{"i": i}))
	}

	events := rb.Get(10)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
}

func TestSubscribeChan(t *testing.T) {
	bus := NewBus(64)
	defer bus.Close()

	ch, unsub := bus.SubscribeChan(4, EventTaskCompleted)
	defer unsub()

	bus.Publish(NewTaskEvent(EventTaskCompleted, SourceStore, "task_1", nil))

	select {
	case e := <-ch:
		if e.Type != EventTaskCompleted {
			t.Errorf("expected task.completed, got %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(4)
	bus.Close()

	// Must not panic.
	bus.Publish(NewTaskEvent(EventTaskCreated, SourceStore, "task_1", nil))
}

func TestBusPublishDuringClose(t *testing.T) {
	bus := NewBus(4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(NewTaskEvent(EventTaskCreated, SourceStore, "task_1", nil))
			}
		}()
	}
	bus.Close()
	wg.Wait()
}
