// Package notify defines the watcher notification sink consumed by the engine.
package notify

import (
	"log/slog"

	"github.com/flowdeck/flowdeck/internal/events"
)

// Kind classifies a watcher notification.
type Kind string

const (
	KindUpdated       Kind = "updated"
	KindStatusChanged Kind = "status_changed"
	KindCommented     Kind = "commented"
)

// Notifier receives watcher notifications. Implementations must be
// fire-and-forget: the engine ignores anything that goes wrong in here.
type Notifier interface {
	Notify(watcherIDs []string, taskTitle string, kind Kind, detail, deepLink string)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(watcherIDs []string, taskTitle string, kind Kind, detail, deepLink string) {
	slog.Info("notify: watchers",
		"watchers", len(watcherIDs),
		"task", taskTitle,
		"kind", string(kind),
		"detail", detail,
		"link", deepLink)
}

// BusNotifier publishes notifications onto the event bus so connected
// clients (the ws hub) receive them.
type BusNotifier struct {
	Bus *events.Bus
}

func (n BusNotifier) Notify(watcherIDs []string, taskTitle string, kind Kind, detail, deepLink string) {
	n.Bus.Publish(events.NewTypedEvent(events.SourceStore, events.NotificationPayload{
		WatcherIDs: watcherIDs,
		TaskTitle:  taskTitle,
		Kind:       string(kind),
		Detail:     detail,
		DeepLink:   deepLink,
	}))
}

// Multi fans a notification out to several sinks.
type Multi []Notifier

func (m Multi) Notify(watcherIDs []string, taskTitle string, kind Kind, detail, deepLink string) {
	for _, n := range m {
		n.Notify(watcherIDs, taskTitle, kind, detail, deepLink)
	}
}
