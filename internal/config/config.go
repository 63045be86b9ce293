// Package config loads the Flowdeck engine configuration.
package config

// Config is the root configuration for Flowdeck.
type Config struct {
	DataDir   string          `json:"data_dir"`
	Gateway   GatewayConfig   `json:"gateway"`
	Events    EventsConfig    `json:"events"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Rules     RulesConfig     `json:"rules"`
	Snapshot  SnapshotConfig  `json:"snapshot"`
}

// GatewayConfig holds the HTTP gateway settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size"`
	LogDir     string `json:"log_dir,omitempty"` // empty means <data_dir>/events
}

// SchedulerConfig holds recurrence scheduler settings.
type SchedulerConfig struct {
	TickCron    string `json:"tick_cron"`     // cron expression gating ticks
	DueSoonDays int    `json:"due_soon_days"` // warning window for due dates
}

// RulesConfig holds automation rule settings.
type RulesConfig struct {
	File string `json:"file,omitempty"` // optional YAML bootstrap file
}

// SnapshotConfig holds persistence settings.
type SnapshotConfig struct {
	Path        string `json:"path,omitempty"` // empty means <data_dir>/flowdeck.db
	IntervalSec int    `json:"interval_sec"`   // periodic save cadence
}
