package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates,
// unmarshals it into Config, and applies defaults. A missing file yields
// the default configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variable templates before stripping comments,
	// since templates live inside strings.
	expanded := expandEnvTemplates(string(data))

	var cfg Config
	if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = FlowdeckPath()
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18530
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Events.LogDir == "" {
		cfg.Events.LogDir = filepath.Join(cfg.DataDir, "events")
	}
	if cfg.Scheduler.TickCron == "" {
		cfg.Scheduler.TickCron = "0 * * * *" // hourly
	}
	if cfg.Scheduler.DueSoonDays == 0 {
		cfg.Scheduler.DueSoonDays = 2
	}
	if cfg.Snapshot.Path == "" {
		cfg.Snapshot.Path = filepath.Join(cfg.DataDir, "flowdeck.db")
	}
	if cfg.Snapshot.IntervalSec == 0 {
		cfg.Snapshot.IntervalSec = 300
	}
}
