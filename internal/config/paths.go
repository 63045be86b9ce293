package config

import (
	"os"
	"path/filepath"
)

// FlowdeckPath returns the root directory for Flowdeck data.
// It uses $FLOWDECK_PATH if set, otherwise defaults to ~/.flowdeck.
func FlowdeckPath() string {
	if v := os.Getenv("FLOWDECK_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".flowdeck")
	}
	return filepath.Join(home, ".flowdeck")
}

// ConfigPath returns the path to the Flowdeck config file.
func ConfigPath() string {
	return filepath.Join(FlowdeckPath(), "config.jsonc")
}
