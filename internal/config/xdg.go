// Package config provides XDG path helpers.
package config

import (
	"os"
	"path/filepath"
)

const appName = "temporal"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultDBPath returns the default path for the Temporal Dates database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appName, "temporal.db")
}

// DefaultLogPath returns the log file used by the interactive interface.
func DefaultLogPath() string {
	return filepath.Join(XDGDataHome(), appName, "temporal.log")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}
