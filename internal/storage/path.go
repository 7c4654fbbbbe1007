package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the per-user application data directory for appName.
// Mirrors common desktop app conventions:
// - Linux: $XDG_DATA_HOME/<app> or ~/.local/share/<app>
// - macOS: ~/Library/Application Support/<app>
// - Windows: %APPDATA%/<app> (falls back to UserConfigDir)
//
// The directory is not created.
func DataDir(appName string) (string, error) {
	if appName == "" {
		return "", fmt.Errorf("app name is required")
	}
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			var err error
			base, err = os.UserConfigDir()
			if err != nil {
				return "", fmt.Errorf("resolve config directory: %w", err)
			}
		}
		return filepath.Join(base, appName), nil
	default:
		base := os.Getenv("XDG_DATA_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve home directory: %w", err)
			}
			base = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(base, appName), nil
	}
}

// ConfigPath returns the default config file location for appName.
func ConfigPath(appName string) (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(base, appName, "config.yaml"), nil
}
