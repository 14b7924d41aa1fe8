// ABOUTME: XDG-based data directory resolution for calquity persistent state.
// ABOUTME: Checks XDG_DATA_HOME, falls back to ~/.local/share/calquity; hosts the default audit database.
package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultDataDir returns the default data directory for calquity persistent state.
// It checks XDG_DATA_HOME first, then falls back to ~/.local/share/calquity.
func defaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "calquity"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "calquity"), nil
}

// resolveAuditPath returns override when set, otherwise audit.db inside the
// default data directory. The parent directory is created.
func resolveAuditPath(override string) (string, error) {
	path := override
	if path == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, "audit.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return path, nil
}
