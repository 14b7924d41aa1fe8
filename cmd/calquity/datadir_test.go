// ABOUTME: Tests for XDG data directory resolution and the default audit database path.
// ABOUTME: Verifies XDG_DATA_HOME precedence, home fallback, and parent directory creation.
package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultDataDirUsesXDGDataHome(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)

	dir, err := defaultDataDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(xdg, "calquity"); dir != want {
		t.Errorf("got %q, want %q", dir, want)
	}
}

func TestDefaultDataDirFallsBackToHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := defaultDataDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(home, ".local", "share", "calquity"); dir != want {
		t.Errorf("got %q, want %q", dir, want)
	}
}

func TestResolveAuditPathDefault(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_DATA_HOME", xdg)

	path, err := resolveAuditPath("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(xdg, "calquity", "audit.db"); path != want {
		t.Errorf("got %q, want %q", path, want)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Errorf("data directory not created: %v", err)
	}
}

func TestResolveAuditPathOverride(t *testing.T) {
	override := filepath.Join(t.TempDir(), "nested", "a.db")
	path, err := resolveAuditPath(override)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != override {
		t.Errorf("got %q, want %q", path, override)
	}
	if _, err := os.Stat(filepath.Dir(override)); err != nil {
		t.Errorf("parent not created: %v", err)
	}
}
