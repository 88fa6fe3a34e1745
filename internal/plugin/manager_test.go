package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	writePlugin(t, tmpDir, Manifest{
		Name:        "archive",
		Version:     "1.0.0",
		Description: "Copies photos",
		Executable:  "archive",
		Events:      []string{EventPhotoCaptured},
	}, okScript)

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "archive" || plugin.Manifest.Version != "1.0.0" {
		t.Errorf("unexpected manifest %+v", plugin.Manifest)
	}
	if plugin.Path != filepath.Join(tmpDir, "archive") {
		t.Errorf("unexpected path %q", plugin.Path)
	}
	if plugin.Executable != filepath.Join(tmpDir, "archive", "archive") {
		t.Errorf("unexpected executable %q", plugin.Executable)
	}
}

func TestManager_Discover_SkipsBrokenPlugins(t *testing.T) {
	tmpDir := t.TempDir()
	writePlugin(t, tmpDir, Manifest{Name: "good", Executable: "run.sh"}, okScript)
	// No executable on disk.
	writePlugin(t, tmpDir, Manifest{Name: "missing-exe", Executable: "run.sh"}, "")

	nameless := filepath.Join(tmpDir, "nameless")
	if err := os.MkdirAll(nameless, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nameless, "plugin.json"), []byte(`{"executable":"run.sh"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	invalid := filepath.Join(tmpDir, "invalid")
	if err := os.MkdirAll(invalid, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(invalid, "plugin.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "no-manifest"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "stray-file"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 || plugins[0].Manifest.Name != "good" {
		names := make([]string, 0, len(plugins))
		for _, p := range plugins {
			names = append(names, p.Manifest.Name)
		}
		t.Errorf("expected only 'good', got %v", names)
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "nope"), nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() should not fail for a missing directory: %v", err)
	}
	if len(manager.List()) != 0 {
		t.Error("expected no plugins")
	}
}

func TestManager_Get(t *testing.T) {
	tmpDir := t.TempDir()
	writePlugin(t, tmpDir, Manifest{Name: "archive", Executable: "run.sh"}, okScript)

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if _, err := manager.Get("archive"); err != nil {
		t.Errorf("Get() failed: %v", err)
	}
	if _, err := manager.Get("nonexistent"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
	if manager.PluginDir() != tmpDir {
		t.Errorf("expected PluginDir %q, got %q", tmpDir, manager.PluginDir())
	}
}

func TestManager_Subscribers(t *testing.T) {
	tmpDir := t.TempDir()
	writePlugin(t, tmpDir, Manifest{Name: "upload", Executable: "run.sh", Events: []string{EventPhotoCaptured}}, okScript)
	writePlugin(t, tmpDir, Manifest{Name: "archive", Executable: "run.sh", Events: []string{EventPhotoCaptured}}, okScript)
	writePlugin(t, tmpDir, Manifest{Name: "idle", Executable: "run.sh", Events: []string{"other.event"}}, okScript)

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	subs := manager.Subscribers(EventPhotoCaptured)
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscribers, got %d", len(subs))
	}
	if subs[0].Manifest.Name != "archive" || subs[1].Manifest.Name != "upload" {
		t.Errorf("expected name order archive, upload; got %s, %s", subs[0].Manifest.Name, subs[1].Manifest.Name)
	}
}
