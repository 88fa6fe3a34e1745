package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDispatcher_PhotoCaptured(t *testing.T) {
	skipOnWindows(t)

	tmpDir := t.TempDir()

	// Keeps the request it got so the test can inspect it.
	writePlugin(t, tmpDir, Manifest{Name: "a-record", Executable: "run.sh", Events: []string{EventPhotoCaptured}}, `#!/bin/sh
cat > request.json
echo '{"success":true}'
`)
	writePlugin(t, tmpDir, Manifest{Name: "b-fail", Executable: "run.sh", Events: []string{EventPhotoCaptured}}, `#!/bin/sh
cat >/dev/null
echo '{"success":false,"error":"upload refused"}'
`)
	writePlugin(t, tmpDir, Manifest{Name: "c-after", Executable: "run.sh", Events: []string{EventPhotoCaptured}}, okScript)

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	d := NewDispatcher(manager, NewExecutor(5*time.Second), map[string]json.RawMessage{
		"a-record": json.RawMessage(`{"dir":"/archive"}`),
	}, nil)

	photo := Photo{ID: "p1", Path: "/captures/p1.jpg", Width: 420, Height: 1320}
	results := d.PhotoCaptured(t.Context(), photo)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("a-record: unexpected error %v", results[0].Err)
	}
	if results[1].Err == nil || results[1].Err.Error() != "upload refused" {
		t.Errorf("b-fail: expected 'upload refused', got %v", results[1].Err)
	}
	if results[2].Err != nil {
		t.Errorf("c-after should still run, got %v", results[2].Err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "a-record", "request.json"))
	if err != nil {
		t.Fatalf("recorded request missing: %v", err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("failed to decode recorded request: %v", err)
	}
	if req.Photo.ID != "p1" || req.Event != EventPhotoCaptured {
		t.Errorf("unexpected request %+v", req)
	}
	if string(req.Config) != `{"dir":"/archive"}` {
		t.Errorf("unexpected config %s", req.Config)
	}
}

func TestDispatcher_GoAndWait(t *testing.T) {
	skipOnWindows(t)

	tmpDir := t.TempDir()
	writePlugin(t, tmpDir, Manifest{Name: "touch", Executable: "run.sh", Events: []string{EventPhotoCaptured}}, `#!/bin/sh
cat >/dev/null
sleep 0.1
touch done
echo '{"success":true}'
`)

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	d := NewDispatcher(manager, NewExecutor(5*time.Second), nil, nil)
	d.Go(Photo{ID: "p1"})
	d.Wait()

	if _, err := os.Stat(filepath.Join(tmpDir, "touch", "done")); err != nil {
		t.Errorf("expected plugin to have run before Wait returned: %v", err)
	}
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	manager := NewManager(t.TempDir(), nil)
	d := NewDispatcher(manager, NewExecutor(time.Second), nil, nil)

	if results := d.PhotoCaptured(t.Context(), Photo{ID: "p1"}); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
