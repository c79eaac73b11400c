package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"areamirror/internal/registry"
)

// startWatcher runs a watcher for the given registry path and returns its
// queue. The watcher is stopped on test cleanup.
func startWatcher(t *testing.T, path string) chan registry.Snapshot {
	t.Helper()

	queue := make(chan registry.Snapshot, 8)
	w, err := NewWatcher(path, queue, quietLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop on cancel")
		}
	})

	return queue
}

// waitForSnapshot blocks until a snapshot arrives or the deadline passes.
func waitForSnapshot(t *testing.T, queue chan registry.Snapshot) registry.Snapshot {
	t.Helper()

	select {
	case snapshot := <-queue:
		return snapshot
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestWatcherPublishesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.area_registry")
	if err := os.WriteFile(path, []byte(registryDoc("kitchen")), 0644); err != nil {
		t.Fatalf("failed to write registry: %v", err)
	}

	queue := startWatcher(t, path)

	if err := os.WriteFile(path, []byte(registryDoc("kitchen", "garage")), 0644); err != nil {
		t.Fatalf("failed to rewrite registry: %v", err)
	}

	snapshot := waitForSnapshot(t, queue)
	if len(snapshot) != 2 {
		t.Errorf("expected 2 areas, got %d", len(snapshot))
	}
}

func TestWatcherPublishesOnAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.area_registry")
	if err := os.WriteFile(path, []byte(registryDoc("kitchen")), 0644); err != nil {
		t.Fatalf("failed to write registry: %v", err)
	}

	queue := startWatcher(t, path)

	// Write-temp-then-rename, the way the registry is actually replaced.
	tmp := filepath.Join(dir, "core.area_registry.tmp")
	if err := os.WriteFile(tmp, []byte(registryDoc("garage")), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("failed to rename: %v", err)
	}

	// The replace may surface as several events (temp create, rename);
	// at least one snapshot with the new content must arrive.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case snapshot := <-queue:
			if len(snapshot) == 1 && snapshot[0].ID == "garage" {
				return
			}
		case <-deadline:
			t.Fatal("never observed the replaced registry content")
		}
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.area_registry")
	if err := os.WriteFile(path, []byte(registryDoc("kitchen")), 0644); err != nil {
		t.Fatalf("failed to write registry: %v", err)
	}

	queue := startWatcher(t, path)

	other := filepath.Join(dir, "core.device_registry")
	if err := os.WriteFile(other, []byte(`{}`), 0644); err != nil {
		t.Fatalf("failed to write other file: %v", err)
	}

	select {
	case snapshot := <-queue:
		t.Errorf("unrelated file must not publish, got %+v", snapshot)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNewWatcherMissingDirectory(t *testing.T) {
	queue := make(chan registry.Snapshot, 1)
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "core.area_registry"), queue, quietLogger())
	if err == nil {
		t.Fatal("expected error for unwatchable directory")
	}
}
