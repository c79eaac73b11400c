package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"areamirror/internal/registry"
)

// Watcher detects registry changes through fsnotify events instead of
// polling. It is a drop-in replacement for Poller with the same contract:
// any change to the registry file triggers an unconditional full re-read
// and republish.
//
// The watch is placed on the registry file's parent directory rather than
// the file itself, because the registry is typically replaced atomically
// (write temp file, rename over the target), which would break a watch
// bound to the old inode.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	queue   chan<- registry.Snapshot
	logger  *log.Logger
}

// NewWatcher creates a watcher for the registry file at path.
func NewWatcher(path string, queue chan<- registry.Snapshot, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[watcher] ", log.LstdFlags)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch registry directory: %w", err)
	}

	return &Watcher{
		path:    path,
		watcher: fsw,
		queue:   queue,
		logger:  logger,
	}, nil
}

// Run processes file system events until ctx is cancelled. Errors are
// logged and never terminate the loop.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isRegistryChange(event) {
				continue
			}

			w.logger.Printf("File event: %s %s", event.Op, event.Name)
			w.publish()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("Warning: watcher error: %v", err)
		}
	}
}

// isRegistryChange reports whether the event is a content change of the
// registry file. Chmod and removal are ignored; removal of the registry is
// transient during an atomic replace and the rename/create that follows
// carries the new content.
func (w *Watcher) isRegistryChange(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != filepath.Base(w.path) {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}

// publish re-reads the full registry and hands the snapshot to the queue.
func (w *Watcher) publish() {
	snapshot, err := registry.ReadSnapshot(w.path)
	if err != nil {
		w.logger.Printf("Warning: %v", err)
		return
	}

	select {
	case w.queue <- snapshot:
		w.logger.Printf("Published snapshot with %d areas", len(snapshot))
	default:
		w.logger.Printf("Warning: snapshot queue full, dropping event")
	}
}
