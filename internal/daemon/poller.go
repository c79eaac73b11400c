package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"areamirror/internal/registry"
)

// SignalError indicates the registry file's modification signal could not
// be queried.
type SignalError struct {
	// Path is the registry file that failed to stat.
	Path string
	// Err is the underlying cause.
	Err error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("stat registry %s: %v", e.Path, e.Err)
}

func (e *SignalError) Unwrap() error { return e.Err }

// Poller detects registry changes by polling the file's modification time
// at a fixed interval.
//
// Polling is chosen over event-driven notification for portability and
// simplicity; the interval bounds propagation delay. See Watcher for the
// event-driven alternative.
type Poller struct {
	path     string
	interval time.Duration
	queue    chan<- registry.Snapshot
	logger   *log.Logger

	lastMod time.Time
	hasLast bool
}

// NewPoller creates a poller that publishes snapshots of the registry at
// path to queue whenever the file's mtime changes.
func NewPoller(path string, interval time.Duration, queue chan<- registry.Snapshot, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.New(os.Stderr, "[poller] ", log.LstdFlags)
	}
	return &Poller{
		path:     path,
		interval: interval,
		queue:    queue,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. Errors are logged and never terminate
// the loop.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			p.tick()
		}
	}
}

// tick performs one observation of the registry file.
//
// The last observed mtime only advances after a successful read AND
// publish, so a failed tick retries the same change on the next one.
func (p *Poller) tick() {
	info, err := os.Stat(p.path)
	if err != nil {
		p.logger.Printf("Warning: %v", &SignalError{Path: p.path, Err: err})
		return
	}

	mod := info.ModTime()
	if p.hasLast && mod.Equal(p.lastMod) {
		return
	}

	p.logger.Printf("Detected change in %s", p.path)

	snapshot, err := registry.ReadSnapshot(p.path)
	if err != nil {
		p.logger.Printf("Warning: %v", err)
		return
	}

	select {
	case p.queue <- snapshot:
		p.lastMod = mod
		p.hasLast = true
		p.logger.Printf("Published snapshot with %d areas", len(snapshot))
	default:
		p.logger.Printf("Warning: snapshot queue full, will retry next tick")
	}
}
