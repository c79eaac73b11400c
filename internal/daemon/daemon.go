package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"areamirror/internal/mirror"
	"areamirror/internal/registry"
)

// Config holds configuration for the daemon.
type Config struct {
	// PollInterval is how often the Poller checks the registry file's
	// modification time.
	PollInterval time.Duration

	// DrainInterval is how often the consumer checks the queue for
	// pending snapshots when idle.
	DrainInterval time.Duration

	// QueueSize is the snapshot queue's buffer capacity.
	QueueSize int

	// UseWatcher selects the fsnotify-based detector instead of the
	// polling one.
	UseWatcher bool

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:  5 * time.Second,
		DrainInterval: 1 * time.Second,
		QueueSize:     64,
		Logger:        log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon owns the snapshot queue and composes the change detector and the
// queue consumer. It is the composition root: the two workers share
// nothing but the queue.
type Daemon struct {
	registryPath string
	reconciler   mirror.Reconciler
	config       *Config

	queue chan registry.Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Daemon that mirrors the registry file at registryPath
// through reconciler.
//
// Use Start() to begin detection and reconciliation.
func New(reconciler mirror.Reconciler, registryPath string, config *Config) (*Daemon, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler cannot be nil")
	}
	if registryPath == "" {
		return nil, fmt.Errorf("registryPath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.DrainInterval <= 0 {
		config.DrainInterval = 1 * time.Second
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		registryPath: registryPath,
		reconciler:   reconciler,
		config:       config,
		queue:        make(chan registry.Snapshot, config.QueueSize),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
//  1. Verify the registry file exists (fatal if not - the one
//     unrecoverable precondition)
//  2. Perform a synchronous initial sync, bypassing the queue, so the
//     table is consistent before the first detector tick
//  3. Run the change detector and the queue consumer until ctx is
//     cancelled
//
// This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if _, err := os.Stat(d.registryPath); err != nil {
		return fmt.Errorf("registry file %s is not accessible: %w", d.registryPath, err)
	}

	d.initialSync(ctx)

	if d.config.UseWatcher {
		watcher, err := NewWatcher(d.registryPath, d.queue, d.config.Logger)
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			watcher.Run(d.ctx)
		}()
		d.config.Logger.Printf("Watching %s for changes", d.registryPath)
	} else {
		poller := NewPoller(d.registryPath, d.config.PollInterval, d.queue, d.config.Logger)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			poller.Run(d.ctx)
		}()
		d.config.Logger.Printf("Polling %s every %s", d.registryPath, d.config.PollInterval)
	}

	d.wg.Add(1)
	go d.consume()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop shuts down both workers and waits for them to exit. Queued
// snapshots are discarded; the next startup's initial sync re-establishes
// consistency.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")
	d.cancel()
	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
	return nil
}

// initialSync reads the registry once and applies it directly, before the
// workers start. Failures here are logged, not fatal: the detector's first
// tick retries the read exactly like any steady-state failure.
func (d *Daemon) initialSync(ctx context.Context) {
	snapshot, err := registry.ReadSnapshot(d.registryPath)
	if err != nil {
		d.config.Logger.Printf("Warning: initial read failed: %v", err)
		return
	}

	if _, err := d.reconciler.Apply(ctx, snapshot); err != nil {
		d.config.Logger.Printf("Warning: initial sync failed: %v", err)
		return
	}

	d.config.Logger.Printf("Initial sync complete (%d areas)", len(snapshot))
}

// consume drains the queue at DrainInterval, applying snapshots one at a
// time in arrival order. Apply failures abandon that snapshot; the next
// detected change determines whether reconciliation is retried.
func (d *Daemon) consume() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.drainQueue()
		}
	}
}

// drainQueue applies every snapshot currently queued, oldest first.
func (d *Daemon) drainQueue() {
	for {
		select {
		case <-d.ctx.Done():
			return

		case snapshot := <-d.queue:
			if _, err := d.reconciler.Apply(d.ctx, snapshot); err != nil {
				d.config.Logger.Printf("Error applying snapshot: %v", err)
			}

		default:
			return
		}
	}
}
