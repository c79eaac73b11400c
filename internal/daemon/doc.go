// Package daemon runs the background workers that keep the areas table in
// sync with the registry file.
//
// # Architecture
//
// Two long-running workers communicate through a single buffered snapshot
// queue owned by the Daemon:
//
//   - A change detector (Poller by default, Watcher when configured)
//     notices registry file changes, re-reads the full area collection,
//     and publishes the resulting snapshot to the queue.
//   - A consumer drains the queue in FIFO order and hands each snapshot to
//     the mirror.Reconciler, one at a time.
//
// The queue is the only shared mutable resource; there is no global state.
// The detector never blocks on the consumer: publishing is non-blocking,
// and a full queue simply delays the hand-off to the next detector tick.
//
// # Change Detection
//
// The default detector polls the registry file's modification time at a
// fixed interval (5s). Comparing mtime rather than content avoids
// re-parsing on every tick; same-second edits may coalesce into one
// snapshot, which is acceptable because every snapshot carries the full
// record set.
//
// When a read fails (or the queue is full) the detector keeps its last
// observed mtime unchanged, so the same change is retried on the next tick
// - delivery is at-least-once, never at-most-once.
//
// The Watcher is a drop-in alternative built on fsnotify. It preserves the
// same contract: any event touching the registry file triggers an
// unconditional full re-read and republish.
//
// # Startup
//
// Start verifies the registry file exists (the one fatal precondition),
// then performs a synchronous initial sync - read plus apply, bypassing
// the queue - so the table is consistent with the file before either
// worker begins. Steady-state errors after that point are logged and
// swallowed at the worker-loop boundary; only context cancellation stops
// the workers.
//
// # Shutdown
//
// There is no graceful drain of in-flight snapshots: cancellation stops
// both workers where they are, and the next startup's initial sync
// re-establishes consistency.
package daemon
