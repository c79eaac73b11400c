package mirror

import (
	"context"
	"fmt"
	"log"
	"os"

	"areamirror/internal/db"
	"areamirror/internal/registry"
)

// StoreError indicates a persistence operation failed while applying a
// snapshot. The snapshot's reconciliation is abandoned in full; the next
// detected registry change determines whether it is retried.
type StoreError struct {
	// Err is the underlying database failure.
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %v", e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// reconciler implements the Reconciler interface on top of the SQLite store.
type reconciler struct {
	db     *db.DB
	logger *log.Logger
	events Events
}

// New creates a Reconciler backed by database.
//
// The database connection must be open and have its schema created before
// being passed here. If logger is nil, a default logger writing to stderr
// is used. events may be nil.
func New(database *db.DB, logger *log.Logger, events Events) Reconciler {
	if logger == nil {
		logger = log.New(os.Stderr, "[mirror] ", log.LstdFlags)
	}
	return &reconciler{
		db:     database,
		logger: logger,
		events: events,
	}
}

// Apply implements Reconciler.Apply.
func (r *reconciler) Apply(ctx context.Context, snapshot registry.Snapshot) (Result, error) {
	stats, err := r.db.ReconcileAreas(ctx, snapshot)
	if err != nil {
		return Result{}, &StoreError{Err: err}
	}

	for _, id := range stats.DeletedIDs {
		r.logger.Printf("Deleted area: %s", id)
	}
	for _, area := range snapshot {
		r.logger.Printf("Synced area: %s (%s)", area.Name, area.ID)
	}

	result := Result{
		Inserted: stats.Inserted,
		Updated:  stats.Updated,
		Deleted:  stats.Deleted,
	}

	r.logger.Printf("Reconcile complete: inserted=%d updated=%d deleted=%d",
		result.Inserted, result.Updated, result.Deleted)

	if r.events != nil {
		r.events.ReconcileComplete(result, len(snapshot))
	}

	return result, nil
}
