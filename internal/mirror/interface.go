// Package mirror provides the reconciliation layer that keeps the areas
// table an exact copy of the latest registry snapshot.
package mirror

import (
	"context"

	"areamirror/internal/registry"
)

// Result reports the row counts of one reconciliation pass.
type Result struct {
	// Inserted is the number of rows created for ids new to the store.
	Inserted int
	// Updated is the number of rows overwritten for ids already present.
	// Every present record is rewritten every pass, whether or not its
	// fields changed.
	Updated int
	// Deleted is the number of rows removed because their id left the
	// registry.
	Deleted int
}

// Total returns the number of rows touched by the pass.
func (r Result) Total() int {
	return r.Inserted + r.Updated + r.Deleted
}

// Reconciler makes the persistent store's row set exactly match a Snapshot's
// record set via insert/update/delete.
//
// Callers must not run Apply concurrently: snapshots are expected to be
// applied one at a time, in the order they were observed, so that an older
// snapshot can never overwrite the effects of a newer one. The daemon's
// single queue consumer provides this ordering.
type Reconciler interface {
	// Apply reconciles the store against snapshot.
	//
	// The entire pass runs in one transaction: on any persistence failure
	// Apply returns a *StoreError and the store is left exactly as it was
	// before the call (no partial commit).
	//
	// Apply is idempotent - applying the same snapshot twice yields the
	// same store state as applying it once.
	Apply(ctx context.Context, snapshot registry.Snapshot) (Result, error)
}

// Events receives a notification after each successful reconciliation pass.
// Implementations must not block; the reconciler calls them inline.
type Events interface {
	// ReconcileComplete is called once per successful Apply.
	ReconcileComplete(result Result, snapshotSize int)
}
