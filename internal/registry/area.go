// Package registry reads area records out of the Home Assistant style
// area registry file (.storage/core.area_registry).
package registry

import (
	"fmt"
)

// Area represents one area record from the registry file.
//
// The timestamp fields are opaque to this program: whatever string the
// registry holds is carried through to the database verbatim.
type Area struct {
	// ===== Core Identification =====
	ID string `json:"id"`

	// ===== Display =====
	Name    string `json:"name"`
	Icon    string `json:"icon,omitempty"`
	Picture string `json:"picture,omitempty"`

	// ===== Placement =====
	FloorID string `json:"floor_id,omitempty"` // reference to a floor entity, not modeled further

	// ===== Timestamps (pass-through) =====
	CreatedAt  string `json:"created_at,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`

	// ===== Classification =====
	Aliases []string `json:"aliases,omitempty"`
	Labels  []string `json:"labels,omitempty"`
}

// Validate checks that the Area carries the fields reconciliation depends on.
func (a *Area) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// Snapshot is one full, point-in-time observation of the registry's area
// collection. Snapshots are produced wholesale by ReadSnapshot, never
// incrementally, and are treated as immutable once published.
type Snapshot []Area

// IDs returns the set of area ids present in the snapshot.
func (s Snapshot) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s))
	for _, a := range s {
		ids[a.ID] = struct{}{}
	}
	return ids
}
