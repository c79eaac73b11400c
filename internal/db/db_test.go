package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"areamirror/internal/registry"
)

// setupTestDB creates an in-memory database with the schema applied.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return database
}

func testArea(id, name string) *registry.Area {
	return &registry.Area{
		ID:      id,
		Name:    name,
		Aliases: []string{},
		Labels:  []string{},
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mirror.db")

	database, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
}

func TestInitSchemaIdempotent(t *testing.T) {
	database := setupTestDB(t)

	// Second call must be a no-op, not an error.
	if err := database.InitSchema(); err != nil {
		t.Fatalf("second InitSchema failed: %v", err)
	}
}

func TestUpsertAndGetArea(t *testing.T) {
	database := setupTestDB(t)

	area := &registry.Area{
		ID:         "kitchen",
		Name:       "Kitchen",
		FloorID:    "ground",
		Icon:       "mdi:fridge",
		Picture:    "/local/kitchen.png",
		CreatedAt:  "2024-01-01T00:00:00+00:00",
		ModifiedAt: "2024-06-01T00:00:00+00:00",
		Aliases:    []string{"cook", "cucina"},
		Labels:     []string{"wet"},
	}

	if err := database.UpsertArea(area); err != nil {
		t.Fatalf("UpsertArea failed: %v", err)
	}

	got, err := database.GetAreaByID("kitchen")
	if err != nil {
		t.Fatalf("GetAreaByID failed: %v", err)
	}

	if !reflect.DeepEqual(got, area) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, area)
	}
}

func TestUpsertAreaOverwrites(t *testing.T) {
	database := setupTestDB(t)

	if err := database.UpsertArea(testArea("kitchen", "Kitchen")); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	updated := testArea("kitchen", "Chef's Kitchen")
	updated.FloorID = "first"
	updated.Labels = []string{"wet", "renovated"}
	if err := database.UpsertArea(updated); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := database.GetAreaByID("kitchen")
	if err != nil {
		t.Fatalf("GetAreaByID failed: %v", err)
	}

	if got.Name != "Chef's Kitchen" {
		t.Errorf("expected overwritten name, got %s", got.Name)
	}
	if got.FloorID != "first" {
		t.Errorf("expected overwritten floor_id, got %s", got.FloorID)
	}
	if !reflect.DeepEqual(got.Labels, []string{"wet", "renovated"}) {
		t.Errorf("expected overwritten labels, got %v", got.Labels)
	}

	count, err := database.CountAreas(context.Background())
	if err != nil {
		t.Fatalf("CountAreas failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after upsert, got %d", count)
	}
}

func TestUpsertAreaInvalid(t *testing.T) {
	database := setupTestDB(t)

	if err := database.UpsertArea(&registry.Area{Name: "no id"}); err == nil {
		t.Error("expected error for area without id")
	}
	if err := database.UpsertArea(&registry.Area{ID: "no-name"}); err == nil {
		t.Error("expected error for area without name")
	}
}

func TestListRoundTripPreservesOrder(t *testing.T) {
	database := setupTestDB(t)

	area := testArea("hall", "Hall")
	area.Aliases = []string{"b", "a", "c"}

	if err := database.UpsertArea(area); err != nil {
		t.Fatalf("UpsertArea failed: %v", err)
	}

	got, err := database.GetAreaByID("hall")
	if err != nil {
		t.Fatalf("GetAreaByID failed: %v", err)
	}

	// The JSON array encoding must preserve element order exactly.
	if !reflect.DeepEqual(got.Aliases, []string{"b", "a", "c"}) {
		t.Errorf("alias order not preserved: %v", got.Aliases)
	}
}

func TestDeleteArea(t *testing.T) {
	database := setupTestDB(t)

	if err := database.UpsertArea(testArea("attic", "Attic")); err != nil {
		t.Fatalf("UpsertArea failed: %v", err)
	}

	if err := database.DeleteArea("attic"); err != nil {
		t.Fatalf("DeleteArea failed: %v", err)
	}

	if _, err := database.GetAreaByID("attic"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows after delete, got %v", err)
	}

	// Deleting a missing row is not an error.
	if err := database.DeleteArea("attic"); err != nil {
		t.Errorf("second delete should be idempotent: %v", err)
	}
}

func TestListAreaIDs(t *testing.T) {
	database := setupTestDB(t)

	ids, err := database.ListAreaIDs(context.Background())
	if err != nil {
		t.Fatalf("ListAreaIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty id set, got %d", len(ids))
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := database.UpsertArea(testArea(id, "Area "+id)); err != nil {
			t.Fatalf("UpsertArea failed: %v", err)
		}
	}

	ids, err = database.ListAreaIDs(context.Background())
	if err != nil {
		t.Fatalf("ListAreaIDs failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, ok := ids[id]; !ok {
			t.Errorf("missing id %s", id)
		}
	}
}

func TestListAreasOrderedByName(t *testing.T) {
	database := setupTestDB(t)

	for _, a := range []struct{ id, name string }{
		{"z", "Attic"},
		{"a", "Zen Garden"},
		{"m", "Kitchen"},
	} {
		if err := database.UpsertArea(testArea(a.id, a.name)); err != nil {
			t.Fatalf("UpsertArea failed: %v", err)
		}
	}

	areas, err := database.ListAreas(context.Background())
	if err != nil {
		t.Fatalf("ListAreas failed: %v", err)
	}

	var names []string
	for _, a := range areas {
		names = append(names, a.Name)
	}
	want := []string{"Attic", "Kitchen", "Zen Garden"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("unexpected order: got %v, want %v", names, want)
	}
}

func TestReconcileAreas(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	// Seed with A and B.
	seed := []registry.Area{*testArea("A", "Old A"), *testArea("B", "B")}
	stats, err := database.ReconcileAreas(ctx, seed)
	if err != nil {
		t.Fatalf("seed reconcile failed: %v", err)
	}
	if stats.Inserted != 2 || stats.Updated != 0 || stats.Deleted != 0 {
		t.Fatalf("unexpected seed stats: %+v", stats)
	}

	// New snapshot keeps A (renamed), drops B, adds C.
	kitchen := *testArea("A", "Kitchen")
	kitchen.Labels = []string{"wet"}
	garage := *testArea("C", "Garage")
	garage.Aliases = []string{"shop"}

	stats, err = database.ReconcileAreas(ctx, []registry.Area{kitchen, garage})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	if stats.Inserted != 1 || stats.Updated != 1 || stats.Deleted != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(stats.DeletedIDs) != 1 || stats.DeletedIDs[0] != "B" {
		t.Errorf("unexpected deleted ids: %v", stats.DeletedIDs)
	}

	ids, err := database.ListAreaIDs(ctx)
	if err != nil {
		t.Fatalf("ListAreaIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected exactly {A, C}, got %v", ids)
	}
	if _, ok := ids["A"]; !ok {
		t.Error("A missing from store")
	}
	if _, ok := ids["C"]; !ok {
		t.Error("C missing from store")
	}

	a, err := database.GetAreaByID("A")
	if err != nil {
		t.Fatalf("GetAreaByID failed: %v", err)
	}
	if a.Name != "Kitchen" {
		t.Errorf("row A not overwritten: %s", a.Name)
	}

	c, err := database.GetAreaByID("C")
	if err != nil {
		t.Fatalf("GetAreaByID failed: %v", err)
	}
	if !reflect.DeepEqual(c.Aliases, []string{"shop"}) {
		t.Errorf("row C aliases not decodable to [shop]: %v", c.Aliases)
	}
}

func TestReconcileAreasEmptySnapshot(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	if _, err := database.ReconcileAreas(ctx, []registry.Area{*testArea("A", "A"), *testArea("B", "B")}); err != nil {
		t.Fatalf("seed reconcile failed: %v", err)
	}

	stats, err := database.ReconcileAreas(ctx, nil)
	if err != nil {
		t.Fatalf("empty reconcile failed: %v", err)
	}
	if stats.Deleted != 2 || stats.Inserted != 0 || stats.Updated != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	count, err := database.CountAreas(ctx)
	if err != nil {
		t.Fatalf("CountAreas failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty table, got %d rows", count)
	}
}

func TestReconcileAreasAbortsOnInvalidRecord(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	if _, err := database.ReconcileAreas(ctx, []registry.Area{*testArea("A", "A")}); err != nil {
		t.Fatalf("seed reconcile failed: %v", err)
	}

	// A batch containing an invalid record fails as a whole: the delete of
	// A computed in the same pass must be rolled back.
	bad := []registry.Area{{ID: "B"}} // missing name
	if _, err := database.ReconcileAreas(ctx, bad); err == nil {
		t.Fatal("expected reconcile to fail")
	}

	ids, err := database.ListAreaIDs(ctx)
	if err != nil {
		t.Fatalf("ListAreaIDs failed: %v", err)
	}
	if _, ok := ids["A"]; !ok {
		t.Error("rollback did not preserve row A")
	}
	if _, ok := ids["B"]; ok {
		t.Error("failed batch must not leave partial rows")
	}
}
