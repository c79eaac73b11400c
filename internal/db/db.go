// Package db provides the embedded SQLite mirror table for area records.
//
// The database holds a single areas table keyed by area id. List-valued
// fields (aliases, labels) are stored as JSON array text because SQLite has
// no native list type; the encoding is reversible and order-preserving.
//
// The database runs in embedded mode using the ncruces/go-sqlite3 driver
// with WAL enabled so readers are never blocked by the sync writer.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"areamirror/internal/registry"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection holding the mirrored areas table.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist it is created; the parent directory is
// created as needed. Pass ":memory:" for an in-memory database (used by
// tests).
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	connStr := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		connStr = fmt.Sprintf("file:%s", path)
	}

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	db := &DB{
		conn: conn,
		path: path,
	}

	// WAL so status/dashboard reads never block the sync writer.
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the areas table if it doesn't exist.
// This is idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS areas (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		floor_id TEXT,
		icon TEXT,
		picture TEXT,
		created_at TEXT,
		modified_at TEXT,
		aliases TEXT,  -- JSON array
		labels TEXT    -- JSON array
	);

	CREATE INDEX IF NOT EXISTS idx_areas_floor ON areas(floor_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// ReconcileStats reports the outcome of one ReconcileAreas call.
type ReconcileStats struct {
	// Inserted is the number of areas new to the table.
	Inserted int
	// Updated is the number of areas that were already present and were
	// overwritten in place.
	Updated int
	// Deleted is the number of rows removed because their id is absent
	// from the snapshot.
	Deleted int
	// DeletedIDs lists the ids removed, for logging.
	DeletedIDs []string
}

// ReconcileAreas makes the areas table exactly match the given record set,
// inside a single transaction.
//
// Rows whose id is absent from areas are deleted; every record in areas is
// then upserted unconditionally (full-row overwrite, no field diffing).
// On any failure the transaction rolls back and the table is left as it
// was - there is no partial application.
func (db *DB) ReconcileAreas(ctx context.Context, areas []registry.Area) (ReconcileStats, error) {
	var stats ReconcileStats

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := listIDs(ctx, tx)
	if err != nil {
		return stats, err
	}

	current := make(map[string]struct{}, len(areas))
	for _, a := range areas {
		current[a.ID] = struct{}{}
	}

	// Delete rows no longer present in the registry.
	for id := range existing {
		if _, ok := current[id]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM areas WHERE id = ?", id); err != nil {
			return stats, fmt.Errorf("failed to delete area %s: %w", id, err)
		}
		stats.Deleted++
		stats.DeletedIDs = append(stats.DeletedIDs, id)
	}

	// Upsert every record in the snapshot, whether or not it changed.
	for i := range areas {
		if err := upsertArea(ctx, tx, &areas[i]); err != nil {
			return stats, err
		}
		if _, ok := existing[areas[i].ID]; ok {
			stats.Updated++
		} else {
			stats.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return stats, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// UpsertArea inserts or replaces a single area row.
//
// Aliases and labels are stored as JSON array strings.
func (db *DB) UpsertArea(area *registry.Area) error {
	return db.UpsertAreaContext(context.Background(), area)
}

// UpsertAreaContext inserts or replaces a single area row with context support.
func (db *DB) UpsertAreaContext(ctx context.Context, area *registry.Area) error {
	return upsertArea(ctx, db.conn, area)
}

func upsertArea(ctx context.Context, ex execer, area *registry.Area) error {
	if err := area.Validate(); err != nil {
		return fmt.Errorf("invalid area: %w", err)
	}

	aliasesJSON, err := json.Marshal(emptyIfNil(area.Aliases))
	if err != nil {
		return fmt.Errorf("failed to marshal aliases: %w", err)
	}
	labelsJSON, err := json.Marshal(emptyIfNil(area.Labels))
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	query := `
	INSERT INTO areas (
		id, name, floor_id, icon, picture,
		created_at, modified_at, aliases, labels
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		floor_id = excluded.floor_id,
		icon = excluded.icon,
		picture = excluded.picture,
		created_at = excluded.created_at,
		modified_at = excluded.modified_at,
		aliases = excluded.aliases,
		labels = excluded.labels
	`

	_, err = ex.ExecContext(ctx, query,
		area.ID,
		area.Name,
		nullIfEmpty(area.FloorID),
		nullIfEmpty(area.Icon),
		nullIfEmpty(area.Picture),
		nullIfEmpty(area.CreatedAt),
		nullIfEmpty(area.ModifiedAt),
		string(aliasesJSON),
		string(labelsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert area %s: %w", area.ID, err)
	}

	return nil
}

// DeleteArea removes an area row.
// Returns nil if the area doesn't exist (idempotent).
func (db *DB) DeleteArea(areaID string) error {
	return db.DeleteAreaContext(context.Background(), areaID)
}

// DeleteAreaContext removes an area row with context support.
func (db *DB) DeleteAreaContext(ctx context.Context, areaID string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM areas WHERE id = ?", areaID)
	if err != nil {
		return fmt.Errorf("failed to delete area %s: %w", areaID, err)
	}
	return nil
}

// ListAreaIDs returns the set of ids currently present in the areas table.
func (db *DB) ListAreaIDs(ctx context.Context) (map[string]struct{}, error) {
	return listIDs(ctx, db.conn)
}

func listIDs(ctx context.Context, ex execer) (map[string]struct{}, error) {
	rows, err := ex.QueryContext(ctx, "SELECT id FROM areas")
	if err != nil {
		return nil, fmt.Errorf("failed to list area ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan area id: %w", err)
		}
		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating area ids: %w", err)
	}

	return ids, nil
}

// GetAreaByID retrieves a single area by id.
// Returns sql.ErrNoRows if the area is not found.
func (db *DB) GetAreaByID(id string) (*registry.Area, error) {
	return db.GetAreaByIDContext(context.Background(), id)
}

// GetAreaByIDContext retrieves a single area by id with context support.
func (db *DB) GetAreaByIDContext(ctx context.Context, id string) (*registry.Area, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT id, name, floor_id, icon, picture,
	       created_at, modified_at, aliases, labels
	FROM areas
	WHERE id = ?
	`, id)

	area, err := scanArea(row.Scan)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get area %s: %w", id, err)
	}
	return area, nil
}

// ListAreas retrieves all areas ordered by name.
func (db *DB) ListAreas(ctx context.Context) ([]*registry.Area, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT id, name, floor_id, icon, picture,
	       created_at, modified_at, aliases, labels
	FROM areas
	ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list areas: %w", err)
	}
	defer rows.Close()

	var areas []*registry.Area
	for rows.Next() {
		area, err := scanArea(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan area: %w", err)
		}
		areas = append(areas, area)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating areas: %w", err)
	}

	return areas, nil
}

// CountAreas returns the total number of rows in the areas table.
func (db *DB) CountAreas(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM areas").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count areas: %w", err)
	}
	return count, nil
}

// scanArea scans one areas row into a registry.Area, decoding the JSON
// list columns.
func scanArea(scan func(dest ...interface{}) error) (*registry.Area, error) {
	var area registry.Area
	var floorID, icon, picture, createdAt, modifiedAt sql.NullString
	var aliasesJSON, labelsJSON sql.NullString

	err := scan(
		&area.ID,
		&area.Name,
		&floorID,
		&icon,
		&picture,
		&createdAt,
		&modifiedAt,
		&aliasesJSON,
		&labelsJSON,
	)
	if err != nil {
		return nil, err
	}

	area.FloorID = floorID.String
	area.Icon = icon.String
	area.Picture = picture.String
	area.CreatedAt = createdAt.String
	area.ModifiedAt = modifiedAt.String

	area.Aliases, err = decodeStringList(aliasesJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal aliases: %w", err)
	}
	area.Labels, err = decodeStringList(labelsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
	}

	return &area, nil
}

// decodeStringList decodes a JSON array text column back to a string slice.
// NULL and "null" both decode to an empty slice.
func decodeStringList(ns sql.NullString) ([]string, error) {
	s := strings.TrimSpace(ns.String)
	if !ns.Valid || s == "" || s == "null" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// nullIfEmpty converts an optional string field to a nullable SQL value.
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// emptyIfNil normalizes a nil slice so it marshals to [] rather than null.
func emptyIfNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
