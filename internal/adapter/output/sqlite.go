package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb/encoding/wkt"
	_ "modernc.org/sqlite"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
)

const schema = `
CREATE TABLE reaches (
	idx            INTEGER PRIMARY KEY,
	classification TEXT NOT NULL,
	geometry_wkt   TEXT NOT NULL
);
CREATE TABLE metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLiteWriter writes reaches to a fresh SQLite database with geometries
// as WKT. It implements pipeline.Loader.
type SQLiteWriter struct {
	path string
}

// NewSQLiteWriter creates a writer for the database at path. An existing
// file is replaced.
func NewSQLiteWriter(path string) *SQLiteWriter {
	return &SQLiteWriter{path: path}
}

// Path returns the destination database.
func (w *SQLiteWriter) Path() string { return w.path }

func (w *SQLiteWriter) Load(ctx context.Context, out domain.ClassifiedNetwork) error {
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", w.path)
	if err != nil {
		return fmt.Errorf("open SQLite database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO reaches (idx, classification, geometry_wkt) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range out.Reaches.Reaches() {
		if _, err := stmt.ExecContext(ctx, r.Index(), r.Classification().String(), wkt.MarshalString(r.Geometry())); err != nil {
			return fmt.Errorf("insert reach %d: %w", r.Index(), err)
		}
	}

	meta := map[string]string{
		"run_id":            out.RunID,
		"spatial_reference": out.SpatialReference.Name,
		"reach_count":       strconv.Itoa(out.Reaches.Len()),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert metadata %s: %w", k, err)
		}
	}

	return tx.Commit()
}
