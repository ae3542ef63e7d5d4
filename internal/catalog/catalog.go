// Package catalog tracks pipeline runs and the artifacts they produced in a
// SQLite database, so the analysis stages can resolve "the latest derived
// product for this variable and shelf" without scanning the artifact
// directory.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cryoclim/shelfmelt/internal/artifact"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	stage      TEXT NOT NULL,
	started_at TEXT NOT NULL,
	ended_at   TEXT,
	status     TEXT NOT NULL DEFAULT 'running'
);
CREATE TABLE IF NOT EXISTS artifacts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	kind       TEXT NOT NULL,
	variable   TEXT NOT NULL,
	shelf      TEXT NOT NULL DEFAULT '',
	path       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS artifacts_lookup
	ON artifacts (kind, variable, shelf, created_at);
`

// Catalog is an open run/artifact database.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if necessary) the catalog at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing catalog %s: %w", path, err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// BeginRun registers a new run of the named stage and returns its ID.
func (c *Catalog) BeginRun(stage string) (string, error) {
	id := uuid.NewString()
	_, err := c.db.Exec(
		`INSERT INTO runs (id, stage, started_at) VALUES (?, ?, ?)`,
		id, stage, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return id, nil
}

// EndRun marks a run finished. Status is "ok" or "failed".
func (c *Catalog) EndRun(runID, status string) error {
	_, err := c.db.Exec(
		`UPDATE runs SET ended_at = ?, status = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), status, runID,
	)
	if err != nil {
		return fmt.Errorf("closing run %s: %w", runID, err)
	}
	return nil
}

// RecordArtifact registers a written product under its run.
func (c *Catalog) RecordArtifact(m artifact.Metadata, path string) error {
	_, err := c.db.Exec(
		`INSERT INTO artifacts (run_id, kind, variable, shelf, path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.RunID, m.Kind, m.Variable, m.Shelf, path,
		m.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording artifact %s: %w", path, err)
	}
	return nil
}

// LatestArtifact resolves the newest product of the given kind, variable,
// and shelf. An empty shelf matches shelf-independent products. A product
// that was never derived is a MissingInputError naming what was asked for.
func (c *Catalog) LatestArtifact(kind, variable, shelf string) (string, error) {
	var path string
	err := c.db.QueryRow(
		`SELECT path FROM artifacts
		 WHERE kind = ? AND variable = ? AND shelf = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		kind, variable, shelf,
	).Scan(&path)
	if err == sql.ErrNoRows {
		want := fmt.Sprintf("%s/%s", kind, variable)
		if shelf != "" {
			want += "/" + shelf
		}
		return "", &artifact.MissingInputError{Path: want}
	}
	if err != nil {
		return "", fmt.Errorf("resolving %s %s: %w", kind, variable, err)
	}
	return path, nil
}

// RunArtifacts lists the paths recorded under one run, oldest first.
func (c *Catalog) RunArtifacts(runID string) ([]string, error) {
	rows, err := c.db.Query(
		`SELECT path FROM artifacts WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing run %s: %w", runID, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
