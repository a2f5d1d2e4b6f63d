// Package db opens the SQLite database behind the sqlite snapshot backend.
// It owns the connection settings and the schema of the snapshots and
// snapshot_records tables; reads and writes live in package snapshot.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath returns the snapshot database location inside a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "snapshots.db")
}

// Snapshot commits must survive a crash before the day is reported as saved,
// and off-market carry-forward relies on records cascading with their snapshot.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=FULL",
	"PRAGMA foreign_keys=ON",
}

// Open returns a handle to the snapshot database at path, creating the file
// and its directory on first use and bringing the schema up to date.
//
// The pool is limited to one connection: pragmas are per connection, and a
// day's snapshot is written in a single transaction.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database %s: %w", path, err)
	}
	d.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := d.Exec(p); err != nil {
			return nil, closeOnError(d, fmt.Errorf("executing %s: %w", p, err))
		}
	}
	if err := migrate(d); err != nil {
		return nil, closeOnError(d, fmt.Errorf("migrating snapshot schema: %w", err))
	}
	return d, nil
}

// closeOnError closes d and returns err joined with any close failure.
func closeOnError(d *sql.DB, err error) error {
	if closeErr := d.Close(); closeErr != nil {
		return errors.Join(err, fmt.Errorf("closing database: %w", closeErr))
	}
	return err
}
