// Package db persists analysis runs and their numeric results in sqlite:
// the parameter snapshot, one row per contributed scene, excluded years with
// reasons, pairwise change summaries and the final trend. Rasters and masks
// are never stored; caching those is an external concern.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite connection for the analysis store.
type DB struct {
	*sql.DB
}

// OpenDB opens (or creates) the sqlite database at path without touching the
// schema; migrations manage the schema.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}
	return &DB{db}, nil
}

// retryOnBusy retries a write a few times when sqlite reports the database
// is locked by a concurrent writer.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		err = fn()
		if err == nil || !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return err
}
