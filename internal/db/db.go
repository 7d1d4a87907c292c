// Package db persists inspection runs and reconciliation results in
// SQLite. Schema changes are managed by golang-migrate; see the
// migrations directory at the repository root.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection used by every store.
type DB struct {
	*sql.DB

	// Path is the database file path, used for admin labels and backup
	// naming.
	Path string
}

// Open opens (creating if necessary) the SQLite database at path.
// Schema management is the migration runner's job; Open only sets
// connection pragmas.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	return &DB{DB: sqlDB, Path: path}, nil
}
