// Package audit persists a commit ledger for the sync server: one row per
// committed session, independent of the authoritative sync state itself.
package audit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
)

// pragmas tuned for a small, single-writer commit ledger: openDB pins the
// pool to one connection, so ledger writes from concurrent sessions are
// serialized there rather than contending as separate writers.
const pragmas = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
`

// openDB opens (creating if necessary) the sqlite-backed commit ledger at
// path. Use ":memory:" for ephemeral/test use.
func openDB(path string) (*sqlx.DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := ensureParentDir(path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", path)
	}

	slog.Info("audit db", "driver", driverName, "path", path)
	database, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// One committed session writes at a time; a single connection avoids
	// sqlite's SQLITE_BUSY writer contention entirely.
	database.SetMaxOpenConns(1)

	if _, err := database.Exec(pragmas); err != nil {
		database.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return database, nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
