package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS commit_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	client_id   TEXT NOT NULL,
	mode        TEXT NOT NULL,
	file_count  INTEGER NOT NULL,
	new_version INTEGER NOT NULL,
	committed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_commit_log_client ON commit_log(client_id);
`

// Entry is one recorded commit.
type Entry struct {
	SessionID   string    `db:"session_id"`
	ClientID    string    `db:"client_id"`
	Mode        string    `db:"mode"`
	FileCount   int       `db:"file_count"`
	NewVersion  int64     `db:"new_version"`
	CommittedAt time.Time `db:"committed_at"`
}

// Log records the server's commit ledger. It never gates a commit decision;
// it is a purely observational record of what the server already did.
type Log struct {
	db *sqlx.DB
}

// Open creates (or opens) the audit database at path. Use ":memory:" for
// ephemeral/test use.
func Open(path string) (*Log, error) {
	database, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	return &Log{db: database}, nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// RecordCommit appends one row to the commit ledger.
func (l *Log) RecordCommit(ctx context.Context, e Entry) error {
	if e.CommittedAt.IsZero() {
		e.CommittedAt = time.Now().UTC()
	}

	_, err := l.db.NamedExecContext(ctx, `
		INSERT INTO commit_log (session_id, client_id, mode, file_count, new_version, committed_at)
		VALUES (:session_id, :client_id, :mode, :file_count, :new_version, :committed_at)
	`, e)
	if err != nil {
		return fmt.Errorf("record commit: %w", err)
	}
	return nil
}

// Recent returns the last n commit entries, most recent first.
func (l *Log) Recent(ctx context.Context, n int) ([]Entry, error) {
	var entries []Entry
	err := l.db.SelectContext(ctx, &entries, `
		SELECT session_id, client_id, mode, file_count, new_version, committed_at
		FROM commit_log
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	return entries, nil
}
