package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver
	"sonate-hq/arbiter/pkg/audit"
)

// SQLite is a durable audit store on a local SQLite database with WAL
// journaling. It implements audit.Storage.
type SQLite struct {
	db *sql.DB
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id             TEXT PRIMARY KEY,
	timestamp      TIMESTAMP NOT NULL,
	entry_type     TEXT NOT NULL,
	receipt_id     TEXT,
	agent_did      TEXT,
	decision       TEXT,
	total          INTEGER NOT NULL DEFAULT 0,
	critical       INTEGER NOT NULL DEFAULT 0,
	high           INTEGER NOT NULL DEFAULT 0,
	medium         INTEGER NOT NULL DEFAULT 0,
	low            INTEGER NOT NULL DEFAULT 0,
	principle_ids  TEXT,
	reason         TEXT,
	details        TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_agent ON audit_entries(agent_did);
CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_entries(entry_type);
`

// NewSQLite opens (and if needed initializes) an audit database at the
// given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, &audit.StorageError{Operation: "open", Cause: err}
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, &audit.StorageError{Operation: "migrate", Cause: err}
	}
	return &SQLite{db: db}, nil
}

// Append persists one entry.
func (s *SQLite) Append(e *audit.Entry) error {
	principles, err := json.Marshal(e.PrincipleIDs)
	if err != nil {
		return &audit.StorageError{Operation: "append", Cause: err}
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return &audit.StorageError{Operation: "append", Cause: err}
	}

	_, err = s.db.Exec(`
		INSERT INTO audit_entries (
			id, timestamp, entry_type, receipt_id, agent_did, decision,
			total, critical, high, medium, low, principle_ids, reason, details
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, string(e.EntryType), e.ReceiptID, e.AgentDID, e.Decision,
		e.Violations.Total, e.Violations.Critical, e.Violations.High,
		e.Violations.Medium, e.Violations.Low,
		string(principles), e.Reason, string(details),
	)
	if err != nil {
		return &audit.StorageError{Operation: "append", Cause: err}
	}
	return nil
}

// Prune deletes entries older than the cutoff and trims the table to the
// newest maxRows entries.
func (s *SQLite) Prune(olderThan time.Time, maxRows int) (int, error) {
	deleted := 0

	if !olderThan.IsZero() {
		res, err := s.db.Exec(`DELETE FROM audit_entries WHERE timestamp < ?`, olderThan)
		if err != nil {
			return deleted, &audit.StorageError{Operation: "prune", Cause: err}
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted += int(n)
		}
	}

	if maxRows > 0 {
		res, err := s.db.Exec(`
			DELETE FROM audit_entries WHERE id NOT IN (
				SELECT id FROM audit_entries ORDER BY timestamp DESC LIMIT ?
			)`, maxRows)
		if err != nil {
			return deleted, &audit.StorageError{Operation: "prune", Cause: err}
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted += int(n)
		}
	}

	return deleted, nil
}

// Count returns the number of stored entries.
func (s *SQLite) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audit_entries`).Scan(&n); err != nil {
		return 0, &audit.StorageError{Operation: "count", Cause: err}
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
