package override

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore persists overrides in a local SQLite database so they survive
// process restarts. It uses the pure-Go driver, so no cgo is required.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

const overrideSchema = `
CREATE TABLE IF NOT EXISTS overrides (
	id             TEXT PRIMARY KEY,
	receipt_id     TEXT NOT NULL,
	agent_id       TEXT NOT NULL,
	principle_ids  TEXT NOT NULL,
	authorized_by  TEXT NOT NULL,
	authorized_at  TIMESTAMP NOT NULL,
	expires_at     TIMESTAMP,
	reason         TEXT NOT NULL,
	severity       TEXT,
	revoked_by     TEXT,
	revoked_at     TIMESTAMP,
	revoke_reason  TEXT,
	usage_count    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_overrides_receipt ON overrides(receipt_id);
CREATE INDEX IF NOT EXISTS idx_overrides_agent ON overrides(agent_id);
`

// NewSQLiteStore opens (and if needed initializes) an override database at
// the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Operation: "open", Cause: err}
	}

	// Single writer keeps the pure-Go driver free of lock contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, &StoreError{Operation: "configure", Cause: err}
	}
	if _, err := db.Exec(overrideSchema); err != nil {
		db.Close()
		return nil, &StoreError{Operation: "migrate", Cause: err}
	}

	return &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "override.sqlite"),
	}, nil
}

// Save persists a newly created override.
func (s *SQLiteStore) Save(o *Override) error {
	principles, err := json.Marshal(o.PrincipleIDs)
	if err != nil {
		return &StoreError{Operation: "save", Cause: err}
	}

	_, err = s.db.Exec(`
		INSERT INTO overrides (
			id, receipt_id, agent_id, principle_ids, authorized_by,
			authorized_at, expires_at, reason, severity, revoked_by,
			revoked_at, revoke_reason, usage_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ReceiptID, o.AgentID, string(principles), o.AuthorizedBy,
		o.AuthorizedAt, nullableTime(o.ExpiresAt), o.Reason, o.Severity,
		o.RevokedBy, nullableTime(o.RevokedAt), o.RevokeReason, o.UsageCount,
	)
	if err != nil {
		return &StoreError{Operation: "save", Cause: err}
	}
	return nil
}

// Update persists a usage or revocation change.
func (s *SQLiteStore) Update(o *Override) error {
	res, err := s.db.Exec(`
		UPDATE overrides
		SET revoked_by = ?, revoked_at = ?, revoke_reason = ?, usage_count = ?
		WHERE id = ?`,
		o.RevokedBy, nullableTime(o.RevokedAt), o.RevokeReason, o.UsageCount, o.ID,
	)
	if err != nil {
		return &StoreError{Operation: "update", Cause: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &StoreError{Operation: "update", Cause: fmt.Errorf("override %q not found", o.ID)}
	}
	return nil
}

// LoadAll returns every persisted override.
func (s *SQLiteStore) LoadAll() ([]*Override, error) {
	rows, err := s.db.Query(`
		SELECT id, receipt_id, agent_id, principle_ids, authorized_by,
		       authorized_at, expires_at, reason, severity, revoked_by,
		       revoked_at, revoke_reason, usage_count
		FROM overrides ORDER BY authorized_at`)
	if err != nil {
		return nil, &StoreError{Operation: "load", Cause: err}
	}
	defer rows.Close()

	var out []*Override
	for rows.Next() {
		var (
			o            Override
			principles   string
			revokedBy    sql.NullString
			revokeReason sql.NullString
			expiresAt    sql.NullTime
			revokedAt    sql.NullTime
		)
		if err := rows.Scan(
			&o.ID, &o.ReceiptID, &o.AgentID, &principles, &o.AuthorizedBy,
			&o.AuthorizedAt, &expiresAt, &o.Reason, &o.Severity, &revokedBy,
			&revokedAt, &revokeReason, &o.UsageCount,
		); err != nil {
			return nil, &StoreError{Operation: "load", Cause: err}
		}

		if err := json.Unmarshal([]byte(principles), &o.PrincipleIDs); err != nil {
			s.logger.Warn("skipping override with corrupt principle list", "override_id", o.ID, "error", err)
			continue
		}
		o.RevokedBy = revokedBy.String
		o.RevokeReason = revokeReason.String
		if expiresAt.Valid {
			t := expiresAt.Time
			o.ExpiresAt = &t
		}
		if revokedAt.Valid {
			t := revokedAt.Time
			o.RevokedAt = &t
		}

		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Operation: "load", Cause: err}
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
