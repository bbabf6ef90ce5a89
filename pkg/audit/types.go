package audit

import (
	"fmt"
	"time"
)

// EntryType identifies what lifecycle event an audit entry records.
type EntryType string

const (
	EntryDecision          EntryType = "decision"
	EntryOverrideCreated   EntryType = "override_created"
	EntryOverrideUsed      EntryType = "override_used"
	EntryOverrideRevoked   EntryType = "override_revoked"
	EntryAlertCreated      EntryType = "alert_created"
	EntryAlertAcknowledged EntryType = "alert_acknowledged"
	EntryWebhookRegistered EntryType = "webhook_registered"
	EntryWebhookDelivery   EntryType = "webhook_delivery"
)

// ViolationCounts tallies the violations attached to one entry.
type ViolationCounts struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Entry is one immutable audit record.
type Entry struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	EntryType    EntryType       `json:"entry_type"`
	ReceiptID    string          `json:"receipt_id,omitempty"`
	AgentDID     string          `json:"agent_did,omitempty"`
	Decision     string          `json:"decision,omitempty"`
	Violations   ViolationCounts `json:"violations"`
	PrincipleIDs []string        `json:"principle_ids,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Details      map[string]any  `json:"details,omitempty"`
}

// Query filters the audit log. Zero-valued fields match everything; the
// result is the most recent Limit matches, newest last.
type Query struct {
	Start     *time.Time
	End       *time.Time
	AgentDID  string
	EntryType EntryType
	Decision  string
	Limit     int
}

// AgentViolationCount pairs an agent with its violation total for report
// rankings.
type AgentViolationCount struct {
	AgentDID   string `json:"agent_did"`
	Violations int    `json:"violations"`
}

// ComplianceReport aggregates governance activity over a window.
type ComplianceReport struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalEntries int `json:"total_entries"`
	Decisions    int `json:"decisions"`
	Blocked      int `json:"blocked"`

	// BlockRate is blocked+escalated decisions over all decisions, 0-1.
	BlockRate float64 `json:"block_rate"`

	ViolationsBySeverity ViolationCounts `json:"violations_by_severity"`

	// PrincipleViolationRates maps principle id to the fraction of
	// decisions naming that principle which carried violations.
	PrincipleViolationRates map[string]float64 `json:"principle_violation_rates"`

	// TopViolatingAgents lists up to ten agents by violation total,
	// descending.
	TopViolatingAgents []AgentViolationCount `json:"top_violating_agents"`

	OverridesCreated int `json:"overrides_created"`
	OverridesUsed    int `json:"overrides_used"`
}

// Storage is the durable sink behind the in-memory window. Implementations
// must be safe for concurrent use.
type Storage interface {
	// Append persists one entry.
	Append(e *Entry) error

	// Prune deletes entries older than the cutoff and, when maxRows > 0,
	// trims the store to the newest maxRows entries. Returns the number
	// of deleted entries.
	Prune(olderThan time.Time, maxRows int) (int, error)

	// Close releases storage resources.
	Close() error
}

// Stats is a snapshot of the logger's counters.
type Stats struct {
	Logged   uint64 `json:"logged"`
	Trimmed  uint64 `json:"trimmed"`
	Dropped  uint64 `json:"storage_dropped"`
	Retained int    `json:"retained"`
}

// StorageError wraps a durable-storage failure.
type StorageError struct {
	Operation string
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage %s failed: %v", e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// ExportError reports an export failure with the format and row count
// reached.
type ExportError struct {
	Format string
	Rows   int
	Cause  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("audit %s export failed after %d rows: %v", e.Format, e.Rows, e.Cause)
}

func (e *ExportError) Unwrap() error { return e.Cause }
