package override

import "time"

// Override is a time-bound, revocable human authorization suppressing
// blockable violations for a specific receipt/agent/principle combination.
type Override struct {
	ID           string     `json:"id"`
	ReceiptID    string     `json:"receipt_id"`
	AgentID      string     `json:"agent_id"`
	PrincipleIDs []string   `json:"principle_ids"`
	AuthorizedBy string     `json:"authorized_by"`
	AuthorizedAt time.Time  `json:"authorized_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Reason       string     `json:"reason"`
	Severity     string     `json:"severity"`
	RevokedBy    string     `json:"revoked_by,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason string     `json:"revoke_reason,omitempty"`
	UsageCount   int        `json:"usage_count"`
}

// Valid reports whether the override is active at the given instant:
// not revoked, and either unexpiring or expiring after now.
func (o *Override) Valid(now time.Time) bool {
	if o.RevokedAt != nil {
		return false
	}
	if o.ExpiresAt != nil && !o.ExpiresAt.After(now) {
		return false
	}
	return true
}

// CreateRequest is the input for creating an override.
type CreateRequest struct {
	ReceiptID    string     `json:"receipt_id"`
	AgentID      string     `json:"agent_id"`
	PrincipleIDs []string   `json:"principle_ids"`
	AuthorizedBy string     `json:"authorized_by"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Reason       string     `json:"reason"`
	Severity     string     `json:"severity,omitempty"`
}

// Stats carries the manager's running counters.
type Stats struct {
	Total   int    `json:"total"`
	Valid   int    `json:"valid"`
	Revoked int    `json:"revoked"`
	Expired int    `json:"expired"`
	Used    uint64 `json:"used"`
	Evicted uint64 `json:"evicted"`
}
