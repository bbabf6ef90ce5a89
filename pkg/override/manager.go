package override

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists override lifecycle changes. Implementations must be safe
// for concurrent use. The manager treats persistence as best-effort: a store
// failure is logged, never surfaced on the decision path.
type Store interface {
	// Save persists a newly created override.
	Save(o *Override) error

	// Update persists a usage or revocation change.
	Update(o *Override) error

	// LoadAll returns every persisted override.
	LoadAll() ([]*Override, error)

	// Close releases store resources.
	Close() error
}

// Config configures the override manager.
type Config struct {
	// MaxOverrides bounds the in-memory store. When exceeded, the oldest
	// 20% by authorization time is evicted.
	// Default: 10000
	MaxOverrides int

	// Store is an optional durable backend. Nil keeps overrides
	// memory-only.
	Store Store
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{MaxOverrides: 10000}
}

// Manager is the thread-safe override store consulted on the decision path.
type Manager struct {
	mu        sync.RWMutex
	overrides map[string]*Override
	config    Config
	logger    *slog.Logger

	used    uint64
	evicted uint64

	// now is injectable for expiry tests.
	now func() time.Time
}

// NewManager creates an override manager. When a durable store is
// configured, previously persisted overrides are loaded into memory.
func NewManager(config Config) (*Manager, error) {
	if config.MaxOverrides <= 0 {
		config.MaxOverrides = 10000
	}

	m := &Manager{
		overrides: make(map[string]*Override),
		config:    config,
		logger:    slog.Default().With("component", "override.manager"),
		now:       time.Now,
	}

	if config.Store != nil {
		loaded, err := config.Store.LoadAll()
		if err != nil {
			return nil, &StoreError{Operation: "load", Cause: err}
		}
		for _, o := range loaded {
			m.overrides[o.ID] = o
		}
		m.logger.Info("overrides loaded from store", "count", len(loaded))
	}

	return m, nil
}

// Create validates the request and stores a new override.
func (m *Manager) Create(req CreateRequest) (*Override, error) {
	if err := m.validate(req); err != nil {
		return nil, err
	}

	o := &Override{
		ID:           uuid.New().String(),
		ReceiptID:    req.ReceiptID,
		AgentID:      req.AgentID,
		PrincipleIDs: append([]string(nil), req.PrincipleIDs...),
		AuthorizedBy: req.AuthorizedBy,
		AuthorizedAt: m.now().UTC(),
		ExpiresAt:    req.ExpiresAt,
		Reason:       req.Reason,
		Severity:     req.Severity,
	}

	m.mu.Lock()
	if len(m.overrides) >= m.config.MaxOverrides {
		m.evictLocked()
	}
	m.overrides[o.ID] = o
	m.mu.Unlock()

	m.persist("save", o, func(s Store) error { return s.Save(o) })

	m.logger.Info("override created",
		"override_id", o.ID,
		"receipt_id", o.ReceiptID,
		"agent_id", o.AgentID,
		"authorized_by", o.AuthorizedBy,
		"expires_at", o.ExpiresAt,
	)

	return m.clone(o), nil
}

// Get retrieves an override by id, valid or not.
func (m *Manager) Get(id string) (*Override, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.overrides[id]
	if !ok {
		return nil, false
	}
	return m.clone(o), true
}

// IsValid reports whether the override with the given id is currently valid.
func (m *Manager) IsValid(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.overrides[id]
	return ok && o.Valid(m.now())
}

// Use increments the usage count of a currently valid override. Using an
// invalid or unknown override is a no-op returning false, not an error.
func (m *Manager) Use(id string) bool {
	m.mu.Lock()
	o, ok := m.overrides[id]
	if !ok || !o.Valid(m.now()) {
		m.mu.Unlock()
		return false
	}
	o.UsageCount++
	m.used++
	cp := m.clone(o)
	m.mu.Unlock()

	m.persist("update", cp, func(s Store) error { return s.Update(cp) })
	return true
}

// Revoke marks an override revoked. Revoking an unknown override returns
// false; revoking twice is a no-op returning true.
func (m *Manager) Revoke(id, revokedBy, reason string) bool {
	m.mu.Lock()
	o, ok := m.overrides[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if o.RevokedAt == nil {
		now := m.now().UTC()
		o.RevokedAt = &now
		o.RevokedBy = revokedBy
		o.RevokeReason = reason
	}
	cp := m.clone(o)
	m.mu.Unlock()

	m.persist("update", cp, func(s Store) error { return s.Update(cp) })

	m.logger.Info("override revoked",
		"override_id", id,
		"revoked_by", revokedBy,
		"reason", reason,
	)
	return true
}

// ForReceipt returns the currently valid overrides for a receipt.
func (m *Manager) ForReceipt(receiptID string) []*Override {
	return m.filter(func(o *Override) bool { return o.ReceiptID == receiptID })
}

// ForAgent returns the currently valid overrides for an agent.
func (m *Manager) ForAgent(agentID string) []*Override {
	return m.filter(func(o *Override) bool { return o.AgentID == agentID })
}

// HasValidOverride reports whether any valid override covers the receipt.
func (m *Manager) HasValidOverride(receiptID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	for _, o := range m.overrides {
		if o.ReceiptID == receiptID && o.Valid(now) {
			return true
		}
	}
	return false
}

// FindValid returns the id of a valid override covering the
// receipt/agent/principles combination. It satisfies the policy engine's
// OverrideSource contract. An override with no principle overlap does not
// apply; an evaluated principle set is covered when any of its ids appears
// in the override's principle list.
func (m *Manager) FindValid(receiptID, agentID string, principleIDs []string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	for _, o := range m.overrides {
		if o.ReceiptID != receiptID || o.AgentID != agentID || !o.Valid(now) {
			continue
		}
		if principlesOverlap(o.PrincipleIDs, principleIDs) {
			return o.ID, true
		}
	}
	return "", false
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Total:   len(m.overrides),
		Used:    m.used,
		Evicted: m.evicted,
	}
	now := m.now()
	for _, o := range m.overrides {
		switch {
		case o.RevokedAt != nil:
			stats.Revoked++
		case o.ExpiresAt != nil && !o.ExpiresAt.After(now):
			stats.Expired++
		default:
			stats.Valid++
		}
	}
	return stats
}

// Close releases the durable store, if any.
func (m *Manager) Close() error {
	if m.config.Store != nil {
		return m.config.Store.Close()
	}
	return nil
}

func (m *Manager) validate(req CreateRequest) error {
	var fields []string
	if req.ReceiptID == "" {
		fields = append(fields, "receipt_id is required")
	}
	if req.AgentID == "" {
		fields = append(fields, "agent_id is required")
	}
	if len(req.PrincipleIDs) == 0 {
		fields = append(fields, "principle_ids must not be empty")
	}
	if req.AuthorizedBy == "" {
		fields = append(fields, "authorized_by is required")
	}
	if len(req.Reason) < MinReasonLength {
		fields = append(fields, fmt.Sprintf("reason must be at least %d characters", MinReasonLength))
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(m.now()) {
		fields = append(fields, "expires_at must be in the future")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// evictLocked drops the oldest 20% of overrides by authorization time.
// Evicted overrides are gone for consultation purposes; their audit trail
// entries remain in the audit log. Caller must hold the write lock.
func (m *Manager) evictLocked() {
	all := make([]*Override, 0, len(m.overrides))
	for _, o := range m.overrides {
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].AuthorizedAt.Before(all[j].AuthorizedAt)
	})

	drop := len(all) / 5
	if drop < 1 {
		drop = 1
	}
	for _, o := range all[:drop] {
		delete(m.overrides, o.ID)
		m.evicted++
	}

	m.logger.Warn("override store at capacity, evicted oldest entries",
		"evicted", drop,
		"capacity", m.config.MaxOverrides,
	)
}

func (m *Manager) filter(match func(o *Override) bool) []*Override {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var out []*Override
	for _, o := range m.overrides {
		if match(o) && o.Valid(now) {
			out = append(out, m.clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AuthorizedAt.Before(out[j].AuthorizedAt)
	})
	return out
}

func (m *Manager) clone(o *Override) *Override {
	cp := *o
	cp.PrincipleIDs = append([]string(nil), o.PrincipleIDs...)
	return &cp
}

func (m *Manager) persist(op string, o *Override, fn func(s Store) error) {
	if m.config.Store == nil {
		return
	}
	if err := fn(m.config.Store); err != nil {
		m.logger.Error("override persistence failed",
			"operation", op,
			"override_id", o.ID,
			"error", err,
		)
	}
}

func principlesOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
