package alerting

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sonate-hq/arbiter/pkg/policy"
	"sonate-hq/arbiter/pkg/receipt"
)

// Config configures the alerter.
type Config struct {
	// ThrottleWindow suppresses repeated alerts for the same agent within
	// this window. Suppression is lossy: a throttled violation is dropped,
	// not delayed.
	// Default: 1s
	ThrottleWindow time.Duration

	// MaxAlerts bounds the in-memory alert retention. The oldest alerts
	// are trimmed first.
	// Default: 1000
	MaxAlerts int
}

// DefaultConfig returns the default alerter configuration.
func DefaultConfig() Config {
	return Config{
		ThrottleWindow: time.Second,
		MaxAlerts:      1000,
	}
}

// Alerter turns evaluation results into throttled, prioritized alerts.
// It is safe for concurrent use.
type Alerter struct {
	mu        sync.Mutex
	config    Config
	alerts    map[string]*Alert
	order     []string // alert ids, oldest first
	lastAlert map[string]time.Time

	created      uint64
	throttled    uint64
	acknowledged uint64

	logger *slog.Logger

	// now is injectable for throttle tests.
	now func() time.Time
}

// NewAlerter creates an alerter.
func NewAlerter(config Config) *Alerter {
	if config.ThrottleWindow <= 0 {
		config.ThrottleWindow = time.Second
	}
	if config.MaxAlerts <= 0 {
		config.MaxAlerts = 1000
	}
	return &Alerter{
		config:    config,
		alerts:    make(map[string]*Alert),
		lastAlert: make(map[string]time.Time),
		logger:    slog.Default().With("component", "alerting.alerter"),
		now:       time.Now,
	}
}

// Detect creates an alert from an evaluation result. It returns nil when
// the result carries no violations, and nil when the agent is inside its
// throttle window.
func (a *Alerter) Detect(rcpt *receipt.TrustReceipt, result *policy.EvaluationResult) *Alert {
	if result == nil || len(result.Violations) == 0 {
		return nil
	}

	agentID := ""
	receiptID := ""
	if rcpt != nil {
		agentID = rcpt.AgentDID
		receiptID = rcpt.ID
	}

	a.mu.Lock()
	now := a.now()
	if last, ok := a.lastAlert[agentID]; ok && now.Sub(last) < a.config.ThrottleWindow {
		a.throttled++
		a.mu.Unlock()
		a.logger.Debug("alert throttled", "agent_id", agentID)
		return nil
	}
	// Expired entries can no longer suppress anything; dropping them here
	// keeps the map bounded by the set of recently active agents.
	for id, last := range a.lastAlert {
		if now.Sub(last) >= a.config.ThrottleWindow {
			delete(a.lastAlert, id)
		}
	}
	a.lastAlert[agentID] = now

	priority := highestSeverity(result.Violations)
	alert := &Alert{
		ID:         uuid.New().String(),
		ReceiptID:  receiptID,
		AgentID:    agentID,
		Violations: append([]policy.Violation(nil), result.Violations...),
		Priority:   priority,
		Channels:   ChannelsFor(priority),
		CreatedAt:  now.UTC(),
	}

	a.alerts[alert.ID] = alert
	a.order = append(a.order, alert.ID)
	a.created++
	a.trimLocked()
	cp := a.cloneLocked(alert)
	a.mu.Unlock()

	a.logger.Warn("violation alert created",
		"alert_id", alert.ID,
		"agent_id", agentID,
		"receipt_id", receiptID,
		"priority", priority,
		"violations", len(alert.Violations),
	)
	return cp
}

// Acknowledge marks an alert resolved. It returns false for an unknown
// alert; acknowledging twice keeps the original acknowledgment.
func (a *Alerter) Acknowledge(id, by string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	alert, ok := a.alerts[id]
	if !ok {
		return false
	}
	if !alert.Acknowledged {
		now := a.now().UTC()
		alert.Acknowledged = true
		alert.AcknowledgedBy = by
		alert.AcknowledgedAt = &now
		a.acknowledged++
	}
	return true
}

// Get returns an alert by id.
func (a *Alerter) Get(id string) (*Alert, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	alert, ok := a.alerts[id]
	if !ok {
		return nil, false
	}
	return a.cloneLocked(alert), true
}

// Recent returns up to limit alerts, newest first. A non-positive limit
// returns all retained alerts.
func (a *Alerter) Recent(limit int) []*Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.order)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*Alert, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.cloneLocked(a.alerts[a.order[i]]))
	}
	return out
}

// Stats returns a snapshot of the alerter's counters.
func (a *Alerter) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		Created:      a.created,
		Throttled:    a.throttled,
		Acknowledged: a.acknowledged,
		Retained:     len(a.alerts),
	}
}

// trimLocked drops the oldest alerts past the retention bound. Caller
// must hold the lock.
func (a *Alerter) trimLocked() {
	for len(a.order) > a.config.MaxAlerts {
		oldest := a.order[0]
		a.order = a.order[1:]
		delete(a.alerts, oldest)
	}
}

func (a *Alerter) cloneLocked(alert *Alert) *Alert {
	cp := *alert
	cp.Violations = append([]policy.Violation(nil), alert.Violations...)
	cp.Channels = append([]Channel(nil), alert.Channels...)
	return &cp
}

// highestSeverity returns the top severity among violations.
func highestSeverity(violations []policy.Violation) policy.Severity {
	top := violations[0].Severity
	for _, v := range violations[1:] {
		if v.Severity.MoreSevere(top) {
			top = v.Severity
		}
	}
	return top
}
