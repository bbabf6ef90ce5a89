package webhook

import (
	"time"

	"sonate-hq/arbiter/pkg/ratelimit"
)

// EventType identifies a deliverable governance event.
type EventType string

const (
	EventTrustViolationCritical EventType = "trust_violation_critical"
	EventTrustViolationError    EventType = "trust_violation_error"
	EventTrustViolationWarning  EventType = "trust_violation_warning"
	EventTrustScoreBelow        EventType = "trust_score_below_threshold"
	EventPrincipleViolation     EventType = "principle_violation"
	EventEmergenceDetected      EventType = "emergence_detected"
	EventAgentError             EventType = "agent_error"
	EventAgentOffline           EventType = "agent_offline"
	EventComplianceBreach       EventType = "compliance_breach"
	EventSystemError            EventType = "system_error"
	EventPerformanceDegradation EventType = "performance_degradation"
	EventSecurityIncident       EventType = "security_incident"
	EventAuditRequired          EventType = "audit_required"
)

// knownEventTypes is the fixed registration allowlist.
var knownEventTypes = map[EventType]bool{
	EventTrustViolationCritical: true,
	EventTrustViolationError:    true,
	EventTrustViolationWarning:  true,
	EventTrustScoreBelow:        true,
	EventPrincipleViolation:     true,
	EventEmergenceDetected:      true,
	EventAgentError:             true,
	EventAgentOffline:           true,
	EventComplianceBreach:       true,
	EventSystemError:            true,
	EventPerformanceDegradation: true,
	EventSecurityIncident:       true,
	EventAuditRequired:          true,
}

// BackoffStrategy selects how retry delays grow between attempts.
type BackoffStrategy string

const (
	BackoffFixed                 BackoffStrategy = "fixed"
	BackoffLinear                BackoffStrategy = "linear"
	BackoffExponential           BackoffStrategy = "exponential"
	BackoffExponentialWithJitter BackoffStrategy = "exponential_with_jitter"
)

// RetryPolicy bounds delivery retries for one webhook.
type RetryPolicy struct {
	// MaxAttempts is the total number of delivery attempts, 1-10.
	// Default: 3
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BackoffStrategy selects the delay growth between attempts.
	// Default: exponential
	BackoffStrategy BackoffStrategy `json:"backoff_strategy" yaml:"backoff_strategy"`

	// InitialDelay is the first retry delay, 100ms-60s.
	// Default: 1s
	InitialDelay time.Duration `json:"initial_delay_ms" yaml:"initial_delay_ms"`

	// MaxDelay caps the computed delay, 1s-300s. Delays that would exceed
	// it are clamped; retries continue until attempts are exhausted.
	// Default: 30s
	MaxDelay time.Duration `json:"max_delay_ms" yaml:"max_delay_ms"`

	// RetryableErrors lists the error classes worth retrying.
	// Default: network_error, timeout_error, rate_limited
	RetryableErrors []ErrorClass `json:"retryable_errors" yaml:"retryable_errors"`
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		BackoffStrategy: BackoffExponential,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		RetryableErrors: []ErrorClass{ErrorClassNetwork, ErrorClassTimeout, ErrorClassRateLimited},
	}
}

// retryable reports whether the class is in the policy's retryable set.
func (p RetryPolicy) retryable(class ErrorClass) bool {
	for _, c := range p.RetryableErrors {
		if c == class {
			return true
		}
	}
	return false
}

// Filter is one predicate over the event payload. All enabled filters of
// a webhook must match for the event to be delivered.
type Filter struct {
	// Field is a dot path into the event data, e.g. "violation.severity".
	Field string `json:"field" yaml:"field"`

	// Operator is one of the filterOperators set.
	Operator string `json:"operator" yaml:"operator"`

	// Value is the comparison operand. Unused by the exists operator.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	// Enabled filters participate in matching; disabled ones are kept but
	// ignored.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Config is a registered webhook destination.
type Config struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	EventTypes  []EventType       `json:"event_types"`
	Secret      string            `json:"-"` // never serialized
	Headers     map[string]string `json:"headers,omitempty"`
	Timeout     time.Duration     `json:"timeout_ms"`
	Enabled     bool              `json:"enabled"`
	RetryPolicy RetryPolicy       `json:"retry_policy"`
	Filters     []Filter          `json:"filters,omitempty"`
	RateLimit   ratelimit.Config  `json:"rate_limit"`
	CreatedAt   time.Time         `json:"created_at"`
}

// RegisterRequest is the registration input. Zero-value optional fields
// receive defaults; a missing secret is generated.
type RegisterRequest struct {
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	EventTypes  []EventType       `json:"event_types"`
	Secret      string            `json:"secret,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Timeout     time.Duration     `json:"timeout_ms,omitempty"`
	RetryPolicy *RetryPolicy      `json:"retry_policy,omitempty"`
	Filters     []Filter          `json:"filters,omitempty"`
	RateLimit   *ratelimit.Config `json:"rate_limit,omitempty"`
}

// Event is the outbound payload delivered to webhook endpoints.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data"`
}

// DeliveryResult records the outcome of delivering one event to one
// webhook, after all retry attempts.
type DeliveryResult struct {
	WebhookID  string        `json:"webhook_id"`
	EventID    string        `json:"event_id"`
	Success    bool          `json:"success"`
	Attempts   int           `json:"attempts"`
	StatusCode int           `json:"status_code,omitempty"`
	ErrorClass ErrorClass    `json:"error_class,omitempty"`
	Error      string        `json:"error,omitempty"`
	Latency    time.Duration `json:"latency_ms"`
}

// Stats is a snapshot of the manager's delivery counters.
type Stats struct {
	Webhooks      int                   `json:"webhooks"`
	Queued        uint64                `json:"queued"`
	QueueDropped  uint64                `json:"queue_dropped"`
	Delivered     uint64                `json:"delivered"`
	Failed        uint64                `json:"failed"`
	AvgDeliveryMS float64               `json:"avg_delivery_ms"`
	ErrorsByClass map[ErrorClass]uint64 `json:"errors_by_class"`
}
