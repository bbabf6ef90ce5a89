package config

import "time"

// Config is the root configuration for the arbiter service.
type Config struct {
	// Server contains the HTTP API server configuration.
	Server ServerConfig `yaml:"server"`

	// Logging controls structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics controls the Prometheus metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Policy configures the policy engine and the principles file.
	Policy PolicyConfig `yaml:"policy"`

	// Overrides configures the override manager.
	Overrides OverridesConfig `yaml:"overrides"`

	// Alerting configures the violation alerter.
	Alerting AlertingConfig `yaml:"alerting"`

	// Webhooks configures the webhook delivery pipeline.
	Webhooks WebhooksConfig `yaml:"webhooks"`

	// Events configures the live event hub.
	Events EventsConfig `yaml:"events"`

	// Audit configures the audit logger and its durable storage.
	Audit AuditConfig `yaml:"audit"`
}

// ServerConfig contains the HTTP API server configuration.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response. Zero
	// disables the timeout; the event stream endpoint needs it disabled
	// or generous.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint. Metrics are on by
// default; set disabled to opt out.
type MetricsConfig struct {
	// Disabled turns the metrics handler off.
	// Default: false
	Disabled bool `yaml:"disabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// Enabled reports whether the metrics endpoint should be served.
func (m MetricsConfig) Enabled() bool { return !m.Disabled }

// PolicyConfig configures the policy engine.
type PolicyConfig struct {
	// PrinciplesFile is an optional YAML file defining principle groupings
	// and disabled rules. Empty keeps the built-in constitution only.
	PrinciplesFile string `yaml:"principles_file"`

	// Watch reloads the principles file on change.
	// Default: true when PrinciplesFile is set
	Watch bool `yaml:"watch"`

	// EvaluationBudget is the soft per-receipt evaluation time budget.
	// Exceeding it logs a warning, never aborts.
	// Default: 50ms
	EvaluationBudget time.Duration `yaml:"evaluation_budget"`

	// EscalationThreshold is the critical-violation count at which a
	// block becomes an escalation.
	// Default: 3
	EscalationThreshold int `yaml:"escalation_threshold"`
}

// OverridesConfig configures the override manager.
type OverridesConfig struct {
	// MaxOverrides bounds the in-memory override store.
	// Default: 10000
	MaxOverrides int `yaml:"max_overrides"`

	// SQLitePath enables durable override storage at this path. Empty
	// keeps overrides memory-only.
	SQLitePath string `yaml:"sqlite_path"`
}

// AlertingConfig configures the violation alerter.
type AlertingConfig struct {
	// ThrottleWindow is the per-agent alert suppression window.
	// Default: 1s
	ThrottleWindow time.Duration `yaml:"throttle_window"`

	// MaxAlerts bounds in-memory alert retention.
	// Default: 1000
	MaxAlerts int `yaml:"max_alerts"`
}

// WebhooksConfig configures the webhook delivery pipeline.
type WebhooksConfig struct {
	// QueueSize bounds the delivery queue.
	// Default: 1024
	QueueSize int `yaml:"queue_size"`

	// BatchSize is the maximum events drained per dispatch cycle.
	// Default: 16
	BatchSize int `yaml:"batch_size"`

	// MaxConcurrent bounds concurrent deliveries.
	// Default: 8
	MaxConcurrent int `yaml:"max_concurrent"`

	// AllowPrivateNetworks disables destination address blocking.
	// Default: false
	AllowPrivateNetworks bool `yaml:"allow_private_networks"`
}

// EventsConfig configures the live event hub.
type EventsConfig struct {
	// SubscriberBuffer is the per-subscriber channel buffer. A slow
	// subscriber misses events once its buffer fills.
	// Default: 64
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	// Capacity bounds the in-memory audit window.
	// Default: 100000
	Capacity int `yaml:"capacity"`

	// StorageBuffer sizes the durable-write queue.
	// Default: 4096
	StorageBuffer int `yaml:"storage_buffer"`

	// SQLitePath enables durable audit storage at this path. Empty keeps
	// the audit log memory-only.
	SQLitePath string `yaml:"sqlite_path"`

	// Retention configures scheduled pruning of durable storage.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig configures scheduled audit pruning.
type RetentionConfig struct {
	// Schedule is a standard cron expression. Empty disables pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// MaxAge drops durable entries older than this. Zero keeps all ages.
	// Default: 2160h (90 days)
	MaxAge time.Duration `yaml:"max_age"`

	// MaxRows trims durable storage to the newest MaxRows entries. Zero
	// keeps all rows.
	// Default: 1000000
	MaxRows int `yaml:"max_rows"`
}
