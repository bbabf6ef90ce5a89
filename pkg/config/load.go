package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads a YAML configuration and applies
// environment variable overrides of the form ARBITER_SECTION_FIELD
// (e.g. ARBITER_SERVER_LISTEN_ADDRESS). Environment variables take
// precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setInt := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				*dst = i
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if val := os.Getenv(key); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
			}
		}
	}

	setString("ARBITER_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setDuration("ARBITER_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("ARBITER_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("ARBITER_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	setString("ARBITER_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("ARBITER_LOGGING_FORMAT", &cfg.Logging.Format)

	setBool("ARBITER_METRICS_DISABLED", &cfg.Metrics.Disabled)
	setString("ARBITER_METRICS_PATH", &cfg.Metrics.Path)

	setString("ARBITER_POLICY_PRINCIPLES_FILE", &cfg.Policy.PrinciplesFile)
	setBool("ARBITER_POLICY_WATCH", &cfg.Policy.Watch)
	setDuration("ARBITER_POLICY_EVALUATION_BUDGET", &cfg.Policy.EvaluationBudget)
	setInt("ARBITER_POLICY_ESCALATION_THRESHOLD", &cfg.Policy.EscalationThreshold)

	setInt("ARBITER_OVERRIDES_MAX_OVERRIDES", &cfg.Overrides.MaxOverrides)
	setString("ARBITER_OVERRIDES_SQLITE_PATH", &cfg.Overrides.SQLitePath)

	setDuration("ARBITER_ALERTING_THROTTLE_WINDOW", &cfg.Alerting.ThrottleWindow)
	setInt("ARBITER_ALERTING_MAX_ALERTS", &cfg.Alerting.MaxAlerts)

	setInt("ARBITER_WEBHOOKS_QUEUE_SIZE", &cfg.Webhooks.QueueSize)
	setInt("ARBITER_WEBHOOKS_BATCH_SIZE", &cfg.Webhooks.BatchSize)
	setInt("ARBITER_WEBHOOKS_MAX_CONCURRENT", &cfg.Webhooks.MaxConcurrent)
	setBool("ARBITER_WEBHOOKS_ALLOW_PRIVATE_NETWORKS", &cfg.Webhooks.AllowPrivateNetworks)

	setInt("ARBITER_EVENTS_SUBSCRIBER_BUFFER", &cfg.Events.SubscriberBuffer)

	setInt("ARBITER_AUDIT_CAPACITY", &cfg.Audit.Capacity)
	setString("ARBITER_AUDIT_SQLITE_PATH", &cfg.Audit.SQLitePath)
	setString("ARBITER_AUDIT_RETENTION_SCHEDULE", &cfg.Audit.Retention.Schedule)
	setDuration("ARBITER_AUDIT_RETENTION_MAX_AGE", &cfg.Audit.Retention.MaxAge)
	setInt("ARBITER_AUDIT_RETENTION_MAX_ROWS", &cfg.Audit.Retention.MaxRows)
}
