package config

import "time"

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Policy.EvaluationBudget == 0 {
		cfg.Policy.EvaluationBudget = 50 * time.Millisecond
	}
	if cfg.Policy.EscalationThreshold == 0 {
		cfg.Policy.EscalationThreshold = 3
	}
	if cfg.Policy.PrinciplesFile != "" && !cfg.Policy.Watch {
		cfg.Policy.Watch = true
	}

	if cfg.Overrides.MaxOverrides == 0 {
		cfg.Overrides.MaxOverrides = 10000
	}

	if cfg.Alerting.ThrottleWindow == 0 {
		cfg.Alerting.ThrottleWindow = time.Second
	}
	if cfg.Alerting.MaxAlerts == 0 {
		cfg.Alerting.MaxAlerts = 1000
	}

	if cfg.Webhooks.QueueSize == 0 {
		cfg.Webhooks.QueueSize = 1024
	}
	if cfg.Webhooks.BatchSize == 0 {
		cfg.Webhooks.BatchSize = 16
	}
	if cfg.Webhooks.MaxConcurrent == 0 {
		cfg.Webhooks.MaxConcurrent = 8
	}

	if cfg.Events.SubscriberBuffer == 0 {
		cfg.Events.SubscriberBuffer = 64
	}

	if cfg.Audit.Capacity == 0 {
		cfg.Audit.Capacity = 100000
	}
	if cfg.Audit.StorageBuffer == 0 {
		cfg.Audit.StorageBuffer = 4096
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = "0 3 * * *"
	}
	if cfg.Audit.Retention.MaxAge == 0 {
		cfg.Audit.Retention.MaxAge = 90 * 24 * time.Hour
	}
	if cfg.Audit.Retention.MaxRows == 0 {
		cfg.Audit.Retention.MaxRows = 1000000
	}
}
