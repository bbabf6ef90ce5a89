package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError aggregates every configuration problem found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// Validate checks the configuration and returns an aggregated error
// listing every problem, nil when valid.
func Validate(cfg *Config) error {
	var problems []string

	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		problems = append(problems, fmt.Sprintf("server.listen_address %q is not host:port", cfg.Server.ListenAddress))
	}
	if cfg.Server.ReadTimeout < 0 {
		problems = append(problems, "server.read_timeout must not be negative")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		problems = append(problems, "server.shutdown_timeout must be positive")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q must be debug, info, warn, or error", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be json or text", cfg.Logging.Format))
	}

	if cfg.Metrics.Enabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		problems = append(problems, fmt.Sprintf("metrics.path %q must start with /", cfg.Metrics.Path))
	}

	if cfg.Policy.EvaluationBudget <= 0 {
		problems = append(problems, "policy.evaluation_budget must be positive")
	}
	if cfg.Policy.EscalationThreshold < 1 {
		problems = append(problems, "policy.escalation_threshold must be at least 1")
	}

	if cfg.Overrides.MaxOverrides < 1 {
		problems = append(problems, "overrides.max_overrides must be at least 1")
	}

	if cfg.Alerting.ThrottleWindow <= 0 {
		problems = append(problems, "alerting.throttle_window must be positive")
	}
	if cfg.Alerting.MaxAlerts < 1 {
		problems = append(problems, "alerting.max_alerts must be at least 1")
	}

	if cfg.Webhooks.QueueSize < 1 {
		problems = append(problems, "webhooks.queue_size must be at least 1")
	}
	if cfg.Webhooks.BatchSize < 1 {
		problems = append(problems, "webhooks.batch_size must be at least 1")
	}
	if cfg.Webhooks.MaxConcurrent < 1 {
		problems = append(problems, "webhooks.max_concurrent must be at least 1")
	}

	if cfg.Events.SubscriberBuffer < 1 {
		problems = append(problems, "events.subscriber_buffer must be at least 1")
	}

	if cfg.Audit.Capacity < 1 {
		problems = append(problems, "audit.capacity must be at least 1")
	}
	if cfg.Audit.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Audit.Retention.Schedule); err != nil {
			problems = append(problems, fmt.Sprintf("audit.retention.schedule %q is not a valid cron expression", cfg.Audit.Retention.Schedule))
		}
	}
	if cfg.Audit.Retention.MaxAge < 0 {
		problems = append(problems, "audit.retention.max_age must not be negative")
	}
	if cfg.Audit.Retention.MaxRows < 0 {
		problems = append(problems, "audit.retention.max_rows must not be negative")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
