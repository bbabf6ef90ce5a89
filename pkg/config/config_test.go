package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.ListenAddress != "127.0.0.1:8080" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled() || cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics defaults = %+v", cfg.Metrics)
	}
	if cfg.Policy.EvaluationBudget != 50*time.Millisecond {
		t.Errorf("EvaluationBudget = %v", cfg.Policy.EvaluationBudget)
	}
	if cfg.Policy.EscalationThreshold != 3 {
		t.Errorf("EscalationThreshold = %d", cfg.Policy.EscalationThreshold)
	}
	if cfg.Audit.Capacity != 100000 {
		t.Errorf("Audit.Capacity = %d", cfg.Audit.Capacity)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(defaults) error = %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  listen_address: "0.0.0.0:9090"
logging:
  level: debug
  format: text
policy:
  principles_file: /etc/arbiter/principles.yaml
  escalation_threshold: 5
audit:
  sqlite_path: /var/lib/arbiter/audit.db
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	if cfg.Policy.EscalationThreshold != 5 {
		t.Errorf("EscalationThreshold = %d", cfg.Policy.EscalationThreshold)
	}
	// Watch defaults on when a principles file is configured.
	if !cfg.Policy.Watch {
		t.Error("Policy.Watch = false with principles_file set")
	}
	// Untouched sections still get defaults.
	if cfg.Webhooks.QueueSize != 1024 {
		t.Errorf("Webhooks.QueueSize = %d", cfg.Webhooks.QueueSize)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
logging:
  level: verbose
server:
  listen_address: "no-port"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig(invalid) error = nil, want error")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig(missing) error = nil, want error")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ARBITER_LOGGING_LEVEL", "warn")
	t.Setenv("ARBITER_SERVER_LISTEN_ADDRESS", "127.0.0.1:7777")
	t.Setenv("ARBITER_POLICY_ESCALATION_THRESHOLD", "7")
	t.Setenv("ARBITER_WEBHOOKS_ALLOW_PRIVATE_NETWORKS", "true")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:7777" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Policy.EscalationThreshold != 7 {
		t.Errorf("EscalationThreshold = %d, want 7", cfg.Policy.EscalationThreshold)
	}
	if !cfg.Webhooks.AllowPrivateNetworks {
		t.Error("AllowPrivateNetworks = false, want true")
	}
}

func TestValidate_AggregatesProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"
	cfg.Logging.Format = "xml"
	cfg.Audit.Retention.Schedule = "not a cron"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() error = nil, want error")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(ve.Problems) != 3 {
		t.Errorf("Problems = %d (%v), want 3", len(ve.Problems), ve.Problems)
	}
}
