package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"sonate-hq/arbiter/pkg/alerting"
	"sonate-hq/arbiter/pkg/audit"
	auditstorage "sonate-hq/arbiter/pkg/audit/storage"
	"sonate-hq/arbiter/pkg/cli"
	"sonate-hq/arbiter/pkg/config"
	"sonate-hq/arbiter/pkg/events"
	"sonate-hq/arbiter/pkg/override"
	"sonate-hq/arbiter/pkg/policy"
	"sonate-hq/arbiter/pkg/policy/rules"
	"sonate-hq/arbiter/pkg/server"
	"sonate-hq/arbiter/pkg/telemetry/logging"
	"sonate-hq/arbiter/pkg/telemetry/metrics"
	"sonate-hq/arbiter/pkg/webhook"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Arbiter governance server",
	Long: `Start the Arbiter governance server with the specified configuration.

The server evaluates trust receipts against constitutional principles,
issues decisions, raises alerts, delivers webhook notifications, and keeps
an audit trail.

Examples:
  # Start with default config
  arbiter run

  # Start with custom config
  arbiter run --config /etc/arbiter/config.yaml

  # Override listen address
  arbiter run --listen 0.0.0.0:8080

  # Validate config without starting the server
  arbiter run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if _, err := logging.Setup(cfg.Logging); err != nil {
		return cli.NewConfigError("logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Arbiter v%s\n", Version)
	fmt.Println("✓ Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Policy registry with built-in constitutional rules, optionally
	// reconfigured from a watched principles file.
	registry := policy.NewRegistry()
	if err := rules.RegisterBuiltins(registry); err != nil {
		return cli.NewCommandError("run", err)
	}

	if cfg.Policy.PrinciplesFile != "" {
		loader := policy.NewLoader(registry, cfg.Policy.PrinciplesFile)
		if err := loader.Load(); err != nil {
			return cli.NewConfigError("policy.principles_file", err.Error())
		}
		slog.Info("principles loaded", "path", cfg.Policy.PrinciplesFile)

		if cfg.Policy.Watch {
			watcher, err := policy.NewWatcher(loader, 500*time.Millisecond)
			if err != nil {
				return cli.NewCommandError("run", err)
			}
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					slog.Error("principles watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
			slog.Info("principles file watch enabled")
		}
	}

	// Override manager, durable when a SQLite path is configured.
	overrideCfg := override.Config{MaxOverrides: cfg.Overrides.MaxOverrides}
	if cfg.Overrides.SQLitePath != "" {
		store, err := override.NewSQLiteStore(cfg.Overrides.SQLitePath)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		overrideCfg.Store = store
	}
	overrides, err := override.NewManager(overrideCfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer overrides.Close()
	fmt.Println("✓ Override manager initialized")

	// Audit trail: in-memory window plus optional durable SQLite store
	// with scheduled retention pruning.
	auditCfg := audit.Config{
		Capacity:      cfg.Audit.Capacity,
		StorageBuffer: cfg.Audit.StorageBuffer,
	}
	var retention *audit.RetentionScheduler
	if cfg.Audit.SQLitePath != "" {
		store, err := auditstorage.NewSQLite(cfg.Audit.SQLitePath)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		auditCfg.Storage = store

		if cfg.Audit.Retention.Schedule != "" {
			retention = audit.NewRetentionScheduler(store, audit.RetentionConfig{
				Schedule: cfg.Audit.Retention.Schedule,
				MaxAge:   cfg.Audit.Retention.MaxAge,
				MaxRows:  cfg.Audit.Retention.MaxRows,
			})
			if err := retention.Start(ctx); err != nil {
				slog.Warn("failed to start audit retention scheduler", "error", err)
			} else {
				defer retention.Stop()
			}
		}
	}
	auditLog := audit.NewLogger(auditCfg)
	defer auditLog.Close()
	fmt.Println("✓ Audit trail initialized")

	// Metrics collector, unless disabled.
	var collector *metrics.Collector
	if cfg.Metrics.Enabled() {
		collector = metrics.NewCollector(nil)
	}

	// Alerting, live events, and webhook delivery.
	alerter := alerting.NewAlerter(alerting.Config{
		ThrottleWindow: cfg.Alerting.ThrottleWindow,
		MaxAlerts:      cfg.Alerting.MaxAlerts,
	})
	hub := events.NewHub()
	defer hub.Close()

	webhooks := webhook.NewManager(webhook.ManagerConfig{
		QueueSize:            cfg.Webhooks.QueueSize,
		BatchSize:            cfg.Webhooks.BatchSize,
		MaxConcurrent:        cfg.Webhooks.MaxConcurrent,
		AllowPrivateNetworks: cfg.Webhooks.AllowPrivateNetworks,
		OnResult: func(result webhook.DeliveryResult) {
			if collector != nil {
				collector.RecordWebhookDelivery(result.Success, string(result.ErrorClass), result.Latency)
			}
			auditLog.Log(audit.Entry{
				EntryType: audit.EntryWebhookDelivery,
				Reason:    fmt.Sprintf("delivery to webhook %s", result.WebhookID),
				Details: map[string]any{
					"webhook_id":  result.WebhookID,
					"event_id":    result.EventID,
					"success":     result.Success,
					"attempts":    result.Attempts,
					"error_class": string(result.ErrorClass),
				},
			})
		},
	})
	defer webhooks.Close()
	fmt.Println("✓ Webhook manager initialized")

	// Policy engine with the decision fan-out.
	engine := policy.NewEngine(registry, overrides, policy.EngineConfig{
		EvaluationBudget:    cfg.Policy.EvaluationBudget,
		EscalationThreshold: cfg.Policy.EscalationThreshold,
	})
	engine.AddObserver(&auditObserver{log: auditLog})
	engine.AddObserver(&alertObserver{
		alerter:  alerter,
		hub:      hub,
		webhooks: webhooks,
		log:      auditLog,
		metrics:  collector,
	})
	if collector != nil {
		engine.AddObserver(&metricsObserver{collector: collector, audit: auditLog})
	}

	deps := server.Deps{
		Engine:      engine,
		Overrides:   overrides,
		Alerter:     alerter,
		Webhooks:    webhooks,
		Events:      hub,
		Audit:       auditLog,
		EventBuffer: cfg.Events.SubscriberBuffer,
	}
	if collector != nil {
		deps.MetricsHandler = collector.Handler()
	}
	srv := server.NewServer(cfg.Server, cfg.Metrics.Path, deps)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Metrics.Enabled() {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := cli.WaitForShutdown()
	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}

		fmt.Println("✓ Server stopped")
		return nil
	}
}

// loadConfig reads the configured file with environment overrides. When
// the user left the config flag at its default and no file exists, the
// built-in defaults are used.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			slog.Info("no configuration file found, using defaults", "path", cfgFile)
			return config.DefaultConfig(), nil
		}
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}
