package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"sonate-hq/arbiter/pkg/alerting"
	"sonate-hq/arbiter/pkg/audit"
	"sonate-hq/arbiter/pkg/config"
	"sonate-hq/arbiter/pkg/events"
	"sonate-hq/arbiter/pkg/override"
	"sonate-hq/arbiter/pkg/policy"
	"sonate-hq/arbiter/pkg/webhook"
)

// Deps collects the subsystems the API surfaces. Engine is required;
// everything else degrades to a 503 on its routes when nil.
type Deps struct {
	Engine    *policy.Engine
	Overrides *override.Manager
	Alerter   *alerting.Alerter
	Webhooks  *webhook.Manager
	Events    *events.Hub
	Audit     *audit.Logger

	// EventBuffer is the per-subscriber channel depth for the event
	// stream. Zero uses the hub default.
	EventBuffer int

	// MetricsHandler serves the Prometheus scrape endpoint. Nil disables
	// the route.
	MetricsHandler http.Handler
}

// Server is the governance core's HTTP API server.
type Server struct {
	config       config.ServerConfig
	metricsPath  string
	deps         Deps
	httpServer   *http.Server
	logger       *slog.Logger
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates the API server. The metrics path is only consulted
// when Deps.MetricsHandler is set.
func NewServer(cfg config.ServerConfig, metricsPath string, deps Deps) *Server {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Server{
		config:      cfg,
		metricsPath: metricsPath,
		deps:        deps,
		logger:      slog.Default().With("component", "server"),
	}
}

// Start starts the HTTP server and blocks until the context is cancelled,
// a shutdown signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, bounded by the configured
// shutdown timeout. Subsystem teardown (webhook queue drain, audit
// flush) belongs to the caller that constructed the dependencies.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler builds the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /v1/evaluate/batch", s.handleEvaluateBatch)
	mux.HandleFunc("POST /v1/decide", s.handleDecide)
	mux.HandleFunc("GET /v1/principles", s.handleListPrinciples)

	mux.HandleFunc("POST /v1/overrides", s.handleCreateOverride)
	mux.HandleFunc("GET /v1/overrides/{id}", s.handleGetOverride)
	mux.HandleFunc("POST /v1/overrides/{id}/revoke", s.handleRevokeOverride)
	mux.HandleFunc("GET /v1/overrides", s.handleListOverrides)

	mux.HandleFunc("POST /v1/webhooks", s.handleRegisterWebhook)
	mux.HandleFunc("GET /v1/webhooks", s.handleListWebhooks)
	mux.HandleFunc("GET /v1/webhooks/{id}", s.handleGetWebhook)
	mux.HandleFunc("DELETE /v1/webhooks/{id}", s.handleUnregisterWebhook)
	mux.HandleFunc("POST /v1/webhooks/{id}/enable", s.handleSetWebhookEnabled(true))
	mux.HandleFunc("POST /v1/webhooks/{id}/disable", s.handleSetWebhookEnabled(false))

	mux.HandleFunc("GET /v1/alerts", s.handleListAlerts)
	mux.HandleFunc("POST /v1/alerts/{id}/ack", s.handleAckAlert)

	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)

	mux.HandleFunc("GET /v1/audit/entries", s.handleAuditEntries)
	mux.HandleFunc("GET /v1/audit/export", s.handleAuditExport)
	mux.HandleFunc("GET /v1/audit/report", s.handleAuditReport)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.deps.MetricsHandler != nil {
		mux.Handle("GET "+s.metricsPath, s.deps.MetricsHandler)
	}

	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(handler)
	return handler
}

// auditEntry records a lifecycle event in the audit trail, when one is
// configured.
func (s *Server) auditEntry(e audit.Entry) {
	if s.deps.Audit != nil {
		s.deps.Audit.Log(e)
	}
}

// handleHealth reports liveness plus per-subsystem presence.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"subsystems": map[string]bool{
			"engine":    s.deps.Engine != nil,
			"overrides": s.deps.Overrides != nil,
			"alerting":  s.deps.Alerter != nil,
			"webhooks":  s.deps.Webhooks != nil,
			"events":    s.deps.Events != nil,
			"audit":     s.deps.Audit != nil,
		},
	})
}
