package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig configures scheduled pruning of the durable store.
type RetentionConfig struct {
	// Schedule is a standard cron expression. Empty disables scheduling.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule"`

	// MaxAge drops entries older than this. Zero keeps all ages.
	// Default: 2160h (90 days)
	MaxAge time.Duration `yaml:"max_age"`

	// MaxRows trims the store to the newest MaxRows entries. Zero keeps
	// all rows.
	// Default: 1000000
	MaxRows int `yaml:"max_rows"`
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Schedule: "0 3 * * *",
		MaxAge:   90 * 24 * time.Hour,
		MaxRows:  1000000,
	}
}

// RetentionScheduler prunes the durable audit store on a cron schedule.
// The in-memory window is unaffected; it trims itself by capacity.
type RetentionScheduler struct {
	mu      sync.Mutex
	storage Storage
	config  RetentionConfig
	cron    *cron.Cron
	running bool
	logger  *slog.Logger
}

// NewRetentionScheduler creates a retention scheduler over a durable store.
func NewRetentionScheduler(storage Storage, config RetentionConfig) *RetentionScheduler {
	return &RetentionScheduler{
		storage: storage,
		config:  config,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "audit.retention"),
	}
}

// Start schedules pruning. With an empty schedule it does nothing. The
// scheduler stops when the context is cancelled.
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" {
		s.logger.Info("retention schedule not configured, skipping scheduler")
		return nil
	}
	if s.storage == nil {
		s.logger.Info("no durable audit storage, skipping retention scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.config.Schedule, err)
	}
	if _, err := s.cron.AddFunc(s.config.Schedule, s.runPruning); err != nil {
		return fmt.Errorf("failed to schedule audit pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("audit retention scheduler started",
		"schedule", s.config.Schedule,
		"max_age", s.config.MaxAge,
		"max_rows", s.config.MaxRows,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Prune runs one pruning cycle immediately.
func (s *RetentionScheduler) Prune() (int, error) {
	if s.storage == nil {
		return 0, nil
	}

	cutoff := time.Time{}
	if s.config.MaxAge > 0 {
		cutoff = time.Now().Add(-s.config.MaxAge)
	}
	return s.storage.Prune(cutoff, s.config.MaxRows)
}

// Stop halts scheduling and waits for a running prune to finish.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("audit retention scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *RetentionScheduler) runPruning() {
	deleted, err := s.Prune()
	if err != nil {
		s.logger.Error("scheduled audit pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("scheduled audit pruning completed", "deleted", deleted)
	} else {
		s.logger.Debug("scheduled audit pruning completed, nothing to delete")
	}
}
