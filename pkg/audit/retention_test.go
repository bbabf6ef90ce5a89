package audit

import (
	"context"
	"testing"
	"time"
)

type fakeStorage struct {
	pruneOlderThan time.Time
	pruneMaxRows   int
	pruneCalls     int
}

func (f *fakeStorage) Append(e *Entry) error { return nil }

func (f *fakeStorage) Prune(olderThan time.Time, maxRows int) (int, error) {
	f.pruneCalls++
	f.pruneOlderThan = olderThan
	f.pruneMaxRows = maxRows
	return 7, nil
}

func (f *fakeStorage) Close() error { return nil }

func TestRetentionScheduler_Prune(t *testing.T) {
	store := &fakeStorage{}
	s := NewRetentionScheduler(store, RetentionConfig{
		MaxAge:  24 * time.Hour,
		MaxRows: 500,
	})

	deleted, err := s.Prune()
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 7 {
		t.Errorf("deleted = %d, want 7", deleted)
	}
	if store.pruneMaxRows != 500 {
		t.Errorf("maxRows = %d, want 500", store.pruneMaxRows)
	}
	if age := time.Since(store.pruneOlderThan); age < 23*time.Hour || age > 25*time.Hour {
		t.Errorf("cutoff not ~24h ago: %v", store.pruneOlderThan)
	}
}

func TestRetentionScheduler_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Empty schedule is a no-op.
	s := NewRetentionScheduler(&fakeStorage{}, RetentionConfig{})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start(empty schedule) error = %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler running with empty schedule")
	}

	// Invalid cron expression is rejected.
	s = NewRetentionScheduler(&fakeStorage{}, RetentionConfig{Schedule: "not a cron"})
	if err := s.Start(ctx); err == nil {
		t.Error("Start(invalid schedule) error = nil, want error")
	}

	// Valid schedule starts and stops cleanly.
	s = NewRetentionScheduler(&fakeStorage{}, DefaultRetentionConfig())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.IsRunning() {
		t.Error("scheduler not running after Start")
	}
	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler still running after Stop")
	}
}
