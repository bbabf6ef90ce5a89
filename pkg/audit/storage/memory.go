package storage

import (
	"errors"
	"sort"
	"sync"
	"time"

	"sonate-hq/arbiter/pkg/audit"
)

var errClosed = errors.New("store closed")

// Memory is an in-memory audit store. It implements audit.Storage and is
// safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries []*audit.Entry
	closed  bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append stores one entry.
func (m *Memory) Append(e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &audit.StorageError{Operation: "append", Cause: errClosed}
	}
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

// Prune deletes entries older than the cutoff and trims to maxRows.
func (m *Memory) Prune(olderThan time.Time, maxRows int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.entries)

	if !olderThan.IsZero() {
		kept := m.entries[:0]
		for _, e := range m.entries {
			if !e.Timestamp.Before(olderThan) {
				kept = append(kept, e)
			}
		}
		m.entries = kept
	}

	if maxRows > 0 && len(m.entries) > maxRows {
		sort.Slice(m.entries, func(i, j int) bool {
			return m.entries[i].Timestamp.Before(m.entries[j].Timestamp)
		})
		m.entries = append([]*audit.Entry(nil), m.entries[len(m.entries)-maxRows:]...)
	}

	return before - len(m.entries), nil
}

// Entries returns a snapshot of the stored entries, oldest first.
func (m *Memory) Entries() []*audit.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*audit.Entry, len(m.entries))
	for i, e := range m.entries {
		cp := *e
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Close marks the store closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
