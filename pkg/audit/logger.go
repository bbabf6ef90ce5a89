package audit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config configures the audit logger.
type Config struct {
	// Capacity bounds the in-memory window. When exceeded, the oldest 10%
	// is dropped.
	// Default: 100000
	Capacity int

	// StorageBuffer sizes the queue feeding the durable storage worker.
	// When full, the durable write is dropped and counted; the in-memory
	// entry is unaffected.
	// Default: 4096
	StorageBuffer int

	// Storage is an optional durable sink. Nil keeps the log memory-only.
	Storage Storage
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      100000,
		StorageBuffer: 4096,
	}
}

// Logger is the append-only audit log. Appends are synchronous into the
// bounded in-memory window and asynchronous into durable storage, so the
// decision path never waits on disk.
type Logger struct {
	mu      sync.RWMutex
	entries []*Entry
	config  Config

	logged  uint64
	trimmed uint64
	dropped uint64

	storageCh chan *Entry
	wg        sync.WaitGroup
	closeOnce sync.Once

	logger *slog.Logger
}

// NewLogger creates an audit logger and starts its storage worker when a
// durable sink is configured.
func NewLogger(config Config) *Logger {
	if config.Capacity <= 0 {
		config.Capacity = 100000
	}
	if config.StorageBuffer <= 0 {
		config.StorageBuffer = 4096
	}

	l := &Logger{
		config: config,
		logger: slog.Default().With("component", "audit.logger"),
	}
	if config.Storage != nil {
		l.storageCh = make(chan *Entry, config.StorageBuffer)
		l.wg.Add(1)
		go l.storageWorker()
	}
	return l
}

// Log appends an entry. A missing id or timestamp is filled in. Log never
// fails and never blocks on storage; a persistence problem surfaces in the
// process log and the dropped counter only.
func (l *Logger) Log(e Entry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	l.entries = append(l.entries, &e)
	l.logged++
	if len(l.entries) > l.config.Capacity {
		l.trimLocked()
	}
	l.mu.Unlock()

	if l.storageCh != nil {
		select {
		case l.storageCh <- &e:
		default:
			l.mu.Lock()
			l.dropped++
			l.mu.Unlock()
			l.logger.Warn("audit storage queue full, durable write dropped", "entry_id", e.ID)
		}
	}
}

// Query returns the most recent entries matching the query, oldest first.
func (l *Logger) Query(q Query) []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []*Entry
	for _, e := range l.entries {
		if matches(e, q) {
			matched = append(matched, e)
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[len(matched)-q.Limit:]
	}

	out := make([]*Entry, len(matched))
	for i, e := range matched {
		cp := *e
		out[i] = &cp
	}
	return out
}

// Len returns the number of retained entries.
func (l *Logger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Stats returns a snapshot of the logger's counters.
func (l *Logger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Stats{
		Logged:   l.logged,
		Trimmed:  l.trimmed,
		Dropped:  l.dropped,
		Retained: len(l.entries),
	}
}

// Close drains pending durable writes and closes the storage.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.storageCh != nil {
			close(l.storageCh)
			l.wg.Wait()
		}
		if l.config.Storage != nil {
			err = l.config.Storage.Close()
		}
	})
	return err
}

// trimLocked drops the oldest 10% of the window. Caller must hold the
// write lock.
func (l *Logger) trimLocked() {
	drop := l.config.Capacity / 10
	if drop < 1 {
		drop = 1
	}
	if drop > len(l.entries) {
		drop = len(l.entries)
	}
	l.entries = append(l.entries[:0], l.entries[drop:]...)
	l.trimmed += uint64(drop)

	l.logger.Warn("audit window at capacity, oldest entries dropped",
		"dropped", drop,
		"capacity", l.config.Capacity,
	)
}

func (l *Logger) storageWorker() {
	defer l.wg.Done()

	for e := range l.storageCh {
		if err := l.config.Storage.Append(e); err != nil {
			l.mu.Lock()
			l.dropped++
			l.mu.Unlock()
			l.logger.Error("audit entry persistence failed", "entry_id", e.ID, "error", err)
		}
	}
}

func matches(e *Entry, q Query) bool {
	if q.Start != nil && e.Timestamp.Before(*q.Start) {
		return false
	}
	if q.End != nil && e.Timestamp.After(*q.End) {
		return false
	}
	if q.AgentDID != "" && e.AgentDID != q.AgentDID {
		return false
	}
	if q.EntryType != "" && e.EntryType != q.EntryType {
		return false
	}
	if q.Decision != "" && e.Decision != q.Decision {
		return false
	}
	return true
}
