package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"sonate-hq/arbiter/pkg/ratelimit"
)

// ManagerConfig configures the webhook manager.
type ManagerConfig struct {
	// QueueSize bounds the delivery queue. A full queue drops the event.
	// Default: 1024
	QueueSize int

	// BatchSize is the maximum number of events drained per dispatch
	// cycle.
	// Default: 16
	BatchSize int

	// MaxConcurrent bounds concurrent delivery attempts across all
	// webhooks.
	// Default: 8
	MaxConcurrent int

	// AllowPrivateNetworks disables destination address blocking. Only
	// for tests and deployments delivering inside their own network.
	// Default: false
	AllowPrivateNetworks bool

	// OnResult, when set, receives every final delivery result. Called
	// from delivery goroutines; must be safe for concurrent use.
	OnResult func(DeliveryResult)
}

// DefaultManagerConfig returns the default manager configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		QueueSize:     1024,
		BatchSize:     16,
		MaxConcurrent: 8,
	}
}

// Manager owns webhook registrations and the asynchronous delivery
// pipeline. It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	configs  map[string]*Config
	limiters map[string]ratelimit.Limiter
	closed   bool

	config ManagerConfig
	client *http.Client
	queue  chan Event
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	statsMu       sync.Mutex
	queued        uint64
	queueDropped  uint64
	delivered     uint64
	failed        uint64
	avgDeliveryMS float64
	errorsByClass map[ErrorClass]uint64

	logger *slog.Logger
}

// NewManager creates a webhook manager and starts its dispatcher.
func NewManager(config ManagerConfig) *Manager {
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 16
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 8
	}

	transport := &http.Transport{MaxIdleConnsPerHost: 4}
	if !config.AllowPrivateNetworks {
		transport.DialContext = safeDialContext
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		configs:  make(map[string]*Config),
		limiters: make(map[string]ratelimit.Limiter),
		config:   config,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 2 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		queue:         make(chan Event, config.QueueSize),
		ctx:           ctx,
		cancel:        cancel,
		errorsByClass: make(map[ErrorClass]uint64),
		logger:        slog.Default().With("component", "webhook.manager"),
	}

	m.wg.Add(1)
	go m.dispatch()
	return m
}

// Register validates and stores a new webhook. A missing secret is
// generated; the returned config carries it for the caller to persist.
func (m *Manager) Register(req RegisterRequest) (*Config, error) {
	if fields := validateRequest(req, m.config.AllowPrivateNetworks); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	cfg := &Config{
		ID:         uuid.New().String(),
		Name:       req.Name,
		URL:        req.URL,
		EventTypes: append([]EventType(nil), req.EventTypes...),
		Secret:     req.Secret,
		Headers:    req.Headers,
		Timeout:    req.Timeout,
		Enabled:    true,
		Filters:    append([]Filter(nil), req.Filters...),
		CreatedAt:  time.Now().UTC(),
	}
	if cfg.Secret == "" {
		cfg.Secret = generateSecret()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if req.RetryPolicy != nil {
		cfg.RetryPolicy = *req.RetryPolicy
	} else {
		cfg.RetryPolicy = DefaultRetryPolicy()
	}
	if req.RateLimit != nil {
		cfg.RateLimit = *req.RateLimit
	} else {
		cfg.RateLimit = ratelimit.DefaultConfig()
	}

	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		return nil, &ValidationError{Fields: []string{err.Error()}}
	}

	m.mu.Lock()
	m.configs[cfg.ID] = cfg
	m.limiters[cfg.ID] = limiter
	m.mu.Unlock()

	m.logger.Info("webhook registered",
		"webhook_id", cfg.ID,
		"name", cfg.Name,
		"url", cfg.URL,
		"event_types", len(cfg.EventTypes),
	)
	return cloneConfig(cfg), nil
}

// Unregister removes a webhook. Deliveries already in flight complete.
func (m *Manager) Unregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.configs[id]; !ok {
		return ErrNotFound
	}
	delete(m.configs, id)
	delete(m.limiters, id)
	m.logger.Info("webhook unregistered", "webhook_id", id)
	return nil
}

// SetEnabled toggles delivery for a webhook without unregistering it.
func (m *Manager) SetEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[id]
	if !ok {
		return ErrNotFound
	}
	cfg.Enabled = enabled
	return nil
}

// Get returns a webhook configuration by id.
func (m *Manager) Get(id string) (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConfig(cfg), nil
}

// List returns all registered webhooks.
func (m *Manager) List() []*Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Config, 0, len(m.configs))
	for _, cfg := range m.configs {
		out = append(out, cloneConfig(cfg))
	}
	return out
}

// Publish queues an event for delivery. A full queue drops the event and
// returns ErrQueueFull; delivery is asynchronous and at-least-once per
// matching webhook while the process lives.
func (m *Manager) Publish(event Event) error {
	// The read lock is held across the enqueue so Close cannot close the
	// queue between the closed check and the send.
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrManagerClosed
	}

	select {
	case m.queue <- event:
		m.statsMu.Lock()
		m.queued++
		m.statsMu.Unlock()
		return nil
	default:
		m.statsMu.Lock()
		m.queueDropped++
		m.statsMu.Unlock()
		m.logger.Warn("delivery queue full, event dropped",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return ErrQueueFull
	}
}

// Stats returns a snapshot of the delivery counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	webhooks := len(m.configs)
	m.mu.RUnlock()

	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	errs := make(map[ErrorClass]uint64, len(m.errorsByClass))
	for k, v := range m.errorsByClass {
		errs[k] = v
	}
	return Stats{
		Webhooks:      webhooks,
		Queued:        m.queued,
		QueueDropped:  m.queueDropped,
		Delivered:     m.delivered,
		Failed:        m.failed,
		AvgDeliveryMS: m.avgDeliveryMS,
		ErrorsByClass: errs,
	}
}

// Close stops accepting events, drains the queue, and waits for in-flight
// deliveries to finish their retry loops.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	// Acquiring the write lock above waited out every publisher holding
	// the read lock, so no send can race the close below.
	close(m.queue)
	m.wg.Wait()
	m.cancel()
}

// dispatch drains the queue in batches and fans deliveries out under the
// concurrency bound.
func (m *Manager) dispatch() {
	defer m.wg.Done()

	sem := make(chan struct{}, m.config.MaxConcurrent)
	var deliveries sync.WaitGroup

	for event := range m.queue {
		batch := []Event{event}
		for len(batch) < m.config.BatchSize {
			select {
			case next, ok := <-m.queue:
				if !ok {
					m.dispatchBatch(batch, sem, &deliveries)
					deliveries.Wait()
					return
				}
				batch = append(batch, next)
			default:
				goto drained
			}
		}
	drained:
		m.dispatchBatch(batch, sem, &deliveries)
	}
	deliveries.Wait()
}

func (m *Manager) dispatchBatch(batch []Event, sem chan struct{}, deliveries *sync.WaitGroup) {
	for _, event := range batch {
		for _, cfg := range m.matching(event) {
			cfg := cfg
			event := event
			sem <- struct{}{}
			deliveries.Add(1)
			go func() {
				defer func() {
					<-sem
					deliveries.Done()
				}()
				m.recordResult(m.deliver(m.ctx, cfg, event))
			}()
		}
	}
}

// matching returns the enabled webhooks whose event-type allowlist and
// filters accept the event.
func (m *Manager) matching(event Event) []*Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Config
	for _, cfg := range m.configs {
		if !cfg.Enabled {
			continue
		}
		if !eventTypeAllowed(cfg.EventTypes, event.Type) {
			continue
		}
		if !matchesFilters(cfg.Filters, event) {
			continue
		}
		out = append(out, cloneConfig(cfg))
	}
	return out
}

func eventTypeAllowed(allowed []EventType, t EventType) bool {
	for _, et := range allowed {
		if et == t {
			return true
		}
	}
	return false
}

// limiterFor returns the live limiter for a webhook, creating one if the
// webhook was registered without (or re-registered).
func (m *Manager) limiterFor(id string, cfg ratelimit.Config) ratelimit.Limiter {
	m.mu.RLock()
	limiter, ok := m.limiters[id]
	m.mu.RUnlock()
	if ok {
		return limiter
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if limiter, ok := m.limiters[id]; ok {
		return limiter
	}
	limiter, err := ratelimit.New(cfg)
	if err != nil {
		limiter, _ = ratelimit.New(ratelimit.DefaultConfig())
	}
	m.limiters[id] = limiter
	return limiter
}

func (m *Manager) recordResult(result DeliveryResult) {
	m.statsMu.Lock()
	if result.Success {
		m.delivered++
		// Incremental mean over successful deliveries.
		ms := float64(result.Latency.Microseconds()) / 1000.0
		m.avgDeliveryMS += (ms - m.avgDeliveryMS) / float64(m.delivered)
	} else {
		m.failed++
		if result.ErrorClass != "" {
			m.errorsByClass[result.ErrorClass]++
		}
	}
	m.statsMu.Unlock()

	if result.Success {
		m.logger.Debug("webhook delivered",
			"webhook_id", result.WebhookID,
			"event_id", result.EventID,
			"attempts", result.Attempts,
			"status", result.StatusCode,
		)
	} else {
		m.logger.Warn("webhook delivery failed",
			"webhook_id", result.WebhookID,
			"event_id", result.EventID,
			"attempts", result.Attempts,
			"error_class", result.ErrorClass,
			"error", result.Error,
		)
	}

	if m.config.OnResult != nil {
		m.config.OnResult(result)
	}
}

func cloneConfig(cfg *Config) *Config {
	cp := *cfg
	cp.EventTypes = append([]EventType(nil), cfg.EventTypes...)
	cp.Filters = append([]Filter(nil), cfg.Filters...)
	if cfg.Headers != nil {
		cp.Headers = make(map[string]string, len(cfg.Headers))
		for k, v := range cfg.Headers {
			cp.Headers[k] = v
		}
	}
	return &cp
}
