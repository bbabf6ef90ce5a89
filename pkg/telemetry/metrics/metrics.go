// Package metrics exposes the service's Prometheus metrics: decision and
// violation counters, evaluation latency, override and alert activity,
// and webhook delivery outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the metric instances and their registry.
type Collector struct {
	registry *prometheus.Registry

	decisions          *prometheus.CounterVec
	violations         *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	overrides          *prometheus.CounterVec
	alerts             *prometheus.CounterVec
	webhookDeliveries  *prometheus.CounterVec
	webhookDuration    prometheus.Histogram
	webhookErrors      *prometheus.CounterVec
	eventsPublished    prometheus.Counter
	eventsDropped      prometheus.Counter
	auditRetained      prometheus.Gauge
}

// NewCollector creates the collector and registers every metric. A nil
// registry creates a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbiter",
			Name:      "decisions_total",
			Help:      "Governance decisions by outcome.",
		}, []string{"decision"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbiter",
			Name:      "violations_total",
			Help:      "Rule violations by severity.",
		}, []string{"severity"}),
		evaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arbiter",
			Name:      "evaluation_duration_seconds",
			Help:      "Receipt evaluation latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		overrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbiter",
			Name:      "overrides_total",
			Help:      "Override lifecycle events by action.",
		}, []string{"action"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbiter",
			Name:      "alerts_total",
			Help:      "Violation alerts by priority.",
		}, []string{"priority"}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbiter",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery results by outcome.",
		}, []string{"outcome"}),
		webhookDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arbiter",
			Name:      "webhook_delivery_duration_seconds",
			Help:      "End-to-end webhook delivery latency including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		webhookErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbiter",
			Name:      "webhook_errors_total",
			Help:      "Webhook delivery failures by error class.",
		}, []string{"class"}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbiter",
			Name:      "events_published_total",
			Help:      "Events published to the live hub.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbiter",
			Name:      "events_dropped_total",
			Help:      "Events dropped for slow subscribers.",
		}),
		auditRetained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbiter",
			Name:      "audit_entries_retained",
			Help:      "Entries currently held in the in-memory audit window.",
		}),
	}

	registry.MustRegister(
		c.decisions, c.violations, c.evaluationDuration,
		c.overrides, c.alerts,
		c.webhookDeliveries, c.webhookDuration, c.webhookErrors,
		c.eventsPublished, c.eventsDropped, c.auditRetained,
	)
	return c
}

// RecordDecision records one governance decision and its violation tally.
func (c *Collector) RecordDecision(decision string, violationsBySeverity map[string]int, evalTime time.Duration) {
	c.decisions.WithLabelValues(decision).Inc()
	for severity, n := range violationsBySeverity {
		c.violations.WithLabelValues(severity).Add(float64(n))
	}
	c.evaluationDuration.Observe(evalTime.Seconds())
}

// RecordOverride records an override lifecycle event: created, used, or
// revoked.
func (c *Collector) RecordOverride(action string) {
	c.overrides.WithLabelValues(action).Inc()
}

// RecordAlert records a created alert by priority.
func (c *Collector) RecordAlert(priority string) {
	c.alerts.WithLabelValues(priority).Inc()
}

// RecordWebhookDelivery records a final delivery result.
func (c *Collector) RecordWebhookDelivery(success bool, errorClass string, latency time.Duration) {
	if success {
		c.webhookDeliveries.WithLabelValues("success").Inc()
	} else {
		c.webhookDeliveries.WithLabelValues("failure").Inc()
		if errorClass != "" {
			c.webhookErrors.WithLabelValues(errorClass).Inc()
		}
	}
	c.webhookDuration.Observe(latency.Seconds())
}

// RecordEventPublished counts a hub publish and how many subscribers
// missed it.
func (c *Collector) RecordEventPublished(dropped int) {
	c.eventsPublished.Inc()
	if dropped > 0 {
		c.eventsDropped.Add(float64(dropped))
	}
}

// SetAuditRetained updates the in-memory audit window gauge.
func (c *Collector) SetAuditRetained(n int) {
	c.auditRetained.Set(float64(n))
}

// Handler returns the Prometheus scrape handler for this collector's
// registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
