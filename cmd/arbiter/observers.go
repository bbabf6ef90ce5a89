package main

import (
	"context"
	"time"

	"sonate-hq/arbiter/pkg/alerting"
	"sonate-hq/arbiter/pkg/audit"
	"sonate-hq/arbiter/pkg/events"
	"sonate-hq/arbiter/pkg/policy"
	"sonate-hq/arbiter/pkg/telemetry/metrics"
	"sonate-hq/arbiter/pkg/webhook"
)

// auditObserver records every finalized decision in the audit trail.
type auditObserver struct {
	log *audit.Logger
}

func (o *auditObserver) ObserveDecision(ctx context.Context, outcome *policy.DecisionOutcome) {
	entry := audit.Entry{
		EntryType:    audit.EntryDecision,
		Decision:     string(outcome.Decision),
		PrincipleIDs: outcome.PrincipleIDs,
		Reason:       outcome.Reason,
	}
	if outcome.Receipt != nil {
		entry.ReceiptID = outcome.Receipt.ID
		entry.AgentDID = outcome.Receipt.AgentDID
	}
	if outcome.Classification != nil {
		counts := outcome.Classification.Counts
		entry.Violations = audit.ViolationCounts{
			Total:    counts.Total(),
			Critical: counts.Critical,
			High:     counts.High,
			Medium:   counts.Medium,
			Low:      counts.Low,
		}
	}
	if outcome.OverrideID != "" {
		entry.Details = map[string]any{"override_id": outcome.OverrideID}
	}
	o.log.Log(entry)

	if outcome.OverrideID != "" {
		o.log.Log(audit.Entry{
			EntryType: audit.EntryOverrideUsed,
			ReceiptID: entry.ReceiptID,
			AgentDID:  entry.AgentDID,
			Reason:    "block downgraded by override",
			Details:   map[string]any{"override_id": outcome.OverrideID},
		})
	}
}

// alertObserver raises alerts for violating decisions and fans them out
// to the channels the alert's priority selects: the live event hub, the
// webhook manager, and the audit trail. The alerter itself covers the
// log and in-app channels.
type alertObserver struct {
	alerter  *alerting.Alerter
	hub      *events.Hub
	webhooks *webhook.Manager
	log      *audit.Logger
	metrics  *metrics.Collector
}

func (o *alertObserver) ObserveDecision(ctx context.Context, outcome *policy.DecisionOutcome) {
	alert := o.alerter.Detect(outcome.Receipt, outcome.Result)
	if alert == nil {
		return
	}

	if o.metrics != nil {
		o.metrics.RecordAlert(string(alert.Priority))
	}
	if o.log != nil {
		o.log.Log(audit.Entry{
			EntryType: audit.EntryAlertCreated,
			ReceiptID: alert.ReceiptID,
			AgentDID:  alert.AgentID,
			Violations: audit.ViolationCounts{
				Total: len(alert.Violations),
			},
			Reason:  "violation alert raised",
			Details: map[string]any{"alert_id": alert.ID, "priority": string(alert.Priority)},
		})
	}

	data := map[string]any{
		"alert_id":   alert.ID,
		"receipt_id": alert.ReceiptID,
		"agent_id":   alert.AgentID,
		"priority":   string(alert.Priority),
		"violations": len(alert.Violations),
		"decision":   string(outcome.Decision),
	}

	for _, channel := range alert.Channels {
		switch channel {
		case alerting.ChannelEvents:
			if o.hub != nil {
				o.hub.Publish(events.NewEvent(string(eventTypeFor(alert.Priority)), data))
				if o.metrics != nil {
					o.metrics.RecordEventPublished(0)
				}
			}
		case alerting.ChannelWebhook:
			if o.webhooks != nil {
				_ = o.webhooks.Publish(webhook.Event{
					ID:        alert.ID,
					Type:      eventTypeFor(alert.Priority),
					Timestamp: alert.CreatedAt,
					Source:    "arbiter",
					Data:      data,
				})
			}
		}
	}
}

// eventTypeFor maps an alert priority to the outbound event type.
func eventTypeFor(priority policy.Severity) webhook.EventType {
	switch priority {
	case policy.SeverityCritical:
		return webhook.EventTrustViolationCritical
	case policy.SeverityHigh:
		return webhook.EventTrustViolationError
	default:
		return webhook.EventTrustViolationWarning
	}
}

// metricsObserver records decision counters and evaluation latency.
type metricsObserver struct {
	collector *metrics.Collector
	audit     *audit.Logger
}

func (o *metricsObserver) ObserveDecision(ctx context.Context, outcome *policy.DecisionOutcome) {
	bySeverity := map[string]int{}
	if outcome.Classification != nil {
		counts := outcome.Classification.Counts
		if counts.Critical > 0 {
			bySeverity["critical"] = counts.Critical
		}
		if counts.High > 0 {
			bySeverity["high"] = counts.High
		}
		if counts.Medium > 0 {
			bySeverity["medium"] = counts.Medium
		}
		if counts.Low > 0 {
			bySeverity["low"] = counts.Low
		}
	}

	var evalTime time.Duration
	if outcome.Result != nil {
		evalTime = time.Duration(outcome.Result.Metadata.EvaluationTimeMS * float64(time.Millisecond))
	}
	o.collector.RecordDecision(string(outcome.Decision), bySeverity, evalTime)

	if o.audit != nil {
		o.collector.SetAuditRetained(o.audit.Len())
	}
}
