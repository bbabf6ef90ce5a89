package alerting

import (
	"time"

	"sonate-hq/arbiter/pkg/policy"
)

// Channel identifies a delivery surface for an alert.
type Channel string

const (
	// ChannelWebhook routes the alert to registered webhook endpoints.
	ChannelWebhook Channel = "webhook"

	// ChannelEvents pushes the alert to live event stream subscribers.
	ChannelEvents Channel = "events"

	// ChannelLog writes the alert to the process log.
	ChannelLog Channel = "log"

	// ChannelInApp surfaces the alert in the alert listing API.
	ChannelInApp Channel = "in_app"
)

// Alert is a prioritized violation notification.
type Alert struct {
	ID             string             `json:"id"`
	ReceiptID      string             `json:"receipt_id"`
	AgentID        string             `json:"agent_id"`
	Violations     []policy.Violation `json:"violations"`
	Priority       policy.Severity    `json:"priority"`
	Channels       []Channel          `json:"channels"`
	CreatedAt      time.Time          `json:"created_at"`
	Acknowledged   bool               `json:"acknowledged"`
	AcknowledgedBy string             `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time         `json:"acknowledged_at,omitempty"`
}

// Stats is a snapshot of the alerter's counters.
type Stats struct {
	Created      uint64 `json:"created"`
	Throttled    uint64 `json:"throttled"`
	Acknowledged uint64 `json:"acknowledged"`
	Retained     int    `json:"retained"`
}

// channelTable maps alert priority to its delivery channel set. Critical
// alerts reach every surface; low-priority alerts stay in-app.
var channelTable = map[policy.Severity][]Channel{
	policy.SeverityCritical: {ChannelWebhook, ChannelEvents, ChannelLog, ChannelInApp},
	policy.SeverityHigh:     {ChannelWebhook, ChannelEvents, ChannelInApp},
	policy.SeverityMedium:   {ChannelEvents, ChannelInApp},
	policy.SeverityLow:      {ChannelInApp},
}

// ChannelsFor returns the delivery channels for a priority.
func ChannelsFor(priority policy.Severity) []Channel {
	channels := channelTable[priority]
	return append([]Channel(nil), channels...)
}
