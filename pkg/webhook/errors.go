package webhook

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass buckets delivery failures for retry decisions and statistics.
type ErrorClass string

const (
	// ErrorClassNetwork covers connection failures: refused, reset, DNS.
	ErrorClassNetwork ErrorClass = "network_error"

	// ErrorClassTimeout covers deadline exceeded on the attempt.
	ErrorClassTimeout ErrorClass = "timeout_error"

	// ErrorClassHTTP covers completed requests with non-2xx status.
	ErrorClassHTTP ErrorClass = "http_error"

	// ErrorClassRateLimited marks an attempt rejected by the webhook's own
	// rate limiter before any network call.
	ErrorClassRateLimited ErrorClass = "rate_limited"

	// ErrorClassUnknown covers everything else.
	ErrorClassUnknown ErrorClass = "unknown_error"
)

// ErrNotFound is returned when a webhook id is unknown.
var ErrNotFound = errors.New("webhook not found")

// ErrQueueFull is returned when the delivery queue rejects an event.
var ErrQueueFull = errors.New("webhook delivery queue full")

// ErrManagerClosed is returned when publishing after shutdown.
var ErrManagerClosed = errors.New("webhook manager closed")

// ValidationError reports why a registration request was rejected. It
// aggregates every failed field check.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid webhook registration: %s", strings.Join(e.Fields, "; "))
}

// DeliveryError is one classified attempt failure.
type DeliveryError struct {
	Class      ErrorClass
	StatusCode int
	Message    string
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Class, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}
