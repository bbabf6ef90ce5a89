package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Signature headers on every outbound request.
const (
	headerEventID   = "X-Webhook-Event-ID"
	headerTimestamp = "X-Webhook-Timestamp"
	headerSignature = "X-Webhook-Signature"
)

// sign computes the hex HMAC-SHA256 of the serialized JSON body.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// deliver runs the full retry loop for one event against one webhook and
// returns the final result. The rate limiter is consulted before every
// network attempt; a rejected attempt counts as a retryable rate_limited
// failure without touching the network.
func (m *Manager) deliver(ctx context.Context, cfg *Config, event Event) DeliveryResult {
	result := DeliveryResult{
		WebhookID: cfg.ID,
		EventID:   event.ID,
	}

	body, err := json.Marshal(event)
	if err != nil {
		result.ErrorClass = ErrorClassUnknown
		result.Error = fmt.Sprintf("event not serializable: %v", err)
		return result
	}
	signature := sign(cfg.Secret, body)

	start := time.Now()
	policy := cfg.RetryPolicy

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result.Attempts = attempt

		var attemptErr *DeliveryError
		if !m.limiterFor(cfg.ID, cfg.RateLimit).Allow() {
			attemptErr = &DeliveryError{
				Class:   ErrorClassRateLimited,
				Message: "destination rate limit exceeded",
			}
		} else {
			status, err := m.attempt(ctx, cfg, event, body, signature)
			result.StatusCode = status
			if err == nil {
				result.Success = true
				result.Latency = time.Since(start)
				return result
			}
			attemptErr = err
		}

		result.ErrorClass = attemptErr.Class
		result.Error = attemptErr.Message

		if !policy.retryable(attemptErr.Class) || attempt == policy.MaxAttempts {
			break
		}
		if !sleepCtx(ctx, backoffDelay(policy, attempt)) {
			result.ErrorClass = ErrorClassUnknown
			result.Error = "delivery cancelled"
			break
		}
	}

	result.Latency = time.Since(start)
	return result
}

// attempt makes a single signed HTTP request. It returns the status code
// and a classified error, nil on 2xx.
func (m *Manager) attempt(ctx context.Context, cfg *Config, event Event, body []byte, signature string) (int, *DeliveryError) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, &DeliveryError{Class: ErrorClassUnknown, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEventID, event.ID)
	req.Header.Set(headerTimestamp, strconv.FormatInt(event.Timestamp.Unix(), 10))
	req.Header.Set(headerSignature, signature)
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, classify(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, &DeliveryError{
		Class:      ErrorClassHTTP,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("endpoint returned %s", resp.Status),
	}
}

// classify buckets a transport error for the retry decision.
func classify(err error) *DeliveryError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &DeliveryError{Class: ErrorClassTimeout, Message: err.Error()}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &DeliveryError{Class: ErrorClassTimeout, Message: err.Error()}
	case errors.As(err, new(*net.OpError)):
		return &DeliveryError{Class: ErrorClassNetwork, Message: err.Error()}
	case errors.As(err, new(*net.DNSError)):
		return &DeliveryError{Class: ErrorClassNetwork, Message: err.Error()}
	default:
		return &DeliveryError{Class: ErrorClassUnknown, Message: err.Error()}
	}
}

// sleepCtx waits for d, returning false if the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
