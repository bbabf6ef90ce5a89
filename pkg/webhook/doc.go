// Package webhook delivers governance events to registered external HTTP
// endpoints with retries, per-destination rate limiting, and HMAC-signed
// payloads.
//
// Events are pushed onto a bounded queue and drained in batches by a
// dispatcher. For each event, every enabled webhook whose event-type
// allowlist includes the event's type and whose filters all match receives
// a delivery attempt. Attempts consult the webhook's rate limiter before
// touching the network, sign the JSON body with HMAC-SHA256, and classify
// failures into network, timeout, http, and unknown errors to drive the
// retry policy.
//
// Destination URLs are validated against RFC special-use IP ranges at
// registration time and again at dial time, so a hostname cannot pass
// validation and later resolve into a private network.
package webhook
