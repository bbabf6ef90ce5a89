// Package alerting converts evaluation results into prioritized,
// throttled alert objects.
//
// The alerter sits after the decision path: when an evaluation carries
// violations, Detect produces an Alert whose priority follows the highest
// violation severity and whose channel set follows a fixed priority table.
// A per-agent throttle suppresses repeated alerts inside a short window;
// suppression is lossy by design, throttled violations are never queued.
//
// Delivery itself is out of scope here: the caller routes the returned
// alert to the events hub and webhook manager according to its channels.
package alerting
