// Package ratelimit provides per-destination rate limiters for outbound
// delivery.
//
// Two strategies are available:
//
//   - SlidingWindow: tracks admission timestamps over a rolling window;
//     accurate, no reset spike, memory proportional to the request limit.
//   - TokenBucket: constant refill rate with burst capacity; constant
//     memory, allows short bursts above the average rate.
//
// Both are safe for concurrent use. A single limiter instance guards each
// destination; the webhook manager owns that mapping.
package ratelimit
