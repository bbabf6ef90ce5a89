// Arbiter is a constitutional governance core for AI agent interactions.
//
// It evaluates trust receipts against constitutional principles and turns
// the results into enforceable decisions, providing:
//   - Rule-based receipt evaluation with severity classification
//   - Allow/annotate/block/escalate decisions with human overrides
//   - Violation alerting with channel routing and throttling
//   - Signed webhook notifications with retries and rate limiting
//   - An append-only audit trail with compliance reporting
//
// Usage:
//
//	# Start the API server with default configuration
//	arbiter run
//
//	# Start with a custom configuration file
//	arbiter run --config /path/to/config.yaml
//
//	# Validate configuration and principles without starting
//	arbiter validate --config /path/to/config.yaml
//
//	# Show version information
//	arbiter version
package main

func main() {
	Execute()
}
