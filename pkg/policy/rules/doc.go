// Package rules provides the built-in constitutional rules and the
// principles that group them.
//
// Rules here read only a receipt's telemetry, chain, and signature shape.
// They never recompute cryptographic material; signature and chain
// construction is verified upstream, and these rules only check presence
// and basic structural sanity.
package rules
