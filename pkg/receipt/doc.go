// Package receipt defines the trust receipt consumed by the governance core.
//
// A trust receipt is a signed, hash-chained record of a single AI interaction.
// It is produced upstream by the receipt issuance pipeline; this package only
// models its shape. Policy rules read telemetry, chain, and signature
// presence — they never recompute cryptographic material.
package receipt
